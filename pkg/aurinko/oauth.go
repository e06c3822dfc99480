package aurinko

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
)

// OAuthConfig builds the authorization-code flow config for linking a mailbox.
// The resulting access token is the per-account bearer token driving sync.
func OAuthConfig(baseURL, clientID, clientSecret, redirectURL string) *oauth2.Config {
	if baseURL == "" {
		baseURL = "https://api.aurinko.io"
	}
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{"Mail.Read", "Calendar.Read"},
		Endpoint: oauth2.Endpoint{
			AuthURL:   baseURL + "/v1/auth/authorize",
			TokenURL:  baseURL + "/v1/auth/token",
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
}

// ExchangeCode trades the callback code for the account access token.
func ExchangeCode(ctx context.Context, cfg *oauth2.Config, code string) (*oauth2.Token, error) {
	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	return token, nil
}
