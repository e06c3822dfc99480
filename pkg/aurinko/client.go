package aurinko

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Service talks to the Aurinko unified mail/calendar API with a per-account
// bearer token. All errors returned here abort the caller's sync attempt; the
// client never commits partial state itself.
type Service struct {
	baseURL    string
	httpClient *http.Client
}

func NewService(baseURL string) *Service {
	if baseURL == "" {
		baseURL = "https://api.aurinko.io"
	}
	return &Service{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// StartSync asks the provider to begin indexing the mailbox. The provider
// works asynchronously; callers poll this until Ready is true.
func (s *Service) StartSync(ctx context.Context, accessToken string, daysWithin int) (*SyncResponse, error) {
	q := url.Values{}
	q.Set("daysWithin", strconv.Itoa(daysWithin))
	q.Set("bodyType", "html")

	var resp SyncResponse
	if err := s.do(ctx, http.MethodPost, "/v1/email/sync", q, accessToken, &resp); err != nil {
		return nil, fmt.Errorf("failed to start email sync: %w", err)
	}
	return &resp, nil
}

// GetUpdatedEmails fetches one page of the email change stream. Exactly one of
// deltaToken/pageToken should be set: the delta token opens a walk, the page
// token continues it.
func (s *Service) GetUpdatedEmails(ctx context.Context, accessToken, deltaToken, pageToken string) (*UpdatedEmailsPage, error) {
	q := url.Values{}
	if deltaToken != "" {
		q.Set("deltaToken", deltaToken)
	}
	if pageToken != "" {
		q.Set("pageToken", pageToken)
	}

	var page UpdatedEmailsPage
	if err := s.do(ctx, http.MethodGet, "/v1/email/sync/updated", q, accessToken, &page); err != nil {
		return nil, fmt.Errorf("failed to fetch updated emails: %w", err)
	}
	return &page, nil
}

// StartCalendarSync begins indexing one calendar.
func (s *Service) StartCalendarSync(ctx context.Context, accessToken, calendarID string) (*SyncResponse, error) {
	path := "/v1/calendars/" + url.PathEscape(calendarID) + "/sync"

	var resp SyncResponse
	if err := s.do(ctx, http.MethodPost, path, nil, accessToken, &resp); err != nil {
		return nil, fmt.Errorf("failed to start calendar sync: %w", err)
	}
	return &resp, nil
}

// GetUpdatedEvents fetches one page of the calendar change stream.
func (s *Service) GetUpdatedEvents(ctx context.Context, accessToken, calendarID, deltaToken, pageToken string) (*UpdatedEventsPage, error) {
	q := url.Values{}
	if deltaToken != "" {
		q.Set("deltaToken", deltaToken)
	}
	if pageToken != "" {
		q.Set("pageToken", pageToken)
	}
	path := "/v1/calendars/" + url.PathEscape(calendarID) + "/sync/updated"

	var page UpdatedEventsPage
	if err := s.do(ctx, http.MethodGet, path, q, accessToken, &page); err != nil {
		return nil, fmt.Errorf("failed to fetch updated events: %w", err)
	}
	return &page, nil
}

// GetPrimaryCalendar resolves the account's primary calendar id.
func (s *Service) GetPrimaryCalendar(ctx context.Context, accessToken string) (*Calendar, error) {
	var result struct {
		Records []Calendar `json:"records"`
	}
	if err := s.do(ctx, http.MethodGet, "/v1/calendars", nil, accessToken, &result); err != nil {
		return nil, fmt.Errorf("failed to list calendars: %w", err)
	}

	for i := range result.Records {
		if result.Records[i].Primary {
			return &result.Records[i], nil
		}
	}
	if len(result.Records) > 0 {
		return &result.Records[0], nil
	}
	return nil, fmt.Errorf("account has no calendars")
}

// GetAccountInfo returns details of the account the token belongs to.
func (s *Service) GetAccountInfo(ctx context.Context, accessToken string) (*AccountInfo, error) {
	var info AccountInfo
	if err := s.do(ctx, http.MethodGet, "/v1/account", nil, accessToken, &info); err != nil {
		return nil, fmt.Errorf("failed to fetch account info: %w", err)
	}
	return &info, nil
}

func (s *Service) do(ctx context.Context, method, path string, query url.Values, accessToken string, out interface{}) error {
	u := s.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("provider auth error (%d): %s", resp.StatusCode, string(body))
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("provider API error (%d): %s", resp.StatusCode, string(body))
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}
