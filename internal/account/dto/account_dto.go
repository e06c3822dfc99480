package dto

import "time"

type AccountResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Provider  string    `json:"provider"`
	Synced    bool      `json:"synced"`
	CreatedAt time.Time `json:"created_at"`
}

type AccountsResponse struct {
	Accounts []AccountResponse `json:"accounts"`
}

type AuthorizeURLResponse struct {
	URL string `json:"url"`
}
