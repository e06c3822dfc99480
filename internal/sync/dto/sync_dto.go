package dto

type SyncRequest struct {
	AccountID string `json:"accountId" binding:"required"`
}

type SyncResponse struct {
	AccountID  string `json:"accountId"`
	DeltaToken string `json:"deltaToken"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
