package dto

type ChatMessage struct {
	Role    string `json:"role" binding:"required"`
	Content string `json:"content" binding:"required"`
}

type ChatRequest struct {
	AccountID string        `json:"accountId" binding:"required"`
	Messages  []ChatMessage `json:"messages" binding:"required,min=1"`
}
