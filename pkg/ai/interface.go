package ai

import "context"

// Message is one turn of a chat conversation.
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// ChatService is the interface for streaming chat completion providers.
// Implement this interface to add new providers (Gemini, Ollama, OpenAI, ...).
type ChatService interface {
	// StreamChat invokes the model and forwards each text chunk to onChunk
	// as it arrives. Returning an error from onChunk aborts the stream.
	StreamChat(ctx context.Context, systemPrompt string, messages []Message, onChunk func(string) error) error
}

// ProviderType represents the AI provider type.
type ProviderType string

const (
	ProviderGemini ProviderType = "gemini"
	ProviderOllama ProviderType = "ollama"
	ProviderAuto   ProviderType = "auto"
)
