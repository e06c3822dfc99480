package ai

import (
	"fmt"

	"mailpilot-backend/pkg/gemini"
)

// Config holds AI provider configuration.
type Config struct {
	Provider ProviderType // "gemini", "ollama" or "auto"

	GeminiAPIKey string

	OllamaBaseURL string // e.g. "http://localhost:11434"
	OllamaModel   string // e.g. "llama3", "mistral"
}

// NewChatService creates a ChatService based on the config. Switch provider
// by changing config.Provider.
func NewChatService(cfg Config) (ChatService, error) {
	switch cfg.Provider {
	case ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required for Gemini provider")
		}
		return &geminiAdapter{svc: gemini.NewGeminiService(cfg.GeminiAPIKey)}, nil

	case ProviderOllama:
		return NewOllamaService(cfg.OllamaBaseURL, cfg.OllamaModel), nil

	default:
		// Default to Gemini if an API key is available, otherwise Ollama.
		if cfg.GeminiAPIKey != "" {
			return &geminiAdapter{svc: gemini.NewGeminiService(cfg.GeminiAPIKey)}, nil
		}
		return NewOllamaService(cfg.OllamaBaseURL, cfg.OllamaModel), nil
	}
}
