package ai

import (
	"context"

	"mailpilot-backend/pkg/gemini"
)

// geminiAdapter bridges pkg/gemini to the ChatService interface.
type geminiAdapter struct {
	svc *gemini.GeminiService
}

func (a *geminiAdapter) StreamChat(ctx context.Context, systemPrompt string, messages []Message, onChunk func(string) error) error {
	converted := make([]gemini.Message, 0, len(messages))
	for _, m := range messages {
		converted = append(converted, gemini.Message{Role: m.Role, Content: m.Content})
	}
	return a.svc.StreamChat(ctx, systemPrompt, converted, onChunk)
}
