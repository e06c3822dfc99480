package delivery

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	chatdto "mailpilot-backend/internal/chat/dto"
	"mailpilot-backend/internal/chat/usecase"
	"mailpilot-backend/pkg/ai"
)

type ChatHandler struct {
	chatUsecase usecase.ChatUsecase
}

func NewChatHandler(chatUc usecase.ChatUsecase) *ChatHandler {
	return &ChatHandler{chatUsecase: chatUc}
}

// Ask streams the assistant answer as plain text chunks. Quota and ownership
// failures are reported as JSON before the first chunk; once streaming has
// started the connection is simply closed on error.
func (h *ChatHandler) Ask(c *gin.Context) {
	var req chatdto.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "accountId and a non-empty messages array are required"})
		return
	}

	messages := make([]ai.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, ai.Message{Role: m.Role, Content: m.Content})
	}

	userID := c.GetString("userID")

	c.Writer.Header().Set("Content-Type", "text/plain; charset=utf-8")
	c.Writer.Header().Set("Cache-Control", "no-cache")

	flusher, _ := c.Writer.(http.Flusher)
	started := false

	err := h.chatUsecase.StreamAnswer(c.Request.Context(), userID, req.AccountID, messages, func(chunk string) error {
		if !started {
			c.Status(http.StatusOK)
			started = true
		}
		if _, err := c.Writer.WriteString(chunk); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	})

	if err == nil {
		return
	}

	if started {
		// Headers already sent; nothing useful left to tell the client.
		log.Printf("[ChatHandler] Stream aborted for user %s: %v", userID, err)
		return
	}

	switch {
	case errors.Is(err, usecase.ErrQuotaExceeded):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "daily chat limit reached"})
	case errors.Is(err, usecase.ErrAccountNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
	case errors.Is(err, usecase.ErrNoQuestion):
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation contains no user message"})
	default:
		log.Printf("[ChatHandler] Chat failed for user %s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate answer"})
	}
}
