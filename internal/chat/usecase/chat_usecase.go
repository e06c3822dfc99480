package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	accountrepo "mailpilot-backend/internal/account/repository"
	chatdomain "mailpilot-backend/internal/chat/domain"
	chatrepo "mailpilot-backend/internal/chat/repository"
	"mailpilot-backend/pkg/ai"
	"mailpilot-backend/pkg/chroma"
)

const retrievalTopK = 10

var (
	// ErrQuotaExceeded rejects the request before any model call is made.
	ErrQuotaExceeded = errors.New("daily chat quota exceeded")
	// ErrNoQuestion means the conversation has no user message to answer.
	ErrNoQuestion = errors.New("conversation has no user message")
	// ErrAccountNotFound covers both missing and foreign accounts.
	ErrAccountNotFound = errors.New("account not found")
)

// VectorSearcher retrieves nearest documents for RAG grounding. Implemented
// by *chroma.ChromaClient.
type VectorSearcher interface {
	VectorSearch(ctx context.Context, accountID, prompt string, limit int) ([]chroma.SearchHit, error)
}

// ChatUsecase answers questions about the user's mailbox, grounded on
// retrieved email documents, within a per-user daily quota.
type ChatUsecase interface {
	StreamAnswer(ctx context.Context, userID, accountID string, messages []ai.Message, onChunk func(string) error) error
}

type chatUsecase struct {
	interactionRepo chatrepo.ChatbotInteractionRepository
	accountRepo     accountrepo.AccountRepository
	searcher        VectorSearcher
	chatService     ai.ChatService
	dailyLimit      int
	now             func() time.Time
}

func NewChatUsecase(
	interactionRepo chatrepo.ChatbotInteractionRepository,
	accountRepo accountrepo.AccountRepository,
	searcher VectorSearcher,
	chatService ai.ChatService,
	dailyLimit int,
) ChatUsecase {
	if dailyLimit <= 0 {
		dailyLimit = 10
	}
	return &chatUsecase{
		interactionRepo: interactionRepo,
		accountRepo:     accountRepo,
		searcher:        searcher,
		chatService:     chatService,
		dailyLimit:      dailyLimit,
		now:             time.Now,
	}
}

// StreamAnswer enforces the quota, retrieves grounding documents, streams the
// completion and only then charges the quota: failed generations are free.
func (u *chatUsecase) StreamAnswer(ctx context.Context, userID, accountID string, messages []ai.Message, onChunk func(string) error) error {
	day := chatdomain.DayKey(u.now())
	count, err := u.interactionRepo.CountForDay(userID, day)
	if err != nil {
		return fmt.Errorf("failed to check quota: %w", err)
	}
	if count >= u.dailyLimit {
		return ErrQuotaExceeded
	}

	account, err := u.accountRepo.GetByID(accountID)
	if err != nil {
		return err
	}
	if account == nil || account.UserID != userID {
		return ErrAccountNotFound
	}

	question := latestUserMessage(messages)
	if question == "" {
		return ErrNoQuestion
	}

	var contexts []string
	if u.searcher != nil {
		hits, err := u.searcher.VectorSearch(ctx, accountID, question, retrievalTopK)
		if err != nil {
			// Retrieval failure degrades to an ungrounded answer rather than
			// failing the chat outright.
			log.Printf("[Chat] Retrieval failed for account %s: %v", accountID, err)
		} else {
			for _, hit := range hits {
				contexts = append(contexts, hit.Document)
			}
		}
	}

	systemPrompt := BuildSystemPrompt(contexts, u.now())

	if u.chatService == nil {
		return fmt.Errorf("no chat provider configured")
	}
	if err := u.chatService.StreamChat(ctx, systemPrompt, messages, onChunk); err != nil {
		return fmt.Errorf("completion failed: %w", err)
	}

	// Charged only after the stream completed successfully.
	if err := u.interactionRepo.Increment(userID, day); err != nil {
		log.Printf("[Chat] Failed to increment quota for user %s: %v", userID, err)
	}
	return nil
}

func latestUserMessage(messages []ai.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return strings.TrimSpace(messages[i].Content)
		}
	}
	return ""
}

// BuildSystemPrompt embeds the retrieved documents verbatim into the
// assistant's instructions.
func BuildSystemPrompt(contexts []string, now time.Time) string {
	var sb strings.Builder
	sb.WriteString("You are an AI email assistant embedded in a mail client. ")
	sb.WriteString("The time is now " + now.Format(time.RFC1123) + ".\n\n")
	sb.WriteString("START CONTEXT BLOCK\n")
	for _, doc := range contexts {
		sb.WriteString(doc)
		sb.WriteString("\n---\n")
	}
	sb.WriteString("END OF CONTEXT BLOCK\n\n")
	sb.WriteString("Take into account the context block when answering. ")
	sb.WriteString("If the context does not contain the answer, say \"I'm sorry, I don't have enough information to answer that.\" ")
	sb.WriteString("Do not invent anything that is not drawn directly from the context. ")
	sb.WriteString("Answer in complete sentences and be concise.")
	return sb.String()
}
