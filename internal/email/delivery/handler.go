package delivery

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	accountRepo "mailpilot-backend/internal/account/repository"
	emaildto "mailpilot-backend/internal/email/dto"
	"mailpilot-backend/pkg/chroma"
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 50
)

// SearchService is the slice of the vector store the handler needs.
type SearchService interface {
	HybridSearch(ctx context.Context, accountID, term string, limit int) ([]chroma.SearchHit, error)
}

type SearchHandler struct {
	searchService SearchService
	accountRepo   accountRepo.AccountRepository
}

func NewSearchHandler(searchService SearchService, accRepo accountRepo.AccountRepository) *SearchHandler {
	return &SearchHandler{
		searchService: searchService,
		accountRepo:   accRepo,
	}
}

// Search runs a hybrid vector/keyword lookup over the caller's indexed mail.
// An unavailable or failing index degrades to an empty hit list rather than
// an error; the mailbox itself is still intact.
func (h *SearchHandler) Search(c *gin.Context) {
	var req emaildto.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "accountId and query are required"})
		return
	}

	userID := c.GetString("userID")
	account, err := h.accountRepo.GetByID(req.AccountID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if account == nil || account.UserID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
		return
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	if h.searchService == nil {
		c.JSON(http.StatusOK, emaildto.SearchResponse{Hits: []chroma.SearchHit{}})
		return
	}

	hits, err := h.searchService.HybridSearch(c.Request.Context(), req.AccountID, req.Query, limit)
	if err != nil {
		log.Printf("[SearchHandler] Search failed for account %s: %v", req.AccountID, err)
		c.JSON(http.StatusOK, emaildto.SearchResponse{Hits: []chroma.SearchHit{}})
		return
	}
	if hits == nil {
		hits = []chroma.SearchHit{}
	}

	c.JSON(http.StatusOK, emaildto.SearchResponse{Hits: hits})
}
