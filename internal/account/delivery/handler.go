package delivery

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	accountdomain "mailpilot-backend/internal/account/domain"
	accountdto "mailpilot-backend/internal/account/dto"
	accountRepo "mailpilot-backend/internal/account/repository"
	syncusecase "mailpilot-backend/internal/sync/usecase"
	"mailpilot-backend/pkg/aurinko"
	"mailpilot-backend/pkg/config"
	"mailpilot-backend/pkg/utils/crypto"
)

type AccountHandler struct {
	accountRepo accountRepo.AccountRepository
	aurinkoSvc  *aurinko.Service
	syncUsecase syncusecase.SyncUsecase
	config      *config.Config
}

func NewAccountHandler(accRepo accountRepo.AccountRepository, aurinkoSvc *aurinko.Service, syncUc syncusecase.SyncUsecase, cfg *config.Config) *AccountHandler {
	return &AccountHandler{
		accountRepo: accRepo,
		aurinkoSvc:  aurinkoSvc,
		syncUsecase: syncUc,
		config:      cfg,
	}
}

// AuthorizeURL returns the provider consent URL. The authenticated user's ID
// rides in the OAuth state parameter and is checked again on callback.
func (h *AccountHandler) AuthorizeURL(c *gin.Context) {
	userID := c.GetString("userID")
	oauthCfg := aurinko.OAuthConfig(h.config.AurinkoBaseURL, h.config.AurinkoClientID, h.config.AurinkoClientSecret, h.config.AurinkoRedirectURL)
	c.JSON(http.StatusOK, accountdto.AuthorizeURLResponse{URL: oauthCfg.AuthCodeURL(userID)})
}

// Callback finishes the link: exchanges the code, fetches the provider
// account identity, and stores the account with its token encrypted at rest.
func (h *AccountHandler) Callback(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing authorization code"})
		return
	}

	userID := c.GetString("userID")
	if state := c.Query("state"); state != "" && state != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "state mismatch"})
		return
	}

	oauthCfg := aurinko.OAuthConfig(h.config.AurinkoBaseURL, h.config.AurinkoClientID, h.config.AurinkoClientSecret, h.config.AurinkoRedirectURL)
	token, err := aurinko.ExchangeCode(c.Request.Context(), oauthCfg, code)
	if err != nil {
		log.Printf("[AccountHandler] Code exchange failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to exchange authorization code"})
		return
	}

	info, err := h.aurinkoSvc.GetAccountInfo(c.Request.Context(), token.AccessToken)
	if err != nil {
		log.Printf("[AccountHandler] Account info lookup failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to fetch account info"})
		return
	}

	// Without a key the token is stored as-is; loadAccount applies the same
	// conditional when reading it back.
	stored := token.AccessToken
	if h.config.EncryptionKey != "" {
		encrypted, err := crypto.Encrypt(token.AccessToken, h.config.EncryptionKey)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store account credentials"})
			return
		}
		stored = encrypted
	}

	account := &accountdomain.Account{
		ID:          uuid.New().String(),
		UserID:      userID,
		Email:       info.Email,
		Name:        info.Name,
		Provider:    info.Type,
		AccessToken: stored,
	}
	if err := h.accountRepo.Create(account); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("failed to save account: %v", err)})
		return
	}

	log.Printf("[AccountHandler] Linked account %s (%s) for user %s", account.ID, account.Email, userID)
	c.JSON(http.StatusOK, toAccountResponse(account))
}

func (h *AccountHandler) ListAccounts(c *gin.Context) {
	userID := c.GetString("userID")
	accounts, err := h.accountRepo.GetByUserID(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := accountdto.AccountsResponse{Accounts: make([]accountdto.AccountResponse, 0, len(accounts))}
	for _, a := range accounts {
		resp.Accounts = append(resp.Accounts, toAccountResponse(a))
	}
	c.JSON(http.StatusOK, resp)
}

// DeleteAccount tears down everything the account owns: relational rows,
// sync history, and search-index documents.
func (h *AccountHandler) DeleteAccount(c *gin.Context) {
	accountID := c.Param("id")
	userID := c.GetString("userID")

	account, err := h.accountRepo.GetByID(accountID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if account == nil || account.UserID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
		return
	}

	if err := h.syncUsecase.TeardownAccount(c.Request.Context(), accountID); err != nil {
		log.Printf("[AccountHandler] Teardown failed for account %s: %v", accountID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove account"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "account removed"})
}

func toAccountResponse(a *accountdomain.Account) accountdto.AccountResponse {
	return accountdto.AccountResponse{
		ID:        a.ID,
		Email:     a.Email,
		Name:      a.Name,
		Provider:  a.Provider,
		Synced:    a.NextDeltaToken != "",
		CreatedAt: a.CreatedAt,
	}
}
