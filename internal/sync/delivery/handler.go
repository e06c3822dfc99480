package delivery

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	accountRepo "mailpilot-backend/internal/account/repository"
	syncdto "mailpilot-backend/internal/sync/dto"
	"mailpilot-backend/internal/sync/usecase"
	"mailpilot-backend/pkg/config"
)

type SyncHandler struct {
	syncUsecase usecase.SyncUsecase
	accountRepo accountRepo.AccountRepository
	config      *config.Config
}

func NewSyncHandler(syncUc usecase.SyncUsecase, accRepo accountRepo.AccountRepository, cfg *config.Config) *SyncHandler {
	return &SyncHandler{
		syncUsecase: syncUc,
		accountRepo: accRepo,
		config:      cfg,
	}
}

// ownedAccountID validates the request body and checks the account belongs to
// the authenticated user. Foreign accounts get the same 404 as missing ones.
func (h *SyncHandler) ownedAccountID(c *gin.Context) (string, bool) {
	var req syncdto.SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, syncdto.ErrorResponse{Error: "accountId is required", Code: "INVALID_REQUEST"})
		return "", false
	}

	userID := c.GetString("userID")
	account, err := h.accountRepo.GetByID(req.AccountID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, syncdto.ErrorResponse{Error: err.Error(), Code: "FAILED_TO_SYNC"})
		return "", false
	}
	if account == nil || account.UserID != userID {
		c.JSON(http.StatusNotFound, syncdto.ErrorResponse{Error: "account not found", Code: "ACCOUNT_NOT_FOUND"})
		return "", false
	}

	return req.AccountID, true
}

func (h *SyncHandler) InitialSync(c *gin.Context) {
	accountID, ok := h.ownedAccountID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.config.InitialSyncTimeout)
	defer cancel()

	token, err := h.syncUsecase.PerformInitialSync(ctx, accountID)
	if err != nil {
		h.writeSyncError(c, accountID, err)
		return
	}

	c.JSON(http.StatusOK, syncdto.SyncResponse{AccountID: accountID, DeltaToken: token})
}

func (h *SyncHandler) IncrementalSync(c *gin.Context) {
	accountID, ok := h.ownedAccountID(c)
	if !ok {
		return
	}

	token, err := h.syncUsecase.PerformIncrementalSync(c.Request.Context(), accountID)
	if err != nil {
		h.writeSyncError(c, accountID, err)
		return
	}

	c.JSON(http.StatusOK, syncdto.SyncResponse{AccountID: accountID, DeltaToken: token})
}

func (h *SyncHandler) writeSyncError(c *gin.Context, accountID string, err error) {
	switch {
	case errors.Is(err, usecase.ErrAccountNotFound):
		c.JSON(http.StatusNotFound, syncdto.ErrorResponse{Error: "account not found", Code: "ACCOUNT_NOT_FOUND"})
	case errors.Is(err, usecase.ErrNoDeltaToken):
		c.JSON(http.StatusConflict, syncdto.ErrorResponse{Error: "account has no delta token, run an initial sync first", Code: "NO_DELTA_TOKEN"})
	case errors.Is(err, usecase.ErrSyncInProgress):
		c.JSON(http.StatusConflict, syncdto.ErrorResponse{Error: "a sync is already running for this account", Code: "SYNC_IN_PROGRESS"})
	case errors.Is(err, usecase.ErrCalendarSync):
		log.Printf("[SyncHandler] Calendar sync failed for account %s: %v", accountID, err)
		c.JSON(http.StatusInternalServerError, syncdto.ErrorResponse{Error: err.Error(), Code: "FAILED_TO_SYNC_CALENDAR"})
	case errors.Is(err, context.DeadlineExceeded):
		log.Printf("[SyncHandler] Sync timed out for account %s", accountID)
		c.JSON(http.StatusGatewayTimeout, syncdto.ErrorResponse{Error: "sync did not finish in time", Code: "FAILED_TO_SYNC"})
	default:
		log.Printf("[SyncHandler] Sync failed for account %s: %v", accountID, err)
		c.JSON(http.StatusInternalServerError, syncdto.ErrorResponse{Error: err.Error(), Code: "FAILED_TO_SYNC"})
	}
}
