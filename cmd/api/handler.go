package api

import (
	accountDelivery "mailpilot-backend/internal/account/delivery"
	authUsecase "mailpilot-backend/internal/auth/usecase"
	chatDelivery "mailpilot-backend/internal/chat/delivery"
	chatUsecasePkg "mailpilot-backend/internal/chat/usecase"
	emailDelivery "mailpilot-backend/internal/email/delivery"
	syncDelivery "mailpilot-backend/internal/sync/delivery"
	"mailpilot-backend/pkg/config"
	"mailpilot-backend/pkg/sse"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	authUsecase    authUsecase.AuthUsecase
	syncHandler    *syncDelivery.SyncHandler
	chatHandler    *chatDelivery.ChatHandler
	searchHandler  *emailDelivery.SearchHandler
	accountHandler *accountDelivery.AccountHandler
	sseManager     *sse.Manager
	config         *config.Config
}

func NewHandler(
	authUc authUsecase.AuthUsecase,
	chatUc chatUsecasePkg.ChatUsecase,
	syncHandler *syncDelivery.SyncHandler,
	searchHandler *emailDelivery.SearchHandler,
	accountHandler *accountDelivery.AccountHandler,
	sseManager *sse.Manager,
	cfg *config.Config,
) *Handler {
	return &Handler{
		authUsecase:    authUc,
		syncHandler:    syncHandler,
		chatHandler:    chatDelivery.NewChatHandler(chatUc),
		searchHandler:  searchHandler,
		accountHandler: accountHandler,
		sseManager:     sseManager,
		config:         cfg,
	}
}

func (h *Handler) Start(addr string) error {
	r := gin.Default()
	gin.SetMode(gin.ReleaseMode)

	// CORS middleware
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	SetupRoutes(r, h)

	return r.Run(addr)
}
