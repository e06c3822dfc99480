package api

import (
	"net/http"

	"mailpilot-backend/internal/auth/delivery"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, h *Handler) {
	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// SSE endpoint for sync progress events
		api.GET("/events", delivery.AuthMiddleware(h.authUsecase), func(c *gin.Context) {
			userID := c.GetString("userID")
			h.sseManager.ServeHTTP(c, userID)
		})

		// Account linking and management (protected)
		accounts := api.Group("/accounts")
		accounts.Use(delivery.AuthMiddleware(h.authUsecase))
		{
			accounts.GET("", h.accountHandler.ListAccounts)
			accounts.GET("/authorize-url", h.accountHandler.AuthorizeURL)
			accounts.GET("/callback", h.accountHandler.Callback)
			accounts.DELETE("/:id", h.accountHandler.DeleteAccount)
		}

		// Sync routes (protected)
		syncGroup := api.Group("/sync")
		syncGroup.Use(delivery.AuthMiddleware(h.authUsecase))
		{
			syncGroup.POST("/initial", h.syncHandler.InitialSync)
			syncGroup.POST("/incremental", h.syncHandler.IncrementalSync)
		}

		// Hybrid mailbox search (protected)
		api.POST("/search", delivery.AuthMiddleware(h.authUsecase), h.searchHandler.Search)

		// Grounded assistant chat, streamed (protected)
		api.POST("/chat", delivery.AuthMiddleware(h.authUsecase), h.chatHandler.Ask)
	}
}
