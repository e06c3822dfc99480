package main

import (
	"context"
	"log"
	"strings"

	api "mailpilot-backend/cmd/api"
	accountDelivery "mailpilot-backend/internal/account/delivery"
	accountdomain "mailpilot-backend/internal/account/domain"
	accountRepo "mailpilot-backend/internal/account/repository"
	authdomain "mailpilot-backend/internal/auth/domain"
	authRepo "mailpilot-backend/internal/auth/repository"
	authUsecase "mailpilot-backend/internal/auth/usecase"
	calendardomain "mailpilot-backend/internal/calendar/domain"
	calendarRepo "mailpilot-backend/internal/calendar/repository"
	chatdomain "mailpilot-backend/internal/chat/domain"
	chatRepo "mailpilot-backend/internal/chat/repository"
	chatUsecase "mailpilot-backend/internal/chat/usecase"
	emailDelivery "mailpilot-backend/internal/email/delivery"
	emaildomain "mailpilot-backend/internal/email/domain"
	emailRepo "mailpilot-backend/internal/email/repository"
	"mailpilot-backend/internal/notification"
	syncDelivery "mailpilot-backend/internal/sync/delivery"
	syncUsecase "mailpilot-backend/internal/sync/usecase"
	"mailpilot-backend/pkg/ai"
	"mailpilot-backend/pkg/aurinko"
	"mailpilot-backend/pkg/chroma"
	"mailpilot-backend/pkg/config"
	"mailpilot-backend/pkg/database"
	"mailpilot-backend/pkg/sse"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.NewPostgresConnection(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Auto-migrate database schemas
	if err := db.AutoMigrate(
		&authdomain.User{},
		&accountdomain.Account{},
		&emaildomain.Thread{},
		&emaildomain.Email{},
		&emaildomain.EmailAddress{},
		&emaildomain.EmailAttachment{},
		&emaildomain.EmailSyncHistory{},
		&calendardomain.CalendarEvent{},
		&calendardomain.EventAttendee{},
		&calendardomain.EventAttachment{},
		&chatdomain.ChatbotInteraction{},
	); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Initialize repositories (dependency injection)
	userRepository := authRepo.NewUserRepository(db)
	accountRepository := accountRepo.NewAccountRepository(db)
	emailRepository := emailRepo.NewEmailRepository(db)
	historyRepository := emailRepo.NewEmailSyncHistoryRepository(db)
	eventRepository := calendarRepo.NewEventRepository(db)
	interactionRepository := chatRepo.NewChatbotInteractionRepository(db)

	// Initialize SSE Manager
	sseManager := sse.NewManager()
	go sseManager.Run()

	// Aurinko unified mail/calendar client
	aurinkoService := aurinko.NewService(cfg.AurinkoBaseURL)

	// Chroma vector store (optional; sync and search degrade without it)
	var chromaClient *chroma.ChromaClient
	if cfg.ChromaAPIKey != "" {
		chromaClient, err = chroma.NewChromaClient(cfg)
		if err != nil {
			log.Printf("[WARN] Failed to initialize Chroma client (search and chat grounding disabled): %v", err)
			chromaClient = nil
		} else {
			log.Println("Chroma client initialized successfully")
		}
	} else {
		log.Println("[WARN] CHROMA_API_KEY not set, search and chat grounding disabled")
	}

	// AI chat service
	aiService, err := ai.NewChatService(ai.Config{
		Provider:      ai.ProviderType(cfg.AIProvider),
		GeminiAPIKey:  cfg.GeminiApiKey,
		OllamaBaseURL: cfg.OllamaBaseURL,
		OllamaModel:   cfg.OllamaModel,
	})
	if err != nil {
		log.Printf("[WARN] Failed to initialize AI service (chat disabled): %v", err)
	} else {
		log.Printf("AI service initialized with provider: %s", cfg.AIProvider)
	}

	// Sync orchestrator; the nil checks keep a missing index from poisoning
	// the Indexer interface value
	var indexer syncUsecase.Indexer
	if chromaClient != nil {
		indexer = chromaClient
	}
	syncUc := syncUsecase.NewSyncUsecase(accountRepository, emailRepository, historyRepository, eventRepository, aurinkoService, indexer, cfg)
	syncUc.SetEventService(sseManager)
	defer syncUc.Stop()

	// Grounded chat
	var searcher chatUsecase.VectorSearcher
	if chromaClient != nil {
		searcher = chromaClient
	}
	chatUc := chatUsecase.NewChatUsecase(interactionRepository, accountRepository, searcher, aiService, cfg.ChatDailyLimit)

	// Auth (token validation only)
	authUc := authUsecase.NewAuthUsecase(userRepository, cfg)

	// Notification Service (Pub/Sub webhook relay), only when configured
	if cfg.GoogleProjectID != "" {
		topicName := cfg.GooglePubSubTopic
		if parts := strings.Split(topicName, "/"); len(parts) > 1 {
			topicName = parts[len(parts)-1]
		}
		if topicName == "" {
			topicName = "mailbox-updates"
		}

		notifService, err := notification.NewService(cfg.GoogleProjectID, topicName, syncUc, cfg.GoogleCredentials)
		if err != nil {
			log.Printf("[ERROR] Failed to initialize notification service: %v", err)
		} else {
			go notifService.Start(context.Background())
		}
	} else {
		log.Printf("[WARN] GoogleProjectID not configured, notification service disabled")
	}

	// HTTP delivery
	syncHandler := syncDelivery.NewSyncHandler(syncUc, accountRepository, cfg)
	var searchService emailDelivery.SearchService
	if chromaClient != nil {
		searchService = chromaClient
	}
	searchHandler := emailDelivery.NewSearchHandler(searchService, accountRepository)
	accountHandler := accountDelivery.NewAccountHandler(accountRepository, aurinkoService, syncUc, cfg)

	handler := api.NewHandler(authUc, chatUc, syncHandler, searchHandler, accountHandler, sseManager, cfg)

	log.Printf("Server starting on port %s", cfg.Port)
	if err := handler.Start(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
