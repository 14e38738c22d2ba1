package router

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/siralabs/sira-api/config"
	"github.com/siralabs/sira-api/database"
	"github.com/siralabs/sira-api/handlers"
	auth_handlers "github.com/siralabs/sira-api/handlers/auth"
	chat_handlers "github.com/siralabs/sira-api/handlers/chat"
	profile_handlers "github.com/siralabs/sira-api/handlers/profile"
	recommendation_handlers "github.com/siralabs/sira-api/handlers/recommendation"
	"github.com/siralabs/sira-api/services"
	"github.com/siralabs/sira-api/services/mistral"
	"github.com/siralabs/sira-api/services/pinecone"
	"github.com/siralabs/sira-api/utils/auth"
	"github.com/siralabs/sira-api/utils/cache"
	"github.com/siralabs/sira-api/utils/middleware"
)

func SetupRoutes(app *fiber.App, store database.Storage) {
	env, err := config.Get()
	if err != nil {
		log.Fatal(err)
	}

	if env.JWT_SECRET == "" {
		log.Fatal("JWT_SECRET environment variable is not set")
	}

	jwtIssuer := env.JWT_ISSUER
	if jwtIssuer == "" {
		jwtIssuer = "sira-api"
	}

	jwtManager := auth.NewJWTManager(auth.JWTConfig{
		Secret:        env.JWT_SECRET,
		Expiry:        24 * time.Hour,
		RefreshExpiry: 7 * 24 * time.Hour,
		Issuer:        jwtIssuer,
	})

	db := store.GetDB()

	// Redis is optional; retrieval falls back to uncached searches without it
	redisURL := env.REDIS_URL
	if redisURL == "" {
		redisURL = "redis://localhost:6379/0"
	}
	redisCache, err := cache.NewRedisCache(redisURL)
	if err != nil {
		log.Printf("Warning: Failed to connect to Redis: %v. Retrieval caching will be disabled.", err)
		redisCache = nil
	}

	mistralClient := mistral.NewClient(mistral.Config{
		APIKey:     env.MISTRAL_API_KEY,
		Model:      env.MISTRAL_MODEL,
		EmbedModel: env.MISTRAL_EMBED_MODEL,
		Timeout:    env.AI_REQUEST_TIMEOUT,
	})

	pineconeClient := pinecone.NewClient(pinecone.Config{
		APIKey:    env.PINECONE_API_KEY,
		IndexHost: env.PINECONE_INDEX_HOST,
	}, mistralClient)

	// Service layer
	queryService := services.NewQueryService()
	promptService := services.NewPromptService()
	searcher := services.NewPineconeSearcher(pineconeClient)
	retrievalService := services.NewRetrievalService(searcher, queryService, redisCache)
	completer := services.NewMistralCompleter(mistralClient)
	recommendationService := services.NewRecommendationService(db, retrievalService, promptService, queryService, completer)
	conversationService := services.NewConversationService(db, completer, recommendationService)
	profileService := services.NewProfileService(db)

	// Middleware and handlers
	authMiddleware := middleware.NewAuthMiddleware(jwtManager, db)
	authHandler := auth_handlers.NewAuthHandler(db, jwtManager)
	profileHandler := profile_handlers.NewProfileHandler(db, profileService)
	recommendationHandler := recommendation_handlers.NewRecommendationHandler(db, recommendationService)
	chatHandler := chat_handlers.NewChatHandler(db, conversationService)

	// Health check endpoint (public)
	app.Get("/ping", handlers.HandleCheckHealth(store))

	// API v1 group
	api := app.Group("/api/v1")

	// Auth routes (public)
	authGroup := api.Group("/auth")
	authGroup.Post("/register", authHandler.Register)
	authGroup.Post("/login", authHandler.Login)
	authGroup.Post("/refresh", authHandler.RefreshToken)

	// Profile routes (protected)
	profiles := api.Group("/profiles", authMiddleware.Required())
	profiles.Post("/", profileHandler.CreateProfile)
	profiles.Get("/", profileHandler.ListProfiles)
	profiles.Get("/:id", profileHandler.GetProfile)
	profiles.Put("/:id", profileHandler.UpdateProfile)
	profiles.Delete("/:id", profileHandler.DeleteProfile)
	profiles.Post("/:id/status", profileHandler.SetStatus)
	profiles.Put("/:id/academic-record", profileHandler.UpsertAcademicRecord)
	profiles.Put("/:id/preferences", profileHandler.UpsertPreferences)
	profiles.Get("/:id/recommendations", recommendationHandler.ListByProfile)

	// Recommendation routes (protected)
	recommendations := api.Group("/recommendations", authMiddleware.Required())
	recommendations.Post("/generate", recommendationHandler.Generate)
	recommendations.Post("/generate/stream", recommendationHandler.GenerateStream)
	recommendations.Get("/:id", recommendationHandler.Get)
	recommendations.Post("/:id/feedback", recommendationHandler.SubmitFeedback)

	// Conversation routes (protected)
	chat := api.Group("/chat", authMiddleware.Required())
	chat.Post("/sessions", chatHandler.CreateSession)
	chat.Get("/sessions", chatHandler.ListSessions)
	chat.Get("/sessions/:id", chatHandler.GetSession)
	chat.Put("/sessions/:id", chatHandler.UpdateSession)
	chat.Delete("/sessions/:id", chatHandler.DeleteSession)
	chat.Post("/sessions/:id/archive", chatHandler.ArchiveSession)
	chat.Get("/sessions/:id/messages", chatHandler.GetMessages)
	chat.Post("/sessions/:id/messages", chatHandler.SendMessage)
	chat.Post("/sessions/:id/recommendation", chatHandler.GenerateRecommendation)
}
