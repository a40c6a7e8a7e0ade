package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strings"

	"formbot-backend/cache"
	"formbot-backend/handlers"
	"formbot-backend/repository"
	"formbot-backend/service"
	"formbot-backend/storage"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/generative-ai-go/genai"
	"github.com/joho/godotenv"
	"google.golang.org/api/option"
)

func main() {
	// Load .env file from project root (relative to cmd/server/)
	// Try current directory first, then project root
	if err := godotenv.Load(); err != nil {
		if err := godotenv.Load("../../.env"); err != nil {
			log.Printf("Warning: No .env file found, using environment variables")
		}
	}

	// Initialize DynamoDB client
	dynamoClient, err := initDynamo()
	if err != nil {
		log.Fatal("Failed to initialize DynamoDB:", err)
	}

	// Initialize storage
	fileStorage, err := storage.NewStorageFromEnv()
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	log.Println("Storage initialized")

	// Initialize repositories
	userRepo := repository.NewUserRepository(dynamoClient, tableName("USERS_TABLE", "formbot-users"))
	profileRepo := repository.NewProfileRepository(dynamoClient, tableName("PROFILES_TABLE", "formbot-profiles"))
	documentRepo := repository.NewDocumentRepository(dynamoClient, tableName("DOCUMENTS_TABLE", "formbot-documents"))

	// Initialize the field-mapping cache. The server still starts without
	// it; field-mapping endpoints answer 503 until it is reachable.
	mappingCache, err := cache.NewClientFromEnv()
	if err != nil {
		log.Printf("Warning: field-mapping cache not configured: %v", err)
	}

	// Initialize Gemini client
	geminiClient, err := initGemini()
	if err != nil {
		log.Fatal("Failed to initialize Gemini:", err)
	}

	// Initialize services
	userService := service.NewUserService(
		service.UserWithUserStore(userRepo),
		service.UserWithProfileStore(profileRepo),
	)

	profileService := service.NewProfileService(
		service.ProfileWithProfileStore(profileRepo),
	)

	webhookService := service.NewWebhookService(
		service.WebhookWithUserStore(userRepo),
		service.WebhookWithProfileStore(profileRepo),
	)

	fieldMapService := service.NewFieldMapService(
		service.FieldMapWithCache(acquireCache(mappingCache)),
		service.FieldMapWithCompleter(service.NewGeminiCompleter(geminiClient)),
	)

	documentService := service.NewDocumentService(
		service.DocumentWithDocumentStore(documentRepo),
		service.DocumentWithStorage(fileStorage),
	)

	// Initialize handlers
	userHandler := handlers.NewUserHandler(userService)
	profileHandler := handlers.NewProfileHandler(profileService)
	webhookHandler := handlers.NewWebhookHandler(webhookService)
	fieldMapHandler := handlers.NewFieldMapHandler(fieldMapService)
	documentHandler := handlers.NewDocumentHandler(documentService)

	// Setup Gin router
	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		log.Printf("Panic recovered: %v", recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "Internal server error",
			},
		})
	}))

	// Browser extension calls come from extension origins, so CORS stays open
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Content-Type"},
	}))

	// Health check endpoint
	r.GET("/health", handlers.Health)

	// API routes
	api := r.Group("/api")
	{
		// User endpoints
		api.POST("/user/register", userHandler.Register)
		api.POST("/user/register-by-email", userHandler.RegisterEmail)
		api.GET("/user/data", userHandler.GetUserData)
		api.POST("/user/data", userHandler.StoreUserData)

		// Profile endpoints
		api.GET("/profiles", profileHandler.ListProfiles)
		api.POST("/profiles", profileHandler.UpsertProfile)
		api.PUT("/profiles", profileHandler.UpsertProfile)
		api.GET("/sync", profileHandler.Sync)

		// Webhook ingestion
		api.POST("/webhook", webhookHandler.Ingest)

		// Field-mapping endpoints
		api.POST("/field-mapping", fieldMapHandler.HandleFieldMapping)
		api.POST("/batch-field-mapping", fieldMapHandler.HandleBatch)

		// Document endpoints
		api.POST("/documents/upload", documentHandler.Upload)
		api.POST("/documents", documentHandler.Create)
		api.GET("/documents", documentHandler.List)
		api.GET("/documents/presigned-url", documentHandler.PresignedURL)
		api.GET("/documents/:id", documentHandler.Get)
		api.DELETE("/documents/:id", documentHandler.Delete)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "NOT_FOUND",
				"message": "Endpoint not found",
			},
		})
	})

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s", port)
	server := &http.Server{
		Addr:    ":" + port,
		Handler: stripStagePrefix(r),
	}
	if err := server.ListenAndServe(); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}

func initDynamo() (*dynamodb.Client, error) {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "us-east-1"
	}

	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, err
	}

	log.Println("DynamoDB client initialized")
	return dynamodb.NewFromConfig(cfg), nil
}

func initGemini() (*genai.Client, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		log.Println("Warning: GEMINI_API_KEY not set")
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	log.Println("Gemini client initialized")
	return client, nil
}

func tableName(envVar, fallback string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return fallback
}

// acquireCache bridges the cache client to the service-layer acquisition
// contract. A nil client means the cache was never configured; every
// acquisition then reports unavailable.
func acquireCache(client *cache.Client) service.CacheAcquire {
	return func(ctx context.Context) (service.MappingStore, error) {
		if client == nil {
			return nil, cache.ErrUnavailable
		}
		return client.Acquire(ctx)
	}
}

// stripStagePrefix removes API-gateway stage prefixes before routing, so the
// same paths work behind a gateway and when called directly. It has to wrap
// the router: gin middleware runs after route matching.
func stripStagePrefix(next http.Handler) http.Handler {
	stages := []string{"/Prod", "/Stage", "/Dev"}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, stage := range stages {
			if r.URL.Path == stage || strings.HasPrefix(r.URL.Path, stage+"/") {
				r.URL.Path = strings.TrimPrefix(r.URL.Path, stage)
				if r.URL.Path == "" {
					r.URL.Path = "/"
				}
				break
			}
		}
		next.ServeHTTP(w, r)
	})
}
