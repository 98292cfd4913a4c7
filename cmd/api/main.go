package main

import (
	"log"
	"time"

	"receiptwise_go_backend/cmd/api/config"
	"receiptwise_go_backend/internal/api"
	"receiptwise_go_backend/internal/auth"
	"receiptwise_go_backend/internal/database"
	apperrors "receiptwise_go_backend/internal/errors"
	"receiptwise_go_backend/internal/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	apperrors.Init(cfg.Environment)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Init(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Initialize services
	usageService := services.NewUsageService(db)
	quotaPolicy := services.NewQuotaPolicy(cfg.FreeMonthlyLimit)
	gatewayService := services.NewGatewayService(cfg.LLMAPIKey, cfg.LLMBaseURL, cfg.ExtractionModel, cfg.AssistantModel)
	pipelineService := services.NewPipelineService(usageService, gatewayService, quotaPolicy, cfg.MaxReceiptChars, cfg.MaxPromptChars)
	stripeService := services.NewStripeService(cfg.StripeSecretKey, cfg.StripeWebhookSecret, cfg.StripePriceID, cfg.CheckoutSuccessURL, cfg.CheckoutCancelURL)
	pdfService := services.NewReceiptPDFService(cfg.MaxPDFPages)
	verifier := auth.NewJWKSVerifier(cfg.AuthDomain)

	r := gin.Default()

	// CORS middleware configuration
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	api.SetupRoutes(r, cfg, pipelineService, usageService, stripeService, pdfService, verifier)

	log.Printf("Server starting on port %s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
