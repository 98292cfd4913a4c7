package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"receiptwise_go_backend/cmd/api/config"
	"receiptwise_go_backend/internal/auth"
	apperrors "receiptwise_go_backend/internal/errors"
	"receiptwise_go_backend/internal/models"
	"receiptwise_go_backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v79"
)

// SetupRoutes registers the full HTTP surface.
func SetupRoutes(
	r *gin.Engine,
	cfg *config.Config,
	pipeline *services.PipelineService,
	store services.UsageStore,
	stripeService *services.StripeService,
	pdfService *services.ReceiptPDFService,
	verifier auth.TokenVerifier,
) {
	r.GET("/health", healthHandler(cfg))
	r.GET("/", rootHandler(cfg))

	authenticated := auth.Middleware(verifier, store)

	apiGroup := r.Group("/api")
	{
		apiGroup.POST("/process-receipt", authenticated, processReceiptHandler(pipeline))
		apiGroup.POST("/process-receipt-pdf", authenticated, processReceiptPDFHandler(pipeline, pdfService, store))
		apiGroup.POST("/ai-assistant", authenticated, aiAssistantHandler(pipeline))
		apiGroup.GET("/user/quota", authenticated, userQuotaHandler(pipeline))
		apiGroup.POST("/subscription/checkout", authenticated, checkoutHandler(stripeService))
		apiGroup.POST("/stripe/webhook", stripeWebhookHandler(stripeService, store))
	}

	r.NoRoute(func(c *gin.Context) {
		apperrors.HandleError(c, apperrors.New404Error("Endpoint not found"))
	})
}

func healthHandler(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
			"service":     cfg.ServiceName,
			"version":     cfg.Version,
			"environment": cfg.Environment,
		})
	}
}

func rootHandler(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": cfg.ServiceName,
			"version": cfg.Version,
			"endpoints": []string{
				"GET /health",
				"POST /api/process-receipt",
				"POST /api/process-receipt-pdf",
				"POST /api/ai-assistant",
				"GET /api/user/quota",
				"POST /api/subscription/checkout",
				"POST /api/stripe/webhook",
			},
		})
	}
}

type processReceiptRequest struct {
	ExtractedText string `json:"extractedText"`
}

func processReceiptHandler(pipeline *services.PipelineService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req processReceiptRequest
		// A malformed body leaves the text empty and fails validation
		// inside the pipeline, which also logs the rejection.
		_ = c.ShouldBindJSON(&req)

		result, err := pipeline.ProcessReceipt(c.Request.Context(), auth.UserID(c), c.FullPath(), req.ExtractedText)
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success":        true,
			"receipt":        result.Receipt,
			"processingTime": result.ProcessingTime,
			"quota":          result.Quota,
		})
	}
}

func processReceiptPDFHandler(pipeline *services.PipelineService, pdfService *services.ReceiptPDFService, store services.UsageStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		userID := auth.UserID(c)

		file, err := c.FormFile("file")
		if err != nil {
			store.LogError(c.Request.Context(), userID, c.FullPath(), "missing PDF upload", time.Since(start))
			apperrors.HandleError(c, apperrors.New400Error(apperrors.CodeInvalidPDF, "A PDF file upload is required"))
			return
		}

		tmpPath := filepath.Join(os.TempDir(), uuid.New().String()+".pdf")
		if err := c.SaveUploadedFile(file, tmpPath); err != nil {
			apperrors.HandleError(c, apperrors.New500Error(apperrors.CodeProcessingFailed, err))
			return
		}
		defer os.Remove(tmpPath)

		text, err := pdfService.ExtractText(tmpPath)
		if err != nil {
			store.LogError(c.Request.Context(), userID, c.FullPath(), err.Error(), time.Since(start))
			apperrors.HandleError(c, apperrors.New400Error(apperrors.CodeInvalidPDF, "Could not extract text from the PDF"))
			return
		}

		result, err := pipeline.ProcessReceipt(c.Request.Context(), userID, c.FullPath(), text)
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success":        true,
			"receipt":        result.Receipt,
			"processingTime": result.ProcessingTime,
			"quota":          result.Quota,
		})
	}
}

type assistantRequest struct {
	Prompt string `json:"prompt"`
}

func aiAssistantHandler(pipeline *services.PipelineService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req assistantRequest
		_ = c.ShouldBindJSON(&req)

		result, err := pipeline.AnswerPrompt(c.Request.Context(), auth.UserID(c), c.FullPath(), req.Prompt)
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"response":       result.Response,
			"processingTime": result.ProcessingTime,
			"quotaInfo":      result.Quota,
		})
	}
}

func userQuotaHandler(pipeline *services.PipelineService) gin.HandlerFunc {
	return func(c *gin.Context) {
		quota := pipeline.QuotaSummary(c.Request.Context(), auth.UserID(c))
		c.JSON(http.StatusOK, quota)
	}
}

func checkoutHandler(stripeService *services.StripeService) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := stripeService.CreateSubscriptionCheckout(auth.UserID(c))
		if err != nil {
			apperrors.HandleError(c, apperrors.New500Error(apperrors.CodeInternalError, err))
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"url":       session.URL,
			"sessionId": session.ID,
		})
	}
}

func stripeWebhookHandler(stripeService *services.StripeService, store services.UsageStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const maxBodyBytes = int64(65536)
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)

		payload, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Error reading request body"})
			return
		}

		event, err := stripeService.VerifyWebhook(payload, c.GetHeader("Stripe-Signature"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to verify webhook signature"})
			return
		}

		switch event.Type {
		case "customer.subscription.created", "customer.subscription.updated":
			if err := applySubscriptionUpdate(c, store, event.Data.Raw, false); err != nil {
				apperrors.HandleError(c, apperrors.New500Error(apperrors.CodeInternalError, err))
				return
			}
		case "customer.subscription.deleted":
			if err := applySubscriptionUpdate(c, store, event.Data.Raw, true); err != nil {
				apperrors.HandleError(c, apperrors.New500Error(apperrors.CodeInternalError, err))
				return
			}
		default:
			log.Debug().Str("type", string(event.Type)).Msg("Unhandled Stripe event type")
		}

		c.JSON(http.StatusOK, gin.H{"received": true})
	}
}

func applySubscriptionUpdate(c *gin.Context, store services.UsageStore, raw json.RawMessage, deleted bool) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		return fmt.Errorf("failed to parse subscription event: %v", err)
	}

	userID := sub.Metadata["user_id"]
	if userID == "" {
		log.Warn().Str("subscription", sub.ID).Msg("Subscription event without user_id metadata")
		return nil
	}

	if deleted || (sub.Status != stripe.SubscriptionStatusActive && sub.Status != stripe.SubscriptionStatusTrialing) {
		return store.SetSubscription(c.Request.Context(), userID, models.SubscriptionNone, nil)
	}

	expiresAt := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
	return store.SetSubscription(c.Request.Context(), userID, models.SubscriptionActive, &expiresAt)
}
