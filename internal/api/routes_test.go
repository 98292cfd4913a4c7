package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"receiptwise_go_backend/cmd/api/config"
	"receiptwise_go_backend/internal/api"
	"receiptwise_go_backend/internal/models"
	"receiptwise_go_backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

type fakeVerifier struct{}

func (fakeVerifier) VerifyToken(token string) (string, error) {
	if token == "valid-token" {
		return "auth0|e2e-user", nil
	}
	return "", errors.New("invalid token")
}

type fakeStore struct {
	usage    *models.UserUsage
	getErr   error
	recorded int
	logged   int
}

func (f *fakeStore) GetUsage(ctx context.Context, userID string) (*models.UserUsage, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.usage, nil
}

func (f *fakeStore) RecordUsage(ctx context.Context, userID string, now time.Time) error {
	f.recorded++
	return nil
}

func (f *fakeStore) SetSubscription(ctx context.Context, userID, status string, expiresAt *time.Time) error {
	return nil
}

func (f *fakeStore) LogError(ctx context.Context, userID, endpoint, message string, elapsed time.Duration) {
	f.logged++
}

type fakeGateway struct {
	receipt *models.Receipt
	answer  string
	err     error
	calls   int
}

func (f *fakeGateway) ExtractReceipt(ctx context.Context, text string) (*models.Receipt, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.receipt, nil
}

func (f *fakeGateway) AnswerQuestion(ctx context.Context, prompt string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func newTestRouter(store *fakeStore, gateway *fakeGateway) *gin.Engine {
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Environment:      "test",
		ServiceName:      "receiptwise-api",
		Version:          "test",
		MaxReceiptChars:  10000,
		MaxPromptChars:   2000,
		MaxPDFPages:      5,
		FreeMonthlyLimit: 10,
	}

	pipeline := services.NewPipelineService(store, gateway, services.NewQuotaPolicy(cfg.FreeMonthlyLimit), cfg.MaxReceiptChars, cfg.MaxPromptChars)
	stripeService := services.NewStripeService("", "", "", "", "")
	pdfService := services.NewReceiptPDFService(cfg.MaxPDFPages)

	r := gin.New()
	api.SetupRoutes(r, cfg, pipeline, store, stripeService, pdfService, fakeVerifier{})
	return r
}

func normalReceipt() *models.Receipt {
	return &models.Receipt{
		ID:        "receipt-1",
		StoreName: "FreshMart",
		Date:      "2024-03-15",
		Category:  "Groceries",
		Items: []models.LineItem{
			{ID: "item-1", Name: "TOMATOES", Price: 2.99, Quantity: 0.3, Category: "Groceries"},
			{ID: "item-2", Name: "MILK", Price: 3.99, Quantity: 1.0, Category: "Groceries"},
		},
		ScannedTime: time.Now().UTC(),
	}
}

func freeUsage(count int) *models.UserUsage {
	return &models.UserUsage{
		UserID:             "auth0|e2e-user",
		SubscriptionStatus: models.SubscriptionNone,
		MonthlyUsage:       datatypes.JSONMap{services.MonthKey(time.Now().UTC()): float64(count)},
	}
}

func postJSON(r *gin.Engine, path, token string, payload interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	body, _ := json.Marshal(payload)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	r.ServeHTTP(w, req)

	var decoded map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &decoded)
	return w, decoded
}

func TestHealthEndpoint(t *testing.T) {
	r := newTestRouter(&fakeStore{}, &fakeGateway{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "receiptwise-api", body["service"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestRootDescriptor(t *testing.T) {
	r := newTestRouter(&fakeStore{}, &fakeGateway{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body["endpoints"])
}

func TestUnmatchedRouteReturnsNotFound(t *testing.T) {
	r := newTestRouter(&fakeStore{}, &fakeGateway{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/no/such/route", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "NOT_FOUND", body["code"])
}

func TestProcessReceiptRequiresAuth(t *testing.T) {
	store := &fakeStore{}
	gateway := &fakeGateway{}
	r := newTestRouter(store, gateway)

	w, body := postJSON(r, "/api/process-receipt", "", map[string]string{"extractedText": "MILK $3.99"})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "AUTH_REQUIRED", body["code"])
	assert.Equal(t, 0, gateway.calls)
}

func TestProcessReceiptEndToEnd(t *testing.T) {
	store := &fakeStore{usage: freeUsage(3)}
	gateway := &fakeGateway{receipt: normalReceipt()}
	r := newTestRouter(store, gateway)

	w, body := postJSON(r, "/api/process-receipt", "valid-token", map[string]string{"extractedText": "TOMATOES $2.99/lb 0.3 lb $0.90\nMILK $3.99"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, 1, store.recorded)

	receipt := body["receipt"].(map[string]interface{})
	items := receipt["items"].([]interface{})
	require.Len(t, items, 2)
	for _, entry := range items {
		item := entry.(map[string]interface{})
		assert.NotEmpty(t, item["id"])
		assert.NotEmpty(t, item["name"])
		assert.NotNil(t, item["price"])
		assert.NotNil(t, item["quantity"])
		assert.NotEmpty(t, item["category"])
	}

	quota := body["quota"].(map[string]interface{})
	assert.Equal(t, "free", quota["plan"])
}

func TestProcessReceiptEmptyTextRejected(t *testing.T) {
	store := &fakeStore{usage: freeUsage(0)}
	gateway := &fakeGateway{receipt: normalReceipt()}
	r := newTestRouter(store, gateway)

	w, body := postJSON(r, "/api/process-receipt", "valid-token", map[string]string{"extractedText": "   "})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_TEXT", body["code"])
	assert.Equal(t, 0, gateway.calls)
	assert.Equal(t, 1, store.logged)
}

func TestProcessReceiptQuotaExceeded(t *testing.T) {
	store := &fakeStore{usage: freeUsage(10)}
	gateway := &fakeGateway{receipt: normalReceipt()}
	r := newTestRouter(store, gateway)

	w, body := postJSON(r, "/api/process-receipt", "valid-token", map[string]string{"extractedText": "MILK $3.99"})

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "QUOTA_EXCEEDED", body["code"])
	assert.NotEmpty(t, body["upgrade"])
	assert.Equal(t, 0, gateway.calls)
	assert.Equal(t, 0, store.recorded)
}

func TestProcessReceiptUpstreamOutage(t *testing.T) {
	store := &fakeStore{usage: freeUsage(1)}
	gateway := &fakeGateway{err: &services.GatewayError{Kind: services.GatewayErrorUpstream, StatusCode: 503, Message: "model endpoint returned an error"}}
	r := newTestRouter(store, gateway)

	w, body := postJSON(r, "/api/process-receipt", "valid-token", map[string]string{"extractedText": "MILK $3.99"})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "PROCESSING_FAILED", body["code"])
	assert.Equal(t, 0, store.recorded)
}

func TestAssistantEndToEnd(t *testing.T) {
	store := &fakeStore{usage: freeUsage(2)}
	gateway := &fakeGateway{answer: "Try a weekly grocery budget of $80."}
	r := newTestRouter(store, gateway)

	w, body := postJSON(r, "/api/ai-assistant", "valid-token", map[string]string{"prompt": "help me budget groceries"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Try a weekly grocery budget of $80.", body["response"])
	assert.NotNil(t, body["quotaInfo"])
	assert.Equal(t, 1, store.recorded)
}

func TestUserQuotaEndpoint(t *testing.T) {
	t.Run("free plan summary", func(t *testing.T) {
		store := &fakeStore{usage: freeUsage(4)}
		r := newTestRouter(store, &fakeGateway{})

		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/api/user/quota", nil)
		req.Header.Set("Authorization", "Bearer valid-token")
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var quota models.QuotaInfo
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &quota))
		assert.Equal(t, "free", quota.Plan)
		assert.Equal(t, 10, *quota.MonthlyLimit)
		assert.Equal(t, 6, *quota.RemainingFree)
		assert.Equal(t, 4, quota.UsedThisMonth)
	})

	t.Run("store outage reports unavailability", func(t *testing.T) {
		store := &fakeStore{getErr: errors.New("connection refused")}
		r := newTestRouter(store, &fakeGateway{})

		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/api/user/quota", nil)
		req.Header.Set("Authorization", "Bearer valid-token")
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var quota models.QuotaInfo
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &quota))
		assert.Equal(t, services.QuotaUnavailableMessage, quota.Message)
	})
}
