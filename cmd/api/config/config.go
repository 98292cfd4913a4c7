package config

import (
	"fmt"
	"os"
	"strings"
)

// Config holds all process-wide settings. It is built once at startup and
// treated as immutable afterwards.
type Config struct {
	Port           string
	Environment    string
	ServiceName    string
	Version        string
	AllowedOrigins []string

	DatabaseDSN string
	AuthDomain  string

	LLMAPIKey       string
	LLMBaseURL      string
	ExtractionModel string
	AssistantModel  string

	MaxReceiptChars  int
	MaxPromptChars   int
	MaxPDFPages      int
	FreeMonthlyLimit int

	StripeSecretKey     string
	StripeWebhookSecret string
	StripePriceID       string
	CheckoutSuccessURL  string
	CheckoutCancelURL   string
}

// Load reads the configuration from the environment. The model API key is
// deliberately not required here: its absence is surfaced per-request as a
// configuration error instead of preventing startup.
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnv("PORT", "3000"),
		Environment:    getEnv("APP_ENV", "development"),
		ServiceName:    "receiptwise-api",
		Version:        getEnv("APP_VERSION", "1.0.0"),
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:5173"), ","),

		AuthDomain: os.Getenv("AUTH_DOMAIN"),

		LLMAPIKey:       os.Getenv("LLM_API_KEY"),
		LLMBaseURL:      getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
		ExtractionModel: getEnv("LLM_EXTRACTION_MODEL", "gpt-4o-mini"),
		AssistantModel:  getEnv("LLM_ASSISTANT_MODEL", "gpt-4o-mini"),

		MaxReceiptChars:  10000,
		MaxPromptChars:   2000,
		MaxPDFPages:      5,
		FreeMonthlyLimit: 10,

		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		StripePriceID:       os.Getenv("STRIPE_PRICE_ID"),
		CheckoutSuccessURL:  getEnv("CHECKOUT_SUCCESS_URL", "http://localhost:5173/upgrade/success"),
		CheckoutCancelURL:   getEnv("CHECKOUT_CANCEL_URL", "http://localhost:5173/upgrade/cancelled"),
	}

	if cfg.AuthDomain == "" {
		return nil, fmt.Errorf("AUTH_DOMAIN environment variable is not set")
	}

	cfg.DatabaseDSN = fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		getEnv("DB_HOST", "localhost"),
		getEnv("DB_USER", "postgres"),
		os.Getenv("DB_PASSWORD"),
		getEnv("DB_NAME", "receiptwise"),
		getEnv("DB_PORT", "5432"),
	)

	return cfg, nil
}

// IsProduction reports whether the process runs with production error gating.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
