package services

import (
	"context"
	"time"

	"receiptwise_go_backend/internal/models"
)

// UsageStore is the narrow contract against the usage document store.
// GetUsage returns (nil, nil) for users without a record yet; an error
// means the store itself is unreachable.
type UsageStore interface {
	GetUsage(ctx context.Context, userID string) (*models.UserUsage, error)
	RecordUsage(ctx context.Context, userID string, now time.Time) error
	SetSubscription(ctx context.Context, userID, status string, expiresAt *time.Time) error
	LogError(ctx context.Context, userID, endpoint, message string, elapsed time.Duration)
}

// ModelGateway is the contract against the upstream language model.
type ModelGateway interface {
	ExtractReceipt(ctx context.Context, text string) (*models.Receipt, error)
	AnswerQuestion(ctx context.Context, prompt string) (string, error)
}
