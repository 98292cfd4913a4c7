package services

import (
	"context"
	"errors"
	"time"

	"receiptwise_go_backend/internal/models"

	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// UsageService is the gorm-backed implementation of UsageStore. Usage
// records are upserted on first write; the monthly counter increment runs
// inside Postgres so concurrent requests never lose updates.
type UsageService struct {
	db *gorm.DB
}

// NewUsageService creates a usage store over the given database handle.
func NewUsageService(db *gorm.DB) *UsageService {
	return &UsageService{db: db}
}

// GetUsage loads the usage record for a user. Users without history yield
// (nil, nil); an error means the store is unreachable.
func (s *UsageService) GetUsage(ctx context.Context, userID string) (*models.UserUsage, error) {
	var usage models.UserUsage
	result := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&usage)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &usage, nil
}

// RecordUsage increments the current month's counter, bumps the total and
// stamps last_used_at. The JSONB increment is a single atomic statement.
func (s *UsageService) RecordUsage(ctx context.Context, userID string, now time.Time) error {
	month := MonthKey(now)

	result := s.db.WithContext(ctx).Model(&models.UserUsage{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"monthly_usage": gorm.Expr(
				"jsonb_set(COALESCE(monthly_usage, '{}'::jsonb), ARRAY[?]::text[], to_jsonb(COALESCE((monthly_usage->>?)::int, 0) + 1), true)",
				month, month,
			),
			"total_processed": gorm.Expr("total_processed + 1"),
			"last_used_at":    now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	// First request for this user: create the record.
	usage := models.UserUsage{
		UserID:             userID,
		SubscriptionStatus: models.SubscriptionNone,
		MonthlyUsage:       datatypes.JSONMap{month: 1},
		LastUsedAt:         &now,
		TotalProcessed:     1,
	}
	return s.db.WithContext(ctx).Create(&usage).Error
}

// SetSubscription upserts the subscription fields on a usage record.
func (s *UsageService) SetSubscription(ctx context.Context, userID, status string, expiresAt *time.Time) error {
	result := s.db.WithContext(ctx).Model(&models.UserUsage{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"subscription_status":     status,
			"subscription_expires_at": expiresAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	usage := models.UserUsage{
		UserID:                userID,
		SubscriptionStatus:    status,
		SubscriptionExpiresAt: expiresAt,
		MonthlyUsage:          datatypes.JSONMap{},
	}
	return s.db.WithContext(ctx).Create(&usage).Error
}

// LogError appends an operational error entry. The write is best-effort:
// a failure is logged and swallowed, never surfaced to the caller.
func (s *UsageService) LogError(ctx context.Context, userID, endpoint, message string, elapsed time.Duration) {
	if userID == "" {
		userID = "anonymous"
	}

	entry := models.ErrorLog{
		UserID:    userID,
		Endpoint:  endpoint,
		Message:   message,
		ElapsedMs: elapsed.Milliseconds(),
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("Failed to write error log entry")
	}
}
