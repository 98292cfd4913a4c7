package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Subscription states stored on a usage record.
const (
	SubscriptionNone   = "none"
	SubscriptionActive = "active"
)

// UserUsage is the per-user usage document. It is created implicitly on the
// first usage-tracking write and never deleted.
type UserUsage struct {
	ID                    uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID                string    `gorm:"uniqueIndex;not null"`
	SubscriptionStatus    string    `gorm:"not null;default:'none'"`
	SubscriptionExpiresAt *time.Time
	MonthlyUsage          datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'"`
	LastUsedAt            *time.Time
	TotalProcessed        int64 `gorm:"not null;default:0"`
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// CountForMonth returns the request count recorded under a year-month key
// like "2024-03". JSONB round-trips numbers as float64, so all numeric
// representations are accepted.
func (u *UserUsage) CountForMonth(month string) int {
	if u == nil || u.MonthlyUsage == nil {
		return 0
	}
	switch v := u.MonthlyUsage[month].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}

// HasActiveSubscription reports whether the record carries an unexpired
// active subscription at the given instant.
func (u *UserUsage) HasActiveSubscription(now time.Time) bool {
	if u == nil {
		return false
	}
	return u.SubscriptionStatus == SubscriptionActive &&
		u.SubscriptionExpiresAt != nil &&
		u.SubscriptionExpiresAt.After(now)
}

// ErrorLog is an operational log entry appended on every failed request.
// Writes are best-effort and never block the response.
type ErrorLog struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID    string    `gorm:"index;not null"`
	Endpoint  string
	Message   string
	ElapsedMs int64
	CreatedAt time.Time
}
