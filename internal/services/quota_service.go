package services

import (
	"fmt"
	"time"

	"receiptwise_go_backend/internal/models"
)

// Plan names reported in quota summaries.
const (
	PlanFree    = "free"
	PlanPremium = "premium"
)

// QuotaUnavailableMessage is reported when the usage store cannot be
// reached and the request proceeds anyway.
const QuotaUnavailableMessage = "quota check unavailable"

// MonthKey returns the year-month usage key for an instant, e.g. "2024-03".
func MonthKey(now time.Time) string {
	return now.UTC().Format("2006-01")
}

// QuotaDecision is the outcome of evaluating a usage record against policy.
type QuotaDecision struct {
	Allowed bool
	Reason  string
}

// QuotaPolicy decides whether a request is allowed and summarizes the
// caller's allowance. It is pure: store access happens in the caller.
type QuotaPolicy struct {
	freeLimit int
}

// NewQuotaPolicy creates a policy with the given free-tier monthly limit.
func NewQuotaPolicy(freeLimit int) *QuotaPolicy {
	return &QuotaPolicy{freeLimit: freeLimit}
}

// Evaluate decides whether a new request is allowed. A nil usage record
// means the user has no history yet and is always allowed. Subscribers with
// an unexpired subscription are allowed regardless of usage.
func (p *QuotaPolicy) Evaluate(usage *models.UserUsage, now time.Time) QuotaDecision {
	if usage.HasActiveSubscription(now) {
		return QuotaDecision{Allowed: true}
	}

	used := usage.CountForMonth(MonthKey(now))
	if used >= p.freeLimit {
		return QuotaDecision{
			Allowed: false,
			Reason:  fmt.Sprintf("Free tier limit of %d receipts per month reached", p.freeLimit),
		}
	}

	return QuotaDecision{Allowed: true}
}

// Summarize computes the quota view returned to the caller.
func (p *QuotaPolicy) Summarize(usage *models.UserUsage, now time.Time) models.QuotaInfo {
	used := usage.CountForMonth(MonthKey(now))

	if usage.HasActiveSubscription(now) {
		return models.QuotaInfo{
			Plan:          PlanPremium,
			UsedThisMonth: used,
		}
	}

	limit := p.freeLimit
	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}

	return models.QuotaInfo{
		Plan:          PlanFree,
		MonthlyLimit:  &limit,
		RemainingFree: &remaining,
		UsedThisMonth: used,
	}
}

// SummarizeUnavailable is the summary used when the usage store is down.
func (p *QuotaPolicy) SummarizeUnavailable() models.QuotaInfo {
	return models.QuotaInfo{
		Plan:    PlanFree,
		Message: QuotaUnavailableMessage,
	}
}
