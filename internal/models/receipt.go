package models

import "time"

// LineItem is a single purchased item on a normalized receipt. For
// weight-priced goods Price holds the per-unit rate and Quantity the
// purchased weight, so the line total is always Price * Quantity.
type LineItem struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
	Category string  `json:"category"`
}

// Receipt is the normalized extraction result returned to the client.
// It is a transient value object and is never persisted.
type Receipt struct {
	ID          string     `json:"id"`
	StoreName   string     `json:"storeName,omitempty"`
	Date        string     `json:"date,omitempty"`
	Items       []LineItem `json:"items"`
	Category    string     `json:"category"`
	ScannedTime time.Time  `json:"scannedTime"`
}

// QuotaInfo summarizes a user's allowance. MonthlyLimit and RemainingFree
// are nil for subscribed users (unlimited).
type QuotaInfo struct {
	Plan          string `json:"plan"`
	MonthlyLimit  *int   `json:"monthlyLimit"`
	RemainingFree *int   `json:"remainingFree"`
	UsedThisMonth int    `json:"usedThisMonth"`
	Message       string `json:"message,omitempty"`
}
