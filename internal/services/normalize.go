package services

import (
	"strconv"
	"strings"
	"time"

	"receiptwise_go_backend/internal/models"

	"github.com/google/uuid"
)

// ReceiptCategories is the fixed category set the model is instructed to
// use. Anything outside it is coerced to "Other".
var ReceiptCategories = []string{
	"Groceries",
	"Dining",
	"Fuel",
	"Pharmacy",
	"Household",
	"Electronics",
	"Clothing",
	"Other",
}

const (
	defaultCategory = "Other"
	defaultItemName = "Unknown Item"
)

// NormalizeReceipt coerces the loosely structured JSON object produced by
// the model into the Receipt shape guaranteed to callers. Every item in the
// result has a non-empty id, name, price, quantity and category regardless
// of what the model omitted or malformed.
func NormalizeReceipt(raw map[string]interface{}, scannedAt time.Time) *models.Receipt {
	receipt := &models.Receipt{
		ID:          uuid.New().String(),
		StoreName:   toString(raw["storeName"], ""),
		Date:        toString(raw["date"], ""),
		Category:    categoryOrDefault(toString(raw["category"], "")),
		Items:       []models.LineItem{},
		ScannedTime: scannedAt,
	}

	items, ok := raw["items"].([]interface{})
	if !ok {
		// Missing or non-array items yields an empty list, not an error.
		return receipt
	}

	for _, entry := range items {
		rawItem, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		receipt.Items = append(receipt.Items, normalizeItem(rawItem))
	}

	return receipt
}

func normalizeItem(raw map[string]interface{}) models.LineItem {
	return models.LineItem{
		ID:       uuid.New().String(),
		Name:     toString(raw["name"], defaultItemName),
		Price:    toFloat(raw["price"], 0.0),
		Quantity: toFloat(raw["quantity"], 1.0),
		Category: categoryOrDefault(toString(raw["category"], "")),
	}
}

func categoryOrDefault(category string) string {
	for _, c := range ReceiptCategories {
		if strings.EqualFold(category, c) {
			return c
		}
	}
	return defaultCategory
}

func toString(v interface{}, fallback string) string {
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return fallback
	}
	return strings.TrimSpace(s)
}

func toFloat(v interface{}, fallback float64) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case string:
		cleaned := strings.TrimSpace(n)
		cleaned = strings.TrimPrefix(cleaned, "$")
		cleaned = strings.ReplaceAll(cleaned, ",", "")
		if f, err := strconv.ParseFloat(cleaned, 64); err == nil {
			return f
		}
	}
	return fallback
}

// StripCodeFence removes an optional Markdown code fence wrapping around
// the model's JSON output.
func StripCodeFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```")
	// Drop an optional language tag like "json" on the fence line.
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		firstLine := strings.TrimSpace(trimmed[:idx])
		if firstLine == "" || isLanguageTag(firstLine) {
			trimmed = trimmed[idx+1:]
		}
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

func isLanguageTag(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}
