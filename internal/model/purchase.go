// Package model defines the core domain models used throughout the application.
package model

import (
	"time"
)

// PurchaseContext is the best-effort description of what the user is about
// to buy. It is derived from the page on every interception attempt and is
// never persisted as-is.
type PurchaseContext struct {
	Price       *float64 `json:"price,omitempty"`
	ProductName string   `json:"productName,omitempty"`
	PriceText   string   `json:"priceText,omitempty"`
	Currency    string   `json:"currency,omitempty"`
	Category    string   `json:"category,omitempty"`
	Platform    string   `json:"platform,omitempty"`
}

// IsEmpty reports whether extraction found nothing useful.
func (c PurchaseContext) IsEmpty() bool {
	return c.Price == nil &&
		c.ProductName == "" &&
		c.PriceText == "" &&
		c.Currency == "" &&
		c.Category == ""
}

// HasPrice reports whether a usable price was extracted.
func (c PurchaseContext) HasPrice() bool {
	return c.Price != nil && *c.Price > 0
}

// Amount returns the extracted price or the fallback estimate.
func (c PurchaseContext) Amount(fallback float64) float64 {
	if c.HasPrice() {
		return *c.Price
	}
	return fallback
}

// PurchaseEntry records one interception outcome. Entries are append-only:
// the eventual decision to proceed is written as a second entry rather than
// a mutation of the first.
type PurchaseEntry struct {
	Timestamp   time.Time `json:"timestamp"`
	Amount      *float64  `json:"amount,omitempty"`
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	Reason      string    `json:"reason,omitempty"`
	ProductName string    `json:"productName,omitempty"`
	Category    string    `json:"category,omitempty"`
	Intercepted bool      `json:"intercepted"`
	Proceeded   bool      `json:"proceeded"`
}

// NewInterceptionEntry describes an interception on pageURL at the given
// time. The ID is left empty for the recorder to assign.
func NewInterceptionEntry(pageURL string, pc PurchaseContext, at time.Time, proceeded bool, reason string) PurchaseEntry {
	entry := PurchaseEntry{
		URL:         pageURL,
		Timestamp:   at,
		Intercepted: true,
		Proceeded:   proceeded,
		Reason:      reason,
		ProductName: pc.ProductName,
		Category:    pc.Category,
	}
	if pc.HasPrice() {
		entry.Amount = Float(*pc.Price)
	}
	return entry
}

// Entry reasons.
const (
	ReasonIntercepted = "cooldown_started"
	ReasonProceeded   = "cooldown_completed"
	ReasonSkipped     = "cooldown_skipped"
)

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}
