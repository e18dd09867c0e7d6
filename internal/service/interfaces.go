// Package service defines the interfaces shared between application services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/spendguard/internal/model"
)

// Keys used in the persisted key-value store.
const (
	KeyPurchases       = "purchases"
	KeyTotalIntercepts = "totalIntercepts"
	KeySettings        = "settings"
	KeySavings         = "spendguardSavings"
)

// KeyValueStore is the opaque persistence capability. Values are JSON
// documents; a missing key is reported with found == false and no error.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte) error
}

// PurchaseRecorder persists interception outcomes.
type PurchaseRecorder interface {
	AddPurchase(ctx context.Context, entry model.PurchaseEntry) error
	IncrementIntercepts(ctx context.Context) (int, error)
}

// SettingsSource yields the current settings. Implementations must not
// cache: every call reflects the latest persisted value.
type SettingsSource interface {
	Settings(ctx context.Context) model.Settings
}

// SavingsRecorder folds abandoned purchases into the savings ledger.
type SavingsRecorder interface {
	RecordAbandon(ctx context.Context, amount float64, category, productName string) (model.SavingsLedger, error)
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
