// Package records provides typed access to purchase history, the intercept
// counter and user settings on top of the opaque key-value store.
package records

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/spendguard/internal/common"
	"github.com/Veraticus/spendguard/internal/model"
	"github.com/Veraticus/spendguard/internal/service"
)

// MaxPurchases caps the stored purchase history; older entries are dropped.
const MaxPurchases = 100

// Store reads and writes persisted records. It holds no state of its own
// beyond the injected store, so concurrent read-modify-write cycles may lose
// updates; that is accepted for this workload.
type Store struct {
	kv  service.KeyValueStore
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates a Store backed by kv.
func New(kv service.KeyValueStore, opts ...Option) *Store {
	s := &Store{
		kv:  kv,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddPurchase prepends entry to the history, keeping at most MaxPurchases.
func (s *Store) AddPurchase(ctx context.Context, entry model.PurchaseEntry) error {
	if entry.ID == "" {
		entry.ID = newID()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.now()
	}

	purchases, err := s.RecentPurchases(ctx)
	if err != nil {
		return err
	}

	updated := make([]model.PurchaseEntry, 0, len(purchases)+1)
	updated = append(updated, entry)
	updated = append(updated, purchases...)
	if len(updated) > MaxPurchases {
		updated = updated[:MaxPurchases]
	}

	return s.putJSON(ctx, service.KeyPurchases, updated)
}

// RecentPurchases returns the stored history, newest first.
func (s *Store) RecentPurchases(ctx context.Context) ([]model.PurchaseEntry, error) {
	var purchases []model.PurchaseEntry
	if _, err := s.getJSON(ctx, service.KeyPurchases, &purchases); err != nil {
		return nil, err
	}
	if purchases == nil {
		purchases = []model.PurchaseEntry{}
	}
	return purchases, nil
}

// IncrementIntercepts bumps the lifetime intercept counter and returns the new value.
func (s *Store) IncrementIntercepts(ctx context.Context) (int, error) {
	total, err := s.TotalIntercepts(ctx)
	if err != nil {
		return 0, err
	}
	total++
	if err := s.putJSON(ctx, service.KeyTotalIntercepts, total); err != nil {
		return 0, err
	}
	return total, nil
}

// TotalIntercepts returns the lifetime intercept counter.
func (s *Store) TotalIntercepts(ctx context.Context) (int, error) {
	var total int
	if _, err := s.getJSON(ctx, service.KeyTotalIntercepts, &total); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) getJSON(ctx context.Context, key string, dst any) (bool, error) {
	raw, found, err := s.kv.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("%w: get %s: %w", common.ErrStoreUnavailable, key, err)
	}
	if !found {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("%w: %s: %w", common.ErrCorruptValue, key, err)
	}
	return true, nil
}

func (s *Store) putJSON(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := s.kv.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("%w: set %s: %w", common.ErrStoreUnavailable, key, err)
	}
	return nil
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		slog.Debug("Falling back to random purchase id", "error", err)
		return uuid.NewString()
	}
	return id.String()
}
