// Package savings maintains the ledger of money not spent because the user
// abandoned a purchase during a cooldown.
package savings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/spendguard/internal/common"
	"github.com/Veraticus/spendguard/internal/model"
	"github.com/Veraticus/spendguard/internal/service"
)

// Event is a single abandoned purchase.
type Event struct {
	At          time.Time
	Category    string
	ProductName string
	Amount      float64
}

// Fold applies one abandon event to the ledger and returns the result. The
// input ledger is not modified.
func Fold(ledger model.SavingsLedger, ev Event) model.SavingsLedger {
	next := model.SavingsLedger{
		TotalSaved:        ledger.TotalSaved + ev.Amount,
		InterceptsCount:   ledger.InterceptsCount + 1,
		LastInterceptDate: ev.At,
		BiggestSave:       ledger.BiggestSave,
		CategorySavings:   make(map[string]float64, len(ledger.CategorySavings)+1),
		MonthlySavings:    make(map[string]float64, len(ledger.MonthlySavings)+1),
	}
	for k, v := range ledger.CategorySavings {
		next.CategorySavings[k] = v
	}
	for k, v := range ledger.MonthlySavings {
		next.MonthlySavings[k] = v
	}

	next.CategorySavings[normalizeCategory(ev.Category)] += ev.Amount
	next.MonthlySavings[ev.At.Format(model.MonthKeyLayout)] += ev.Amount

	if ev.Amount > ledger.BiggestSave.Amount {
		next.BiggestSave = model.BiggestSave{
			Amount:      ev.Amount,
			ProductName: ev.ProductName,
			Date:        ev.At,
		}
	}

	return next
}

func normalizeCategory(category string) string {
	category = strings.TrimSpace(category)
	if category == "" {
		return "Other"
	}
	return category
}

// Ledger persists the savings ledger in the key-value store.
type Ledger struct {
	kv  service.KeyValueStore
	now func() time.Time
}

// NewLedger creates a ledger backed by kv.
func NewLedger(kv service.KeyValueStore, now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{kv: kv, now: now}
}

// Load returns the stored ledger, or an empty one when nothing is stored.
func (l *Ledger) Load(ctx context.Context) (model.SavingsLedger, error) {
	ledger := model.NewSavingsLedger()

	raw, found, err := l.kv.Get(ctx, service.KeySavings)
	if err != nil {
		return ledger, fmt.Errorf("%w: get savings: %w", common.ErrStoreUnavailable, err)
	}
	if !found {
		return ledger, nil
	}
	if err := json.Unmarshal(raw, &ledger); err != nil {
		return model.NewSavingsLedger(), fmt.Errorf("%w: savings: %w", common.ErrCorruptValue, err)
	}
	if ledger.CategorySavings == nil {
		ledger.CategorySavings = make(map[string]float64)
	}
	if ledger.MonthlySavings == nil {
		ledger.MonthlySavings = make(map[string]float64)
	}
	return ledger, nil
}

// RecordAbandon folds one abandoned purchase into the stored ledger. Every
// call is a new event; there is no deduplication.
func (l *Ledger) RecordAbandon(ctx context.Context, amount float64, category, productName string) (model.SavingsLedger, error) {
	if amount < 0 {
		return model.SavingsLedger{}, fmt.Errorf("%w: negative amount %.2f", common.ErrInvalidRequest, amount)
	}

	current, err := l.Load(ctx)
	switch {
	case errors.Is(err, common.ErrCorruptValue):
		// An unreadable ledger is replaced rather than blocking every future save.
		slog.Warn("Starting from an empty savings ledger", "error", err)
		current = model.NewSavingsLedger()
	case err != nil:
		// The stored totals may still be intact; writing now would overwrite them.
		return model.SavingsLedger{}, err
	}

	next := Fold(current, Event{
		At:          l.now(),
		Category:    category,
		ProductName: productName,
		Amount:      amount,
	})

	raw, err := json.Marshal(next)
	if err != nil {
		return model.SavingsLedger{}, fmt.Errorf("failed to encode savings: %w", err)
	}
	if err := l.kv.Set(ctx, service.KeySavings, raw); err != nil {
		return model.SavingsLedger{}, fmt.Errorf("%w: set savings: %w", common.ErrStoreUnavailable, err)
	}

	return next, nil
}

// Summary returns the read model. It is safe on an empty store and degrades
// to zeros when the store fails.
func (l *Ledger) Summary(ctx context.Context) model.SavingsSummary {
	ledger, err := l.Load(ctx)
	if err != nil {
		slog.Warn("Savings summary unavailable, reporting zeros", "error", err)
		ledger = model.NewSavingsLedger()
	}
	return Summarize(ledger, l.now())
}

// Summarize builds the read model for ledger as of now.
func Summarize(ledger model.SavingsLedger, now time.Time) model.SavingsSummary {
	categories := make(map[string]float64, len(ledger.CategorySavings))
	for k, v := range ledger.CategorySavings {
		categories[k] = v
	}

	summary := model.SavingsSummary{
		TotalSaved:        ledger.TotalSaved,
		InterceptsCount:   ledger.InterceptsCount,
		LastInterceptDate: ledger.LastInterceptDate,
		CategorySavings:   categories,
		Monthly:           ledger.MonthlySeries(),
		BiggestSave:       ledger.BiggestSave,
		ThisMonth:         ledger.MonthlySavings[now.Format(model.MonthKeyLayout)],
	}
	if ledger.InterceptsCount > 0 {
		summary.AverageSave = ledger.TotalSaved / float64(ledger.InterceptsCount)
	}
	return summary
}
