// Package purchases builds purchase histories for tests with a fluent API.
//
// Example usage:
//
//	history := purchases.NewBuilder(now).
//		Abandoned("Headphones", "Electronics", 349).
//		Proceeded("Dune", "Books", 30).
//		Build()
package purchases

import (
	"fmt"
	"time"

	"github.com/Veraticus/spendguard/internal/model"
)

// Builder accumulates purchase entries. Each entry is stamped one minute
// after the previous one.
type Builder struct {
	now     time.Time
	entries []model.PurchaseEntry
}

// NewBuilder starts a history whose first entry is stamped at start.
func NewBuilder(start time.Time) *Builder {
	return &Builder{now: start}
}

// Abandoned adds the entry written when a cooldown starts and the user
// walks away.
func (b *Builder) Abandoned(product, category string, amount float64) *Builder {
	return b.add(product, category, amount, false, model.ReasonIntercepted)
}

// Proceeded adds the start entry plus the entry written when the cooldown
// completed and the purchase went through.
func (b *Builder) Proceeded(product, category string, amount float64) *Builder {
	b.add(product, category, amount, false, model.ReasonIntercepted)
	return b.add(product, category, amount, true, model.ReasonProceeded)
}

// Skipped is Proceeded with the user skipping the rest of the cooldown.
func (b *Builder) Skipped(product, category string, amount float64) *Builder {
	b.add(product, category, amount, false, model.ReasonIntercepted)
	return b.add(product, category, amount, true, model.ReasonSkipped)
}

// Unpriced adds an interception on a page without a readable price.
func (b *Builder) Unpriced(url string) *Builder {
	entry := model.NewInterceptionEntry(url, model.PurchaseContext{}, b.tick(), false, model.ReasonIntercepted)
	entry.ID = b.nextID()
	b.entries = append(b.entries, entry)
	return b
}

// Build returns the entries newest first, the order they are stored in.
func (b *Builder) Build() []model.PurchaseEntry {
	out := make([]model.PurchaseEntry, len(b.entries))
	for i, e := range b.entries {
		out[len(b.entries)-1-i] = e
	}
	return out
}

func (b *Builder) add(product, category string, amount float64, proceeded bool, reason string) *Builder {
	pc := model.PurchaseContext{ProductName: product, Category: category, Price: model.Float(amount)}
	entry := model.NewInterceptionEntry("https://shop.example.com/checkout", pc, b.tick(), proceeded, reason)
	entry.ID = b.nextID()
	b.entries = append(b.entries, entry)
	return b
}

func (b *Builder) tick() time.Time {
	t := b.now
	b.now = b.now.Add(time.Minute)
	return t
}

func (b *Builder) nextID() string {
	return fmt.Sprintf("entry-%03d", len(b.entries)+1)
}
