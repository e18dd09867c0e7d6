package nudge

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Veraticus/spendguard/internal/common"
	"github.com/Veraticus/spendguard/internal/model"
)

// Provider generates a nudge for a purchase.
type Provider interface {
	Nudge(ctx context.Context, pc model.PurchaseContext) (string, error)
}

// Reflections are the generic prompts used when no generated nudge is
// available.
var Reflections = []string{
	"Will you still want this a week from now?",
	"Is this a need or a want?",
	"What else could this money do for you?",
	"Would you buy this if it were full price?",
	"Do you already own something that does the job?",
	"How many hours of work does this cost you?",
	"Are you buying this to feel better right now?",
	"Could you borrow, rent or buy this secondhand?",
}

// Static rotates through Reflections.
type Static struct {
	next atomic.Uint32
}

// NewStatic returns a Static provider.
func NewStatic() *Static {
	return &Static{}
}

// Nudge implements Provider. It never fails.
func (s *Static) Nudge(_ context.Context, _ model.PurchaseContext) (string, error) {
	return s.Reflection(), nil
}

// Reflection returns the next static prompt.
func (s *Static) Reflection() string {
	i := s.next.Add(1) - 1
	return Reflections[int(i)%len(Reflections)]
}

// Safe wraps a Provider so that errors, panics, empty text and slow
// responses are replaced with a static reflection.
type Safe struct {
	provider Provider
	fallback *Static
	timeout  time.Duration
}

// NewSafe wraps provider. A nil provider always yields static text. A zero
// timeout means no limit beyond the caller's context.
func NewSafe(provider Provider, timeout time.Duration) *Safe {
	return &Safe{
		provider: provider,
		fallback: NewStatic(),
		timeout:  timeout,
	}
}

// Nudge returns generated text or a static substitute.
func (s *Safe) Nudge(ctx context.Context, pc model.PurchaseContext) (text string) {
	if s.provider == nil {
		return s.fallback.Reflection()
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Warn("Nudge provider panicked", "panic", r)
			text = s.fallback.Reflection()
		}
	}()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	text, err := s.provider.Nudge(ctx, pc)
	if err == nil && text == "" {
		err = fmt.Errorf("%w: empty nudge", common.ErrNudgeUnavailable)
	}
	if err != nil {
		slog.Debug("Using static nudge", "error", err)
		return s.fallback.Reflection()
	}
	return text
}

// Reflection returns a static prompt without consulting the provider.
func (s *Safe) Reflection() string {
	return s.fallback.Reflection()
}
