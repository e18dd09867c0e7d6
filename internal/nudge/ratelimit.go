package nudge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Veraticus/spendguard/internal/common"
)

const defaultRequestsPerMinute = 20

// requestBudget is a token bucket refilled from elapsed time. A caller that
// would have to wait past its deadline is refused immediately so the static
// fallback can be shown instead.
type requestBudget struct {
	now      func() time.Time
	last     time.Time
	tokens   float64
	capacity float64
	perToken time.Duration
	mu       sync.Mutex
}

func newRequestBudget(requestsPerMinute int, now func() time.Time) *requestBudget {
	if requestsPerMinute <= 0 {
		requestsPerMinute = defaultRequestsPerMinute
	}
	if now == nil {
		now = time.Now
	}
	return &requestBudget{
		now:      now,
		last:     now(),
		tokens:   float64(requestsPerMinute),
		capacity: float64(requestsPerMinute),
		perToken: time.Minute / time.Duration(requestsPerMinute),
	}
}

// wait takes one request from the budget, sleeping until it is due.
func (b *requestBudget) wait(ctx context.Context) error {
	delay := b.reserve()
	if delay <= 0 {
		return nil
	}

	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < delay {
		b.release()
		return fmt.Errorf("%w: next nudge request in %s", common.ErrRateLimit, delay.Round(time.Millisecond))
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		b.release()
		return fmt.Errorf("nudge budget wait canceled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

// reserve spends a token and returns how long until it is backed by the
// refill. Tokens may go negative; that debt is what later callers queue on.
func (b *requestBudget) reserve() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if elapsed := now.Sub(b.last); elapsed > 0 {
		b.tokens = min(b.capacity, b.tokens+float64(elapsed)/float64(b.perToken))
	}
	b.last = now

	b.tokens--
	if b.tokens >= 0 {
		return 0
	}
	return time.Duration(-b.tokens * float64(b.perToken))
}

func (b *requestBudget) release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens = min(b.capacity, b.tokens+1)
}

func (b *requestBudget) available() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tokens
}
