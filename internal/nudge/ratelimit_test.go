package nudge

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spendguard/internal/common"
)

type manualTime struct {
	mu  sync.Mutex
	now time.Time
}

func (m *manualTime) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *manualTime) Add(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

func TestRequestBudget(t *testing.T) {
	t.Run("capacity is available immediately", func(t *testing.T) {
		clk := &manualTime{now: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)}
		b := newRequestBudget(5, clk.Now)

		for i := 0; i < 5; i++ {
			require.NoError(t, b.wait(context.Background()))
		}
		assert.InDelta(t, 0, b.available(), 0.0001)
	})

	t.Run("refills from elapsed time", func(t *testing.T) {
		clk := &manualTime{now: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)}
		b := newRequestBudget(60, clk.Now)
		for i := 0; i < 60; i++ {
			assert.Zero(t, b.reserve())
		}

		clk.Add(3 * time.Second)
		for i := 0; i < 3; i++ {
			assert.Zero(t, b.reserve(), "one request per second refills")
		}
		assert.Equal(t, time.Second, b.reserve())

		clk.Add(time.Hour)
		b.reserve()
		assert.InDelta(t, 59, b.available(), 0.0001, "refill is capped at capacity")
	})

	t.Run("refuses a wait past the deadline", func(t *testing.T) {
		clk := &manualTime{now: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)}
		b := newRequestBudget(1, clk.Now)
		require.NoError(t, b.wait(context.Background()))

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		err := b.wait(ctx)
		require.ErrorIs(t, err, common.ErrRateLimit)
		assert.InDelta(t, 0, b.available(), 0.0001, "a refused request gives its token back")
	})

	t.Run("cancellation while queued", func(t *testing.T) {
		b := newRequestBudget(1, nil)
		require.NoError(t, b.wait(context.Background()))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := b.wait(ctx)
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("non-positive rate uses the default", func(t *testing.T) {
		b := newRequestBudget(0, nil)
		assert.InDelta(t, defaultRequestsPerMinute, b.available(), 0.0001)
	})
}
