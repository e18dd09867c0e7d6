package common

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spendguard/internal/service"
)

func TestWithRetry(t *testing.T) {
	fast := service.RetryOptions{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}

	t.Run("succeeds after retryable failures", func(t *testing.T) {
		calls := 0
		err := WithRetry(context.Background(), func() error {
			calls++
			if calls < 3 {
				return &RetryableError{Err: errors.New("flaky"), Retryable: true}
			}
			return nil
		}, fast)
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on non-retryable error", func(t *testing.T) {
		calls := 0
		boom := errors.New("bad request")
		err := WithRetry(context.Background(), func() error {
			calls++
			return boom
		}, fast)
		require.ErrorIs(t, err, boom)
		assert.Equal(t, 1, calls)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		calls := 0
		err := WithRetry(context.Background(), func() error {
			calls++
			return ErrRateLimit
		}, fast)
		require.ErrorIs(t, err, ErrMaxRetries)
		require.ErrorIs(t, err, ErrRateLimit)
		assert.Equal(t, 3, calls)
	})

	t.Run("honors context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := WithRetry(ctx, func() error {
			return context.DeadlineExceeded
		}, service.RetryOptions{MaxAttempts: 5, InitialDelay: time.Hour})
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("gives up when the deadline is too close", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		calls := 0
		err := WithRetry(ctx, func() error {
			calls++
			return &RetryableError{Err: errors.New("busy"), Retryable: true}
		}, service.RetryOptions{MaxAttempts: 5, InitialDelay: time.Minute})
		require.ErrorIs(t, err, ErrMaxRetries)
		assert.Equal(t, 1, calls)
	})
}

func TestNextWait(t *testing.T) {
	tests := []struct {
		err  error
		name string
		want time.Duration
	}{
		{name: "backoff delay", err: &RetryableError{Err: errors.New("x"), Retryable: true}, want: 200 * time.Millisecond},
		{name: "upstream wait", err: &RetryableError{Err: ErrRateLimit, Retryable: true, After: time.Second}, want: time.Second},
		{name: "upstream wait capped", err: &RetryableError{Err: ErrRateLimit, Retryable: true, After: time.Hour}, want: 5 * time.Second},
		{name: "rate limit without hint", err: ErrRateLimit, want: 5 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, nextWait(tt.err, 200*time.Millisecond, 5*time.Second))
		})
	}
}

func TestParseLevel(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", ""} {
		_, err := ParseLevel(level)
		assert.NoError(t, err, level)
	}
	_, err := ParseLevel("loud")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestUserError(t *testing.T) {
	inner := errors.New("disk full")
	err := NewUserError("could not save settings", inner)
	assert.Equal(t, "could not save settings: disk full", err.Error())
	assert.ErrorIs(t, err, inner)
}
