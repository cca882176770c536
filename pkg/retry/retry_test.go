package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "tagsync/pkg/errors"
	"tagsync/pkg/logger"
)

func fastConfig(max int) *Config {
	return &Config{
		MaxAttempts: max,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		Logger:      logger.NewNopLogger(),
	}
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	var attempts []int
	err := Do(context.Background(), func(ctx context.Context, attempt int) error {
		attempts = append(attempts, attempt)
		if attempt < 3 {
			return errs.New(errs.ErrorTypeNetwork, "connection reset", nil)
		}
		return nil
	}, fastConfig(5))

	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, attempts)
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"session expired", errs.ErrSessionExpired},
		{"empty batch", errs.ErrEmptyBatch},
		{"untyped", errors.New("boom")},
		{"cancelled", context.Canceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := Do(context.Background(), func(ctx context.Context, attempt int) error {
				calls++
				return tt.err
			}, fastConfig(5))

			assert.Equal(t, 1, calls)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	var retried []int
	cfg := fastConfig(3)
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		retried = append(retried, attempt)
	}

	err := Do(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		return errs.New(errs.ErrorTypeCommit, "merge failed", nil)
	}, cfg)

	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, errs.ErrorTypeCommit, errs.TypeOf(err))
}

func TestDoCancelledWhileWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := fastConfig(0)
	cfg.Backoff = &ConstantBackoff{Delay: time.Hour}
	cfg.OnRetry = func(int, error, time.Duration) { cancel() }

	err := Do(ctx, func(ctx context.Context, attempt int) error {
		return errs.New(errs.ErrorTypeNetwork, "timeout", nil)
	}, cfg)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestDoWithResult(t *testing.T) {
	got, err := DoWithResult(context.Background(), func(ctx context.Context, attempt int) (int, error) {
		if attempt == 1 {
			return 0, errs.New(errs.ErrorTypeNetwork, "flaky", nil)
		}
		return 42, nil
	}, fastConfig(2))

	require.NoError(t, err)
	assert.Equal(t, 42, got)
}

func TestExponentialBackoff(t *testing.T) {
	b := &ExponentialBackoff{BaseDelay: time.Second, MaxDelay: 5 * time.Second, Multiplier: 2}

	assert.Equal(t, time.Duration(0), b.NextDelay(0))
	assert.Equal(t, time.Second, b.NextDelay(1))
	assert.Equal(t, 2*time.Second, b.NextDelay(2))
	assert.Equal(t, 4*time.Second, b.NextDelay(3))
	assert.Equal(t, 5*time.Second, b.NextDelay(4))

	unset := &ExponentialBackoff{BaseDelay: time.Second}
	assert.Equal(t, 4*time.Second, unset.NextDelay(3))

	b.JitterFactor = 0.5
	for i := 0; i < 20; i++ {
		d := b.NextDelay(1)
		assert.GreaterOrEqual(t, d, 500*time.Millisecond)
		assert.LessOrEqual(t, d, 1500*time.Millisecond)
	}
}

func TestWait(t *testing.T) {
	assert.NoError(t, Wait(context.Background(), 0))
	assert.NoError(t, Wait(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Wait(ctx, time.Hour), context.Canceled)
}
