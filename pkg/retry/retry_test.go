package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errConflict = errors.New("conflict")
	errFatal    = errors.New("fatal")
)

type fakeClock struct {
	delays []time.Duration
}

func (c *fakeClock) sleep(ctx context.Context, d time.Duration) error {
	c.delays = append(c.delays, d)
	return ctx.Err()
}

func isConflict(err error) bool {
	return errors.Is(err, errConflict)
}

func TestDoSucceedsAfterRetries(t *testing.T) {
	clock := &fakeClock{}
	attempts := 0

	err := Do(context.Background(), DefaultConfig(), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errConflict
		}
		return nil
	}, WithSleep(clock.sleep), WithRetryable(isConflict))

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []time.Duration{5 * time.Second, 7500 * time.Millisecond}, clock.delays)
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	clock := &fakeClock{}
	attempts := 0

	err := Do(context.Background(), DefaultConfig(), func(context.Context) error {
		attempts++
		if attempts == 1 {
			return errConflict
		}
		return errFatal
	}, WithSleep(clock.sleep), WithRetryable(isConflict))

	require.Error(t, err)
	assert.Equal(t, errFatal, err)
	assert.Equal(t, 2, attempts)
	assert.False(t, errors.Is(err, ErrExhausted))
}

func TestDoExhaustion(t *testing.T) {
	clock := &fakeClock{}
	cfg := Config{MaxAttempts: 4, InitialDelay: time.Second, MaxDelay: 3 * time.Second, BackoffMultiple: 2}
	attempts := 0
	var notified []int

	err := Do(context.Background(), cfg, func(context.Context) error {
		attempts++
		return errConflict
	}, WithSleep(clock.sleep), WithNotify(func(attempt int, _ time.Duration, _ error) {
		notified = append(notified, attempt)
	}))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.ErrorIs(t, err, errConflict)
	assert.Equal(t, 4, attempts)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}, clock.delays)
	assert.Equal(t, []int{1, 2, 3}, notified)
}

func TestDoUnboundedUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{MaxAttempts: 0, InitialDelay: time.Millisecond}
	attempts := 0

	err := Do(ctx, cfg, func(context.Context) error {
		attempts++
		if attempts == 50 {
			cancel()
		}
		return errConflict
	}, WithSleep(func(ctx context.Context, _ time.Duration) error { return ctx.Err() }))

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.Is(err, ErrExhausted))
	assert.Equal(t, 50, attempts)
}

func TestDoBackoffWithoutMaxDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	clock := &fakeClock{}
	cfg := Config{MaxAttempts: 0, InitialDelay: time.Second, BackoffMultiple: 10}
	attempts := 0

	err := Do(ctx, cfg, func(context.Context) error {
		attempts++
		if attempts == 200 {
			cancel()
		}
		return errConflict
	}, WithSleep(clock.sleep), WithRetryable(isConflict))

	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, clock.delays, 200)
	for i, d := range clock.delays {
		assert.Positive(t, d, "delay %d", i)
		assert.LessOrEqual(t, d, CeilingDelay, "delay %d", i)
	}
	assert.Equal(t, []time.Duration{time.Second, 10 * time.Second, 100 * time.Second}, clock.delays[:3])
	assert.Equal(t, CeilingDelay, clock.delays[len(clock.delays)-1])
}

func TestDoRespectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false

	err := Do(ctx, DefaultConfig(), func(context.Context) error {
		called = true
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestTimerSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, timerSleep(ctx, time.Hour), context.Canceled)
	assert.NoError(t, timerSleep(context.Background(), time.Millisecond))
}
