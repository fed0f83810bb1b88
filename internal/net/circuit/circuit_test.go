package circuit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreaker_ClosedState(t *testing.T) {
	b := NewBreaker("t1", DefaultConfig())

	err := b.Call(context.Background(), func(ctx context.Context) error { return nil })
	require.NoError(t, err)
}

func TestBreaker_OpensOnConsecutiveFailures(t *testing.T) {
	cfg := Config{ConsecutiveFailures: 3, MinRequests: 1000, FailureRatio: 1, OpenTimeout: 50 * time.Millisecond, Interval: time.Minute}
	b := NewBreaker("t2", cfg)

	for i := 0; i < 3; i++ {
		err := b.Call(context.Background(), func(ctx context.Context) error { return errors.New("boom") })
		assert.Error(t, err)
	}

	err := b.Call(context.Background(), func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestBreaker_HalfOpenRecovers(t *testing.T) {
	cfg := Config{ConsecutiveFailures: 1, MinRequests: 1000, FailureRatio: 1, OpenTimeout: 30 * time.Millisecond, Interval: time.Minute}
	b := NewBreaker("t3", cfg)

	err := b.Call(context.Background(), func(ctx context.Context) error { return errors.New("boom") })
	assert.Error(t, err)

	time.Sleep(40 * time.Millisecond)

	err = b.Call(context.Background(), func(ctx context.Context) error { return nil })
	require.NoError(t, err)
}

func TestManager_CallWithoutConfiguredProviderStillBreaks(t *testing.T) {
	m := NewManager(Config{ConsecutiveFailures: 2, MinRequests: 1000, FailureRatio: 1, OpenTimeout: time.Minute, Interval: time.Minute})

	for i := 0; i < 2; i++ {
		err := m.Call(context.Background(), "venue-a", func(ctx context.Context) error { return errors.New("fail") })
		assert.Error(t, err)
	}

	err := m.Call(context.Background(), "venue-a", func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)

	// A different provider is unaffected — breakers are per-key.
	err = m.Call(context.Background(), "venue-b", func(ctx context.Context) error { return nil })
	require.NoError(t, err)
}

func TestIsOpen(t *testing.T) {
	assert.True(t, IsOpen(ErrCircuitOpen))
	assert.False(t, IsOpen(errors.New("other")))
}
