package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDown = errors.New("redis: connection refused")

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(opts ...Option) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 5, 5, 8, 0, 0, 0, time.UTC)}
	cb := New("test", opts...)
	cb.now = clock.Now
	return cb, clock
}

func fail(context.Context) error { return errDown }
func ok(context.Context) error   { return nil }

func TestOpensAfterThresholdAndRecovers(t *testing.T) {
	var transitions []string
	cb, clock := newTestBreaker(
		WithFailureThreshold(2),
		WithSuccessThreshold(1),
		WithCooldown(10*time.Second),
		WithOnStateChange(func(_ string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		}),
	)
	ctx := context.Background()

	assert.ErrorIs(t, cb.Execute(ctx, fail), errDown)
	assert.Equal(t, StateClosed, cb.State())
	assert.ErrorIs(t, cb.Execute(ctx, fail), errDown)
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(ctx, func(context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
	assert.Equal(t, 1, cb.Counts().Rejected)

	clock.Advance(10 * time.Second)
	require.NoError(t, cb.Execute(ctx, ok))
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}

func TestHalfOpenFailureReopens(t *testing.T) {
	cb, clock := newTestBreaker(WithFailureThreshold(1), WithCooldown(time.Second))
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	clock.Advance(time.Second)
	_ = cb.Execute(ctx, fail)
	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Execute(ctx, ok), ErrCircuitOpen)
}

func TestIsFailureFilter(t *testing.T) {
	miss := errors.New("miss")
	cb, _ := newTestBreaker(WithFailureThreshold(1), WithIsFailure(func(err error) bool {
		return !errors.Is(err, miss)
	}))

	assert.ErrorIs(t, cb.Execute(context.Background(), func(context.Context) error { return miss }), miss)
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 1, cb.Counts().TotalSuccesses)
}

func TestExecuteWithFallbackAndCall(t *testing.T) {
	cb, _ := newTestBreaker(WithFailureThreshold(1))
	ctx := context.Background()
	_ = cb.Execute(ctx, fail)

	err := cb.ExecuteWithFallback(ctx, ok, func(err error) error {
		assert.True(t, IsRejected(err))
		return nil
	})
	assert.NoError(t, err)

	_, err = Call(ctx, cb, func(context.Context) (int, error) { return 1, nil })
	assert.True(t, IsRejected(err))

	cb.Reset()
	v, err := Call(ctx, cb, func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestCacheBreakerPreset(t *testing.T) {
	cb := CacheBreaker(nil, nil)
	assert.Equal(t, "report_cache", cb.Name())
	assert.Equal(t, StateClosed, cb.State())
}
