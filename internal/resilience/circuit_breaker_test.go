package resilience_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OldStager01/imagizer-autoscaler/internal/resilience"
)

var errBoom = errors.New("boom")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newBreaker(clock *fakeClock, maxFailures, halfOpenMax int) *resilience.CircuitBreaker {
	return resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:        "test",
		MaxFailures: maxFailures,
		Timeout:     5 * time.Second,
		HalfOpenMax: halfOpenMax,
		Now:         clock.Now,
	})
}

func fail() error { return errBoom }
func ok() error   { return nil }

func TestCircuitBreaker_StateTransitions(t *testing.T) {
	tests := []struct {
		name          string
		setup         func(cb *resilience.CircuitBreaker, clock *fakeClock)
		expectedState resilience.State
	}{
		{
			name: "successful execution stays closed",
			setup: func(cb *resilience.CircuitBreaker, _ *fakeClock) {
				_ = cb.Execute(ok)
			},
			expectedState: resilience.StateClosed,
		},
		{
			name: "opens after max failures",
			setup: func(cb *resilience.CircuitBreaker, _ *fakeClock) {
				for i := 0; i < 3; i++ {
					_ = cb.Execute(fail)
				}
			},
			expectedState: resilience.StateOpen,
		},
		{
			name: "success resets failure count",
			setup: func(cb *resilience.CircuitBreaker, _ *fakeClock) {
				_ = cb.Execute(fail)
				_ = cb.Execute(fail)
				_ = cb.Execute(ok)
				_ = cb.Execute(fail)
			},
			expectedState: resilience.StateClosed,
		},
		{
			name: "half open probe success closes",
			setup: func(cb *resilience.CircuitBreaker, clock *fakeClock) {
				for i := 0; i < 3; i++ {
					_ = cb.Execute(fail)
				}
				clock.Advance(6 * time.Second)
				_ = cb.Execute(ok)
			},
			expectedState: resilience.StateClosed,
		},
		{
			name: "half open probe failure reopens",
			setup: func(cb *resilience.CircuitBreaker, clock *fakeClock) {
				for i := 0; i < 3; i++ {
					_ = cb.Execute(fail)
				}
				clock.Advance(6 * time.Second)
				_ = cb.Execute(fail)
			},
			expectedState: resilience.StateOpen,
		},
		{
			name: "cancellation is not a failure",
			setup: func(cb *resilience.CircuitBreaker, _ *fakeClock) {
				for i := 0; i < 5; i++ {
					_ = cb.ExecuteContext(context.Background(), func(context.Context) error {
						return context.Canceled
					})
				}
			},
			expectedState: resilience.StateClosed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := &fakeClock{now: time.Unix(1700000000, 0)}
			cb := newBreaker(clock, 3, 1)

			tt.setup(cb, clock)

			assert.Equal(t, tt.expectedState, cb.State())
		})
	}
}

func TestCircuitBreaker_RejectsWhileOpen(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	cb := newBreaker(clock, 1, 1)

	require.ErrorIs(t, cb.Execute(fail), errBoom)

	called := false
	err := cb.Execute(func() error {
		called = true
		return nil
	})

	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.False(t, called)

	state, _, lastFail := cb.Stats()
	assert.Equal(t, resilience.StateOpen, state)
	assert.Equal(t, clock.Now(), lastFail)
}

func TestCircuitBreaker_HalfOpenLimitsProbes(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	cb := newBreaker(clock, 1, 2)
	_ = cb.Execute(fail)
	clock.Advance(10 * time.Second)

	release := make(chan struct{})
	started := make(chan struct{}, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = cb.Execute(func() error {
				started <- struct{}{}
				<-release
				return nil
			})
		}()
	}
	<-started
	<-started

	assert.ErrorIs(t, cb.Execute(ok), resilience.ErrCircuitOpen)

	close(release)
	wg.Wait()
	assert.Equal(t, resilience.StateClosed, cb.State())
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	changes := make(chan resilience.State, 1)
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:        "cloudwatch",
		MaxFailures: 1,
		OnStateChange: func(name string, from, to resilience.State) {
			assert.Equal(t, "cloudwatch", name)
			assert.Equal(t, resilience.StateClosed, from)
			changes <- to
		},
	})

	_ = cb.Execute(fail)

	select {
	case to := <-changes:
		assert.Equal(t, resilience.StateOpen, to)
	case <-time.After(time.Second):
		t.Fatal("state change callback not called")
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	cb := newBreaker(clock, 1, 1)
	_ = cb.Execute(fail)
	require.Equal(t, resilience.StateOpen, cb.State())

	cb.Reset()

	assert.Equal(t, resilience.StateClosed, cb.State())
	assert.NoError(t, cb.Execute(ok))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", resilience.StateClosed.String())
	assert.Equal(t, "open", resilience.StateOpen.String())
	assert.Equal(t, "half-open", resilience.StateHalfOpen.String())
	assert.Equal(t, "unknown", resilience.State(42).String())
}
