package resilience

import (
	"context"
	"errors"
	"time"
)

// ErrPermanent marks an error that must not be retried.
var ErrPermanent = errors.New("permanent failure")

type RetryConfig struct {
	Attempts  int
	Delay     time.Duration
	MaxDelay  time.Duration
	OnAttempt func(attempt int, err error)
}

// Retry calls fn until it succeeds, the attempts are exhausted, the error
// wraps ErrPermanent or ctx is done. The delay doubles after each attempt up
// to MaxDelay.
func Retry(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 1
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}

	delay := cfg.Delay
	var lastErr error
	for attempt := 1; attempt <= cfg.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if cfg.OnAttempt != nil {
			cfg.OnAttempt(attempt, lastErr)
		}
		if errors.Is(lastErr, ErrPermanent) || attempt == cfg.Attempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return lastErr
}
