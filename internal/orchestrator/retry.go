package orchestrator

import (
	"context"
	"fmt"
	"math"
	"time"
)

// RetryConfig is the recovery policy used by RecoverAdapter.
type RetryConfig struct {
	// MaxAttempts bounds the recovery attempts; values below one mean one.
	MaxAttempts int

	// InitialDelay is the wait after the first failed attempt. Each later
	// wait is multiplied by BackoffMultiplier and capped at MaxDelay.
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64

	// Retryable reports whether an error is worth another attempt. Nil
	// retries everything.
	Retryable func(error) bool

	// OnAttempt, if set, observes every finished attempt.
	OnAttempt func(Attempt)
}

// Attempt describes one finished recovery attempt.
type Attempt struct {
	Number int
	Err    error
	// Wait is the pause before the next attempt, zero if none follows.
	Wait time.Duration
}

// DefaultRetryConfig returns the recovery defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialDelay:      time.Second,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

func (c RetryConfig) attempts() int {
	return max(c.MaxAttempts, 1)
}

// wait returns the pause after failed attempt n.
func (c RetryConfig) wait(n int) time.Duration {
	mult := c.BackoffMultiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(c.InitialDelay) * math.Pow(mult, float64(n-1))
	if c.MaxDelay > 0 && d > float64(c.MaxDelay) {
		return c.MaxDelay
	}
	return time.Duration(d)
}

func (c RetryConfig) report(a Attempt) {
	if c.OnAttempt != nil {
		c.OnAttempt(a)
	}
}

// retry calls attempt until it succeeds, fails with a non-retryable error,
// runs out of attempts or ctx ends.
func retry(ctx context.Context, cfg RetryConfig, attempt func(n int) error) error {
	limit := cfg.attempts()
	for n := 1; ; n++ {
		err := attempt(n)
		switch {
		case err == nil:
			cfg.report(Attempt{Number: n})
			return nil
		case cfg.Retryable != nil && !cfg.Retryable(err):
			cfg.report(Attempt{Number: n, Err: err})
			return err
		case n >= limit:
			cfg.report(Attempt{Number: n, Err: err})
			return fmt.Errorf("all %d attempts failed: %w", limit, err)
		}

		wait := cfg.wait(n)
		cfg.report(Attempt{Number: n, Err: err, Wait: wait})

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
