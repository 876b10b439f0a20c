package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// RetryConfig controls restarts of a source that failed before delivering
// its first frame.
type RetryConfig struct {
	MaxRetries    int           // default: 5
	RetryDelay    time.Duration // default: 1 second
	MaxRetryDelay time.Duration // default: 30 seconds
}

// DefaultRetryConfig returns the default schedule: 1s, 2s, 4s, 8s, 16s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    5,
		RetryDelay:    1 * time.Second,
		MaxRetryDelay: 30 * time.Second,
	}
}

// RetryState tracks attempts across one RunWithRetry call.
type RetryState struct {
	CurrentRetries int
	Retries        uint32
}

// AttemptFunc runs one attempt.
type AttemptFunc func(ctx context.Context) error

type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// RunWithRetry calls fn until it succeeds, returns a Permanent error, the
// context ends or MaxRetries is exceeded. Delays grow exponentially.
func RunWithRetry(ctx context.Context, fn AttemptFunc, cfg RetryConfig, state *RetryState) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn(ctx)
		if err == nil {
			state.CurrentRetries = 0
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}

		state.CurrentRetries++
		state.Retries++
		if state.CurrentRetries > cfg.MaxRetries {
			return fmt.Errorf("pipeline: max retries exceeded (%d attempts): %w", cfg.MaxRetries, err)
		}

		delay := calculateBackoff(state.CurrentRetries, cfg)
		slog.Warn("pipeline: retrying source",
			"error", err,
			"attempt", state.CurrentRetries,
			"max_retries", cfg.MaxRetries,
			"delay", delay,
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// calculateBackoff returns RetryDelay * 2^(attempt-1), capped at MaxRetryDelay.
func calculateBackoff(attempt int, cfg RetryConfig) time.Duration {
	delay := cfg.RetryDelay * time.Duration(1<<uint(attempt-1))
	if cfg.MaxRetryDelay > 0 && delay > cfg.MaxRetryDelay {
		delay = cfg.MaxRetryDelay
	}
	return delay
}
