// Package txretry wraps a pure transactional function with the deadlock
// retry policy of spec.md §5: up to N attempts, 100ms * 2^attempt backoff
// with uniform jitter, surfacing errkind.DeadlockError once the budget is
// exhausted. Cancellation between attempts is free; a cancelled context
// mid-attempt aborts immediately.
package txretry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"

	"condocore/errkind"
)

// Op is a unit of work scoped to a single transaction attempt.
type Op func(ctx context.Context) error

// Config controls the retry budget. Zero value uses the spec defaults.
type Config struct {
	MaxRetries int           // default 3
	BaseDelay  time.Duration // default 100ms
}

func (c Config) withDefaults() Config {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 100 * time.Millisecond
	}
	return c
}

// Do runs op, retrying on deadlock/serialization errors up to cfg.MaxRetries
// times with exponential backoff and jitter (100ms * 2^attempt, +/- 50%).
func Do(ctx context.Context, cfg Config, op Op) error {
	cfg = cfg.withDefaults()

	var lastErr error
	attempt := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if !isDeadlock(lastErr) {
			return lastErr
		}

		attempt++
		if attempt > cfg.MaxRetries {
			return &errkind.DeadlockError{Attempts: attempt, Cause: lastErr}
		}

		delay := jitter(cfg.BaseDelay * time.Duration(1<<uint(attempt-1)))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// jitter applies +/- uniform 50% jitter around d, mirroring the
// backoff.ExponentialBackOff randomization factor rather than reimplementing
// a custom jitter distribution.
func jitter(d time.Duration) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d
	b.RandomizationFactor = 0.5
	b.Multiplier = 1
	b.MaxElapsedTime = 0
	return b.NextBackOff()
}

// isDeadlock reports whether err is a Postgres deadlock_detected (40P01) or
// serialization_failure (40001) error, the two SQLSTATE codes a row-lock
// ordering violation surfaces as.
func isDeadlock(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40P01" || pgErr.Code == "40001"
	}
	return false
}
