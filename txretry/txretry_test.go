package txretry

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestDoSucceedsWithoutRetry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Config{}, func(ctx context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestDoRetriesOnDeadlockThenSucceeds(t *testing.T) {
	calls := 0
	deadlock := &pgconn.PgError{Code: "40P01"}
	err := Do(context.Background(), Config{BaseDelay: 1}, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return deadlock
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDoExhaustsRetryBudget(t *testing.T) {
	deadlock := &pgconn.PgError{Code: "40001"}
	calls := 0
	err := Do(context.Background(), Config{MaxRetries: 2, BaseDelay: 1}, func(ctx context.Context) error {
		calls++
		return deadlock
	})
	if err == nil {
		t.Fatal("expected error")
	}
	var deadlockErr interface{ Unwrap() error }
	if !errors.As(err, &deadlockErr) {
		t.Fatalf("expected unwrappable deadlock error, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts (1 + 2 retries), got %d", calls)
	}
}

func TestDoDoesNotRetryNonDeadlockErrors(t *testing.T) {
	calls := 0
	plain := errors.New("validation failed")
	err := Do(context.Background(), Config{}, func(ctx context.Context) error {
		calls++
		return plain
	})
	if !errors.Is(err, plain) {
		t.Fatalf("expected plain error passthrough, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call (no retry on non-deadlock), got %d", calls)
	}
}
