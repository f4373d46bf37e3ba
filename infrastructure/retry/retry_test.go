package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonesrussell/marketplace/infrastructure/retry"
)

func TestBackoff(t *testing.T) {
	t.Parallel()

	cfg := retry.Config{InitialDelay: time.Second, MaxDelay: 5 * time.Second, Multiplier: 2}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 0, want: time.Second},
		{attempt: 1, want: time.Second},
		{attempt: 2, want: 2 * time.Second},
		{attempt: 3, want: 4 * time.Second},
		{attempt: 4, want: 5 * time.Second},
		{attempt: 400, want: 5 * time.Second},
	}

	for _, tt := range tests {
		if got := retry.Backoff(cfg, tt.attempt); got != tt.want {
			t.Errorf("Backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestExhausted(t *testing.T) {
	t.Parallel()

	cfg := retry.Config{MaxAttempts: 3}
	if retry.Exhausted(cfg, 2) {
		t.Error("Exhausted(2) = true, want false")
	}
	if !retry.Exhausted(cfg, 3) {
		t.Error("Exhausted(3) = false, want true")
	}
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	t.Parallel()

	calls := 0
	err := retry.Retry(context.Background(), retry.Config{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Millisecond,
	}, func() error {
		calls++
		if calls < 3 {
			return errors.New("dial tcp: connection refused")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetry_StopsOnPermanentError(t *testing.T) {
	t.Parallel()

	permanent := errors.New("mapping conflict")
	calls := 0
	err := retry.Retry(context.Background(), retry.Config{MaxAttempts: 5, InitialDelay: time.Millisecond}, func() error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Errorf("Retry() error = %v, want %v", err, permanent)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetry_MaxAttemptsExceeded(t *testing.T) {
	t.Parallel()

	err := retry.Retry(context.Background(), retry.Config{
		MaxAttempts:  2,
		InitialDelay: time.Millisecond,
		IsRetryable:  func(error) bool { return true },
	}, func() error { return errors.New("boom") })
	if !errors.Is(err, retry.ErrMaxAttemptsExceeded) {
		t.Errorf("Retry() error = %v, want ErrMaxAttemptsExceeded", err)
	}
}

func TestRetry_ContextCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := retry.Retry(ctx, retry.DefaultConfig(), func() error { return nil })
	if !errors.Is(err, retry.ErrContextCancelled) {
		t.Errorf("Retry() error = %v, want ErrContextCancelled", err)
	}
}
