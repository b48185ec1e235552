package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func TestCircuitBreakerOpensAndRecovers(t *testing.T) {
	var mu sync.Mutex
	var transitions []State
	cb := NewCircuitBreaker("redis", CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     time.Minute,
		OnStateChange: func(_ string, to State) {
			mu.Lock()
			transitions = append(transitions, to)
			mu.Unlock()
		},
	})
	clock := time.Unix(1700000000, 0)
	cb.now = func() time.Time { return clock }

	for i := 0; i < 2; i++ {
		if err := cb.Execute(func() error { return errBoom }); !errors.Is(err, errBoom) {
			t.Fatalf("call %d: expected errBoom, got %v", i, err)
		}
	}
	if cb.GetState() != StateOpen {
		t.Fatalf("expected open, got %s", cb.GetState())
	}

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	if !errors.Is(err, ErrCircuitOpen) || called {
		t.Fatalf("open breaker should reject without calling fn, err=%v called=%v", err, called)
	}

	clock = clock.Add(time.Minute)
	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("probe should pass: %v", err)
	}
	if cb.GetState() != StateClosed {
		t.Fatalf("expected closed after successful probe, got %s", cb.GetState())
	}

	mu.Lock()
	defer mu.Unlock()
	want := []State{StateOpen, StateHalfOpen, StateClosed}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d = %s, want %s", i, transitions[i], want[i])
		}
	}
}

func TestCircuitBreakerIgnoresNonFailures(t *testing.T) {
	cb := NewCircuitBreaker("redis", CircuitBreakerConfig{
		FailureThreshold: 1,
		IsFailure:        func(err error) bool { return !errors.Is(err, context.Canceled) },
	})
	_ = cb.Execute(func() error { return context.Canceled })
	if cb.GetState() != StateClosed {
		t.Fatalf("cancellation should not trip the breaker")
	}
	_ = cb.Execute(func() error { return errBoom })
	if cb.GetState() != StateOpen {
		t.Fatalf("expected open after a real failure")
	}
	cb.Reset()
	if cb.GetState() != StateClosed {
		t.Fatalf("expected closed after reset")
	}
}

func TestRetry(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

	attempts := 0
	err := Retry(context.Background(), "flaky", cfg, func() error {
		attempts++
		if attempts < 3 {
			return errBoom
		}
		return nil
	})
	if err != nil || attempts != 3 {
		t.Fatalf("expected success on third attempt, err=%v attempts=%d", err, attempts)
	}

	attempts = 0
	err = Retry(context.Background(), "always", cfg, func() error { attempts++; return errBoom })
	if !errors.Is(err, errBoom) || attempts != 3 {
		t.Fatalf("expected wrapped errBoom after 3 attempts, err=%v attempts=%d", err, attempts)
	}

	attempts = 0
	cfg.Retryable = func(error) bool { return false }
	err = Retry(context.Background(), "fatal", cfg, func() error { attempts++; return errBoom })
	if !errors.Is(err, errBoom) || attempts != 1 {
		t.Fatalf("non-retryable error should stop after one attempt, attempts=%d", attempts)
	}
}

func TestRetryStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, "cancelled", RetryConfig{MaxAttempts: 5, InitialDelay: time.Second}, func() error { return errBoom })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestWithTimeout(t *testing.T) {
	err := WithTimeout(context.Background(), 10*time.Millisecond, "slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if err := WithTimeout(context.Background(), 0, "none", func(context.Context) error { return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRetryReportsExhaustion(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond}
	err := Retry(context.Background(), "page", cfg, func() error { return errBoom })
	if !errors.Is(err, ErrRetriesExhausted) || !errors.Is(err, errBoom) {
		t.Fatalf("expected exhaustion wrapping errBoom, got %v", err)
	}

	cfg.Retryable = func(error) bool { return false }
	err = Retry(context.Background(), "page", cfg, func() error { return errBoom })
	if errors.Is(err, ErrRetriesExhausted) {
		t.Errorf("non-retryable failure must not report exhaustion: %v", err)
	}
}

func TestWithTimeoutAbandonsSlowWork(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	err := WithTimeout(context.Background(), 10*time.Millisecond, "list page", func(context.Context) error {
		<-release
		return nil
	})
	if !errors.Is(err, ErrTimeout) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected ErrTimeout and DeadlineExceeded, got %v", err)
	}
}

func TestWithTimeoutReportsParentCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	release := make(chan struct{})
	defer close(release)
	err := WithTimeout(ctx, time.Second, "list page", func(context.Context) error {
		<-release
		return nil
	})
	if !errors.Is(err, context.Canceled) || errors.Is(err, ErrTimeout) {
		t.Fatalf("expected parent cancellation, got %v", err)
	}
}
