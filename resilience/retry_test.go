package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"
	"time"
)

type statusErr struct{ retry bool }

func (e statusErr) Error() string   { return "status" }
func (e statusErr) Retryable() bool { return e.retry }

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestNewRetry_Defaults(t *testing.T) {
	r := NewRetry(RetryConfig{})
	cfg := r.Config()

	if cfg.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", cfg.MaxAttempts)
	}
	if cfg.InitialDelay != 200*time.Millisecond {
		t.Errorf("InitialDelay = %v, want 200ms", cfg.InitialDelay)
	}
	if cfg.MaxDelay != 5*time.Second {
		t.Errorf("MaxDelay = %v, want 5s", cfg.MaxDelay)
	}
	if cfg.RetryIf == nil {
		t.Error("RetryIf should default to Transient")
	}
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	r := NewRetry(RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond})

	attempts := 0
	err := r.Execute(context.Background(), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return timeoutErr{}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRetry_StopsOnPermanentError(t *testing.T) {
	r := NewRetry(RetryConfig{MaxAttempts: 5, InitialDelay: time.Millisecond})
	permanent := errors.New("404")

	attempts := 0
	err := r.Execute(context.Background(), func(context.Context) error {
		attempts++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Errorf("Execute() error = %v, want %v", err, permanent)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestRetry_Exhausted(t *testing.T) {
	r := NewRetry(RetryConfig{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		RetryIf:      func(error) bool { return true },
	})
	last := errors.New("still down")

	var retries []int
	r.config.OnRetry = func(attempt int, _ error, _ time.Duration) { retries = append(retries, attempt) }

	err := r.Execute(context.Background(), func(context.Context) error { return last })
	if !errors.Is(err, ErrMaxRetriesExceeded) {
		t.Errorf("error = %v, want ErrMaxRetriesExceeded", err)
	}
	if !errors.Is(err, last) {
		t.Errorf("error = %v, want it to wrap the last error", err)
	}
	if len(retries) != 2 {
		t.Errorf("OnRetry calls = %v, want 2", retries)
	}
}

func TestRetry_ContextCancelledDuringWait(t *testing.T) {
	r := NewRetry(RetryConfig{
		MaxAttempts:  5,
		InitialDelay: time.Hour,
		RetryIf:      func(error) bool { return true },
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := r.Execute(ctx, func(context.Context) error { return errors.New("boom") })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want context.DeadlineExceeded", err)
	}
}

func TestRetry_Delay(t *testing.T) {
	tests := []struct {
		name     string
		strategy BackoffStrategy
		attempt  int
		want     time.Duration
	}{
		{"exponential first", BackoffExponential, 1, 100 * time.Millisecond},
		{"exponential third", BackoffExponential, 3, 400 * time.Millisecond},
		{"exponential capped", BackoffExponential, 10, time.Second},
		{"linear", BackoffLinear, 3, 300 * time.Millisecond},
		{"constant", BackoffConstant, 4, 100 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRetry(RetryConfig{
				InitialDelay: 100 * time.Millisecond,
				MaxDelay:     time.Second,
				Strategy:     tt.strategy,
			})
			if got := r.Delay(tt.attempt); got != tt.want {
				t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
			}
		})
	}
}

func TestRetry_DelayJitterBounded(t *testing.T) {
	r := NewRetry(RetryConfig{InitialDelay: 100 * time.Millisecond, Strategy: BackoffConstant, Jitter: true})
	for i := 0; i < 50; i++ {
		d := r.Delay(1)
		if d < 100*time.Millisecond || d >= 125*time.Millisecond {
			t.Fatalf("Delay = %v, want within [100ms, 125ms)", d)
		}
	}
}

func TestTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("x"), false},
		{"net timeout", timeoutErr{}, true},
		{"wrapped reset", fmt.Errorf("read: %w", syscall.ECONNRESET), true},
		{"refused", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, true},
		{"retryable status", statusErr{retry: true}, true},
		{"permanent status", statusErr{retry: false}, false},
		{"caller cancelled", context.Canceled, false},
		{"caller deadline", fmt.Errorf("get: %w", context.DeadlineExceeded), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Transient(tt.err); got != tt.want {
				t.Errorf("Transient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
