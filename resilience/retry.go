package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net"
	"syscall"
	"time"
)

// BackoffStrategy defines how delays increase between attempts.
type BackoffStrategy int

const (
	// BackoffExponential multiplies the delay by Multiplier each attempt.
	BackoffExponential BackoffStrategy = iota
	// BackoffLinear grows the delay by InitialDelay each attempt.
	BackoffLinear
	// BackoffConstant waits InitialDelay between every attempt.
	BackoffConstant
)

// RetryConfig configures the retry behavior.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts, including the first.
	// Default: 3
	MaxAttempts int

	// InitialDelay is the delay before the second attempt.
	// Default: 200ms
	InitialDelay time.Duration

	// MaxDelay caps the delay between attempts.
	// Default: 5s
	MaxDelay time.Duration

	// Multiplier is the growth factor for BackoffExponential.
	// Default: 2.0
	Multiplier float64

	// Strategy is the backoff strategy.
	// Default: BackoffExponential
	Strategy BackoffStrategy

	// Jitter adds up to 25% random delay to each wait.
	Jitter bool

	// RetryIf reports whether err is worth another attempt.
	// Default: Transient
	RetryIf func(err error) bool

	// OnRetry is called before each wait.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Retry re-runs an operation with backoff.
type Retry struct {
	config RetryConfig
}

// NewRetry creates a retry handler with defaults applied.
func NewRetry(config RetryConfig) *Retry {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = 200 * time.Millisecond
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 5 * time.Second
	}
	if config.Multiplier <= 0 {
		config.Multiplier = 2.0
	}
	if config.RetryIf == nil {
		config.RetryIf = Transient
	}
	return &Retry{config: config}
}

// Execute runs op until it succeeds, returns a non-retryable error, the
// attempts run out, or ctx is done. An exhausted retry returns an error that
// matches both ErrMaxRetriesExceeded and the last error from op.
func (r *Retry) Execute(ctx context.Context, op func(context.Context) error) error {
	var last error
	for attempt := 1; ; attempt++ {
		last = op(ctx)
		if last == nil {
			return nil
		}
		if !r.config.RetryIf(last) {
			return last
		}
		if attempt >= r.config.MaxAttempts {
			if attempt == 1 {
				return last
			}
			return fmt.Errorf("%w after %d attempts: %w", ErrMaxRetriesExceeded, attempt, last)
		}

		delay := r.Delay(attempt)
		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, last, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(ctx.Err(), last)
		case <-timer.C:
		}
	}
}

// Delay returns the wait after the given failed attempt (1-based).
func (r *Retry) Delay(attempt int) time.Duration {
	var delay time.Duration
	switch r.config.Strategy {
	case BackoffConstant:
		delay = r.config.InitialDelay
	case BackoffLinear:
		delay = r.config.InitialDelay * time.Duration(attempt)
	default:
		delay = time.Duration(float64(r.config.InitialDelay) * math.Pow(r.config.Multiplier, float64(attempt-1)))
	}
	if delay > r.config.MaxDelay {
		delay = r.config.MaxDelay
	}
	if r.config.Jitter && delay >= 4 {
		// #nosec G404 -- timing variance only.
		delay += time.Duration(rand.Int64N(int64(delay / 4)))
	}
	return delay
}

// Config returns the effective configuration.
func (r *Retry) Config() RetryConfig {
	return r.config
}

// Retryable is implemented by errors that know whether a repeat could help,
// such as an HTTP 503.
type Retryable interface {
	Retryable() bool
}

// Transient reports whether err looks like a passing network condition:
// a timeout on a single dial or read, a reset or refused connection, or an
// error implementing Retryable that says so. Cancellation of the caller's
// context is never transient.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var r Retryable
	if errors.As(err, &r) {
		return r.Retryable()
	}
	if errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
