package resilience

import "context"

// Executor composes the resilience primitives around one operation.
type Executor struct {
	rateLimiter    *RateLimiter
	bulkhead       *Bulkhead
	circuitBreaker *CircuitBreaker
	breakers       *Breakers
	retry          *Retry
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// NewExecutor creates an executor. With no options it runs op directly.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithRateLimiter spaces calls out.
func WithRateLimiter(rl *RateLimiter) ExecutorOption {
	return func(e *Executor) { e.rateLimiter = rl }
}

// WithBulkhead caps concurrent calls.
func WithBulkhead(b *Bulkhead) ExecutorOption {
	return func(e *Executor) { e.bulkhead = b }
}

// WithCircuitBreaker guards every call with a single breaker.
func WithCircuitBreaker(cb *CircuitBreaker) ExecutorOption {
	return func(e *Executor) { e.circuitBreaker = cb }
}

// WithBreakers guards calls with a per-key breaker; see ExecuteKey.
func WithBreakers(b *Breakers) ExecutorOption {
	return func(e *Executor) { e.breakers = b }
}

// WithRetry retries failed calls.
func WithRetry(r *Retry) ExecutorOption {
	return func(e *Executor) { e.retry = r }
}

// Execute runs op through the configured primitives, outermost first:
// rate limiter, bulkhead, circuit breaker, retry.
func (e *Executor) Execute(ctx context.Context, op func(context.Context) error) error {
	return e.ExecuteKey(ctx, "", op)
}

// ExecuteKey is Execute with the per-key breaker selected by key. An empty
// key skips the per-key breaker.
func (e *Executor) ExecuteKey(ctx context.Context, key string, op func(context.Context) error) error {
	run := op

	if e.retry != nil {
		inner := run
		run = func(ctx context.Context) error { return e.retry.Execute(ctx, inner) }
	}
	if e.breakers != nil && key != "" {
		inner, cb := run, e.breakers.For(key)
		run = func(ctx context.Context) error { return cb.Execute(ctx, inner) }
	}
	if e.circuitBreaker != nil {
		inner := run
		run = func(ctx context.Context) error { return e.circuitBreaker.Execute(ctx, inner) }
	}
	if e.bulkhead != nil {
		inner := run
		run = func(ctx context.Context) error { return e.bulkhead.Execute(ctx, inner) }
	}
	if e.rateLimiter != nil {
		inner := run
		run = func(ctx context.Context) error { return e.rateLimiter.Execute(ctx, inner) }
	}
	return run(ctx)
}
