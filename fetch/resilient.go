package fetch

import (
	"context"
	"errors"

	"github.com/jonwraymond/entitycache/cache"
	"github.com/jonwraymond/entitycache/resilience"
)

// NewExecutor builds a resilience executor whose retry and circuit breaker
// only react to network failures. Auth, validation and not-found errors pass
// straight through.
func NewExecutor(retry resilience.RetryConfig, breaker resilience.CircuitBreakerConfig) *resilience.Executor {
	retry.RetryIf = IsRetryable
	breaker.IsFailure = IsRetryable
	return resilience.NewExecutor(
		resilience.WithRetry(resilience.NewRetry(retry)),
		resilience.WithCircuitBreaker(resilience.NewCircuitBreaker(breaker)),
	)
}

// Resilient runs next through exec. A nil exec returns next unchanged.
// An open circuit is reported as a network failure.
func Resilient(next Func, exec *resilience.Executor) Func {
	if exec == nil {
		return next
	}
	return func(ctx context.Context, key cache.Key, payload any) (any, error) {
		var v any
		err := exec.Execute(ctx, func(ctx context.Context) error {
			var err error
			v, err = next(ctx, key, payload)
			return err
		})
		if errors.Is(err, resilience.ErrCircuitOpen) {
			return nil, NetworkError(err)
		}
		if err != nil {
			return nil, err
		}
		return v, nil
	}
}
