// Package resilience provides retry and circuit-breaker policies for
// transport calls.
//
// The cache engine never retries on its own; a fetch.Func is wrapped with an
// Executor when the caller wants transient network failures absorbed before
// they reach the cache. Which errors count is decided by the RetryIf and
// IsFailure classifiers, so auth and validation failures can pass straight
// through.
//
//	exec := resilience.NewExecutor(
//	    resilience.WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
//	        MaxFailures:  5,
//	        ResetTimeout: 30 * time.Second,
//	    })),
//	    resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{
//	        MaxAttempts:  3,
//	        InitialDelay: 200 * time.Millisecond,
//	    })),
//	)
//
//	err := exec.Execute(ctx, func(ctx context.Context) error {
//	    _, err := fetchComputer(ctx, id)
//	    return err
//	})
package resilience
