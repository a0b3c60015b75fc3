package health

import (
	"context"
	"fmt"

	"github.com/jonwraymond/entitycache/cache"
	"github.com/jonwraymond/entitycache/resilience"
	"github.com/jonwraymond/entitycache/session"
)

// StoreCheckerConfig configures a StoreChecker.
type StoreCheckerConfig struct {
	// ErrorRatio is the share of entries in status error at which the store
	// is reported degraded.
	// Default: 0.5
	ErrorRatio float64
}

// StoreChecker reports the entity store as degraded when too many entries
// hold a failed fetch.
type StoreChecker struct {
	store  *cache.Store
	config StoreCheckerConfig
}

// NewStoreChecker creates a StoreChecker over store.
func NewStoreChecker(store *cache.Store, config StoreCheckerConfig) *StoreChecker {
	if config.ErrorRatio <= 0 || config.ErrorRatio > 1 {
		config.ErrorRatio = 0.5
	}
	return &StoreChecker{store: store, config: config}
}

// Name implements Checker.
func (c *StoreChecker) Name() string { return "store" }

// Check implements Checker.
func (c *StoreChecker) Check(context.Context) Result {
	var errored, loading, invalidated, subscribed int
	entries := c.store.Entries()
	for _, e := range entries {
		switch e.Status {
		case cache.StatusError:
			errored++
		case cache.StatusLoading:
			loading++
		}
		if e.Invalidated {
			invalidated++
		}
		if e.Subscribers > 0 {
			subscribed++
		}
	}

	details := map[string]any{
		"entries":     len(entries),
		"errors":      errored,
		"loading":     loading,
		"invalidated": invalidated,
		"subscribed":  subscribed,
	}
	if len(entries) > 0 && float64(errored)/float64(len(entries)) >= c.config.ErrorRatio {
		return Degraded(fmt.Sprintf("%d of %d entries failed to fetch", errored, len(entries))).WithDetails(details)
	}
	return Healthy(fmt.Sprintf("%d entries", len(entries))).WithDetails(details)
}

// SessionState is implemented by *session.Session.
type SessionState interface {
	State() session.State
}

// SessionChecker reports the session token lifecycle. An expiring token is
// degraded; an absent token is healthy, since anonymous use is valid.
type SessionChecker struct {
	session SessionState
}

// NewSessionChecker creates a SessionChecker.
func NewSessionChecker(s SessionState) *SessionChecker {
	return &SessionChecker{session: s}
}

// Name implements Checker.
func (c *SessionChecker) Name() string { return "session" }

// Check implements Checker.
func (c *SessionChecker) Check(context.Context) Result {
	state := c.session.State()
	details := map[string]any{"state": state.String()}
	switch state {
	case session.StateValid:
		return Healthy("token valid").WithDetails(details)
	case session.StateExpiring:
		return Degraded("token about to expire").WithDetails(details)
	default:
		return Healthy("no session").WithDetails(details)
	}
}

// CircuitChecker reports the transport circuit breaker. An open circuit is
// unhealthy, a half-open one degraded.
type CircuitChecker struct {
	breaker *resilience.CircuitBreaker
}

// NewCircuitChecker creates a CircuitChecker.
func NewCircuitChecker(cb *resilience.CircuitBreaker) *CircuitChecker {
	return &CircuitChecker{breaker: cb}
}

// Name implements Checker.
func (c *CircuitChecker) Name() string { return "transport" }

// Check implements Checker.
func (c *CircuitChecker) Check(context.Context) Result {
	state := c.breaker.State()
	details := map[string]any{
		"state":    state.String(),
		"failures": c.breaker.Failures(),
	}
	switch state {
	case resilience.StateOpen:
		return Unhealthy("circuit open", resilience.ErrCircuitOpen).WithDetails(details)
	case resilience.StateHalfOpen:
		return Degraded("circuit probing").WithDetails(details)
	default:
		return Healthy("circuit closed").WithDetails(details)
	}
}
