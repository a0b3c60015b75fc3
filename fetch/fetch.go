package fetch

import (
	"context"

	"github.com/jonwraymond/entitycache/cache"
)

// Func performs one request against the remote API.
//
// key identifies the resource being read or written. payload is nil for
// reads and carries the request body for mutations.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: implementations should honor cancellation/deadlines.
// - Errors: non-2xx outcomes should be reported as *Error so the engine can
// classify them; any other error is treated as KindUnknown.
type Func func(ctx context.Context, key cache.Key, payload any) (any, error)

// Static returns a Func that always yields v. Useful for seeding and tests.
func Static(v any) Func {
	return func(context.Context, cache.Key, any) (any, error) {
		return v, nil
	}
}
