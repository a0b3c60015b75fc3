package query

import (
	"context"

	"github.com/jonwraymond/entitycache/observe"
	"github.com/jonwraymond/entitycache/resilience"
)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithMiddleware wraps every fetch with m. Default: observe.NopMiddleware().
func WithMiddleware(m *observe.Middleware) ClientOption {
	return func(c *Client) {
		c.mw = m
	}
}

// WithExecutor runs every fetch through exec, usually built with
// fetch.NewExecutor so only network failures are retried.
func WithExecutor(exec *resilience.Executor) ClientOption {
	return func(c *Client) {
		c.exec = exec
	}
}

// WithAuthRejected registers fn to run after a fetch failed with an
// authentication rejection and the auth keys were removed.
func WithAuthRejected(fn func(ctx context.Context)) ClientOption {
	return func(c *Client) {
		c.onAuthRejected = fn
	}
}

// Option configures a single Query call.
type Option func(*queryOptions)

type queryOptions struct {
	fresh   bool
	enabled bool
}

// Fresh makes the caller wait for a fetch even when a cached value exists.
func Fresh() Option {
	return func(o *queryOptions) {
		o.fresh = true
	}
}

// Enabled gates the query on a precondition, such as a dependent resource
// being known. A disabled query never fetches; it returns cached data or
// ErrDisabled.
func Enabled(enabled bool) Option {
	return func(o *queryOptions) {
		o.enabled = enabled
	}
}
