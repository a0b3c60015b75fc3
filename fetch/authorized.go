package fetch

import (
	"context"
	"errors"
	"time"

	"github.com/jonwraymond/entitycache/cache"
)

// DefaultExpiryBuffer is how long before its expiry a token stops being
// handed to the transport.
const DefaultExpiryBuffer = 60 * time.Second

// ErrNoSession is the cause attached to the AuthRejected error returned when
// no usable token is available.
var ErrNoSession = errors.New("fetch: no valid session token")

// TokenSource supplies the session token. *session.Session implements it.
type TokenSource interface {
	Token() (string, bool)
	IsExpired(buffer time.Duration) bool
	Clear()
}

type authConfig struct {
	buffer    time.Duration
	anonymous bool
}

// AuthOption configures Authorized.
type AuthOption func(*authConfig)

// WithExpiryBuffer overrides DefaultExpiryBuffer.
func WithExpiryBuffer(d time.Duration) AuthOption {
	return func(c *authConfig) {
		c.buffer = d
	}
}

// AllowAnonymous lets requests through without a token when none is held.
// Used for login, registration and public listings.
func AllowAnonymous() AuthOption {
	return func(c *authConfig) {
		c.anonymous = true
	}
}

// Authorized decorates next with session token handling.
//
// Before each call the token is checked against the expiry buffer; a missing
// or expiring token fails with KindAuthRejected without reaching the
// transport. A valid token is attached with WithToken. When next reports
// KindAuthRejected the session is cleared.
func Authorized(next Func, tokens TokenSource, opts ...AuthOption) Func {
	cfg := authConfig{buffer: DefaultExpiryBuffer}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(ctx context.Context, key cache.Key, payload any) (any, error) {
		tok, ok := tokens.Token()
		switch {
		case ok && tokens.IsExpired(cfg.buffer):
			tokens.Clear()
			ok = false
		case ok:
			ctx = WithToken(ctx, tok)
		}
		if !ok && !cfg.anonymous {
			return nil, &Error{Kind: KindAuthRejected, Err: ErrNoSession}
		}

		v, err := next(ctx, key, payload)
		if err != nil && KindOf(err) == KindAuthRejected {
			tokens.Clear()
		}
		return v, err
	}
}
