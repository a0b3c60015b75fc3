package mutation

import (
	"context"
	"errors"
	"time"

	"github.com/jonwraymond/entitycache/fetch"
	"github.com/jonwraymond/entitycache/keys"
	"github.com/jonwraymond/entitycache/observe"
	"github.com/jonwraymond/entitycache/session"
)

// AuthResult is what a login or registration fetcher returns.
type AuthResult struct {
	Token string

	// TTL is the token lifetime. Zero means the token's exp claim is used.
	TTL time.Duration

	// User is the authenticated user record.
	User any
}

// Login authenticates with fetcher and stores the resulting session.
func (c *Coordinator) Login(ctx context.Context, payload any, fetcher fetch.Func) (AuthResult, error) {
	return c.authenticate(ctx, "login", payload, fetcher)
}

// Register creates an account with fetcher and stores the resulting session.
func (c *Coordinator) Register(ctx context.Context, payload any, fetcher fetch.Func) (AuthResult, error) {
	return c.authenticate(ctx, "register", payload, fetcher)
}

// Logout ends the session. The token and every auth-scoped key are cleared
// even when fetcher fails; its error is still returned. A nil fetcher skips
// the transport call.
func (c *Coordinator) Logout(ctx context.Context, fetcher fetch.Func) error {
	var err error
	if fetcher != nil {
		_, err = c.call(context.WithoutCancel(ctx), "logout", keys.AuthAll(), nil, fetcher)
	}
	if c.session != nil {
		c.session.Clear()
	}
	c.store.RemovePrefix(keys.AuthAll())
	return err
}

func (c *Coordinator) authenticate(ctx context.Context, op string, payload any, fetcher fetch.Func) (AuthResult, error) {
	if c.session == nil {
		return AuthResult{}, ErrNoSession
	}
	if fetcher == nil {
		return AuthResult{}, ErrNoFetcher
	}

	v, err := c.call(context.WithoutCancel(ctx), op, keys.AuthAll(), payload, fetcher)
	if err != nil {
		return AuthResult{}, err
	}

	var res AuthResult
	switch r := v.(type) {
	case AuthResult:
		res = r
	case *AuthResult:
		if r != nil {
			res = *r
		}
	}
	if res.Token == "" {
		return AuthResult{}, ErrBadAuthResult
	}

	if err := c.session.Set(res.Token, res.TTL); err != nil {
		if !errors.Is(err, session.ErrMirror) {
			return AuthResult{}, err
		}
		c.mw.Logger().Warn(ctx, "session not persisted", observe.F("error", err))
	}

	// Another account's data must not survive a login.
	c.store.RemovePrefix(keys.AuthAll())
	if res.User != nil {
		c.store.Write(keys.CurrentUser(), res.User)
	}
	return res, nil
}
