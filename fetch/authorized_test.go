package fetch

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jonwraymond/entitycache/cache"
)

type fakeTokens struct {
	token   string
	expired bool
	cleared int
}

func (f *fakeTokens) Token() (string, bool) {
	return f.token, f.token != ""
}

func (f *fakeTokens) IsExpired(time.Duration) bool {
	return f.expired
}

func (f *fakeTokens) Clear() {
	f.token = ""
	f.cleared++
}

func TestAuthorized_AttachesToken(t *testing.T) {
	tokens := &fakeTokens{token: "tok-1"}

	var seen string
	fn := Authorized(func(ctx context.Context, _ cache.Key, _ any) (any, error) {
		seen = TokenFromContext(ctx)
		return "ok", nil
	}, tokens)

	v, err := fn(context.Background(), cache.Key{"users", "detail", "u1"}, nil)
	if err != nil || v != "ok" {
		t.Fatalf("fn() = %v, %v", v, err)
	}
	if seen != "tok-1" {
		t.Errorf("transport saw token %q, want tok-1", seen)
	}
}

func TestAuthorized_RejectsExpiringToken(t *testing.T) {
	tokens := &fakeTokens{token: "tok-1", expired: true}

	called := false
	fn := Authorized(func(context.Context, cache.Key, any) (any, error) {
		called = true
		return nil, nil
	}, tokens)

	_, err := fn(context.Background(), cache.Key{"users"}, nil)
	if !errors.Is(err, ErrAuthRejected) || !errors.Is(err, ErrNoSession) {
		t.Errorf("fn() error = %v, want ErrAuthRejected wrapping ErrNoSession", err)
	}
	if called {
		t.Error("transport called with an expiring token")
	}
	if tokens.cleared != 1 {
		t.Errorf("Clear() called %d times, want 1", tokens.cleared)
	}
}

func TestAuthorized_AnonymousPassesWithoutToken(t *testing.T) {
	tokens := &fakeTokens{}

	var seen = "unset"
	fn := Authorized(func(ctx context.Context, _ cache.Key, _ any) (any, error) {
		seen = TokenFromContext(ctx)
		return "projects", nil
	}, tokens, AllowAnonymous())

	if _, err := fn(context.Background(), cache.Key{"projects", "list"}, nil); err != nil {
		t.Fatalf("fn() error = %v", err)
	}
	if seen != "" {
		t.Errorf("anonymous call saw token %q", seen)
	}
}

func TestAuthorized_ClearsOnAuthRejected(t *testing.T) {
	tokens := &fakeTokens{token: "tok-1"}

	fn := Authorized(func(context.Context, cache.Key, any) (any, error) {
		return nil, FromStatus(http.StatusUnauthorized, "session revoked")
	}, tokens)

	_, err := fn(context.Background(), cache.Key{"users"}, nil)
	if !errors.Is(err, ErrAuthRejected) {
		t.Errorf("fn() error = %v, want ErrAuthRejected", err)
	}
	if tokens.cleared != 1 {
		t.Errorf("Clear() called %d times, want 1", tokens.cleared)
	}
}

func TestAuthorized_KeepsSessionOnOtherErrors(t *testing.T) {
	tokens := &fakeTokens{token: "tok-1"}

	fn := Authorized(func(context.Context, cache.Key, any) (any, error) {
		return nil, NetworkError(errors.New("offline"))
	}, tokens)

	_, _ = fn(context.Background(), cache.Key{"users"}, nil)
	if tokens.cleared != 0 {
		t.Errorf("Clear() called %d times, want 0", tokens.cleared)
	}
}
