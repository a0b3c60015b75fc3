package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jonwraymond/entitycache/observe"
)

// DefaultBuffer is the safety window before expiry in which a token is
// reported as expiring.
const DefaultBuffer = 60 * time.Second

// State is a position in the token lifecycle.
type State int

const (
	// StateAbsent means no usable token is held.
	StateAbsent State = iota
	// StateValid means the token is outside the expiry buffer.
	StateValid
	// StateExpiring means the token is within the expiry buffer but not yet
	// past its hard expiry.
	StateExpiring
)

func (s State) String() string {
	switch s {
	case StateValid:
		return "valid"
	case StateExpiring:
		return "expiring"
	default:
		return "absent"
	}
}

// Token is a session token with its absolute expiry.
type Token struct {
	Value     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Option configures a Session.
type Option func(*Session)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// WithLogger sets the logger. Default: observe.NopLogger().
func WithLogger(l observe.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// WithBuffer sets the buffer State uses to report StateExpiring.
// Default: DefaultBuffer.
func WithBuffer(d time.Duration) Option {
	return func(s *Session) {
		s.buffer = d
	}
}

// Session holds the current token.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Errors: mirror failures never lose the in-memory token; they are logged,
// and returned from Set and Close wrapped in ErrMirror.
// - A token past its hard expiry is never returned; observing one clears it.
type Session struct {
	mirror Mirror
	now    func() time.Time
	logger observe.Logger
	buffer time.Duration

	mu    sync.Mutex
	token Token
	held  bool
}

// New creates a Session backed by mirror. A nil mirror means an in-memory
// mirror private to this Session.
func New(mirror Mirror, opts ...Option) *Session {
	if mirror == nil {
		mirror = NewMemoryMirror()
	}
	s := &Session{
		mirror: mirror,
		now:    time.Now,
		logger: observe.NopLogger(),
		buffer: DefaultBuffer,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(observe.F("component", "session"))
	return s
}

// Set stores token with an expiry of now+ttl and mirrors it. With ttl <= 0
// the expiry is read from the token's exp claim.
func (s *Session) Set(token string, ttl time.Duration) error {
	if token == "" {
		return ErrEmptyToken
	}

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = s.now().Add(ttl)
	} else {
		exp, err := ExpiryFromJWT(token)
		if err != nil {
			return err
		}
		expiresAt = exp
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = Token{Value: token, ExpiresAt: expiresAt}
	s.held = true
	if err := s.mirror.Save(context.Background(), s.token); err != nil {
		s.logger.Warn(context.Background(), "mirror save failed", observe.F("error", err))
		return fmt.Errorf("%w: save: %w", ErrMirror, err)
	}
	s.logger.Debug(context.Background(), "token stored", observe.F("expires_at", expiresAt))
	return nil
}

// Token returns the current token. It reloads from the mirror when memory is
// empty and clears a token past its hard expiry.
func (s *Session) Token() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loadLocked() {
		return "", false
	}
	return s.token.Value, true
}

// ExpiresAt returns the absolute expiry of the held token.
func (s *Session) ExpiresAt() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loadLocked() {
		return time.Time{}, false
	}
	return s.token.ExpiresAt, true
}

// IsExpired reports whether now >= expiresAt - buffer. Without a token it
// reports true.
func (s *Session) IsExpired(buffer time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loadLocked() {
		return true
	}
	return !s.now().Before(s.token.ExpiresAt.Add(-buffer))
}

// State returns the lifecycle state, using the configured buffer.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case !s.loadLocked():
		return StateAbsent
	case !s.now().Before(s.token.ExpiresAt.Add(-s.buffer)):
		return StateExpiring
	default:
		return StateValid
	}
}

// Clear wipes the token from memory and the mirror. It is called on logout
// and when the transport rejects the token.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.clearLocked(context.Background())
}

// Close is the teardown hook for process or page unload. It clears the
// session and reports mirror failures.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clearLocked(context.Background())
}

// loadLocked makes sure s.token is current. It returns false when no token
// is held after the reload and hard-expiry checks.
func (s *Session) loadLocked() bool {
	if !s.held {
		tok, ok, err := s.mirror.Load(context.Background())
		if err != nil {
			s.logger.Warn(context.Background(), "mirror load failed", observe.F("error", err))
			return false
		}
		if !ok || tok.Value == "" {
			return false
		}
		s.token, s.held = tok, true
		s.logger.Debug(context.Background(), "token reloaded from mirror")
	}

	if !s.now().Before(s.token.ExpiresAt) {
		s.logger.Info(context.Background(), "token expired")
		_ = s.clearLocked(context.Background())
		return false
	}
	return true
}

func (s *Session) clearLocked(ctx context.Context) error {
	s.token = Token{}
	s.held = false
	if err := s.mirror.Clear(ctx); err != nil {
		s.logger.Warn(ctx, "mirror clear failed", observe.F("error", err))
		return fmt.Errorf("%w: clear: %w", ErrMirror, err)
	}
	return nil
}

// ExpiryFromJWT reads the exp claim of a JWT. The signature is not verified.
func ExpiryFromJWT(token string) (time.Time, error) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", ErrNoExpiry, err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, ErrNoExpiry
	}
	return claims.ExpiresAt.Time, nil
}
