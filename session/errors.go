package session

import "errors"

var (
	// ErrEmptyToken is returned by Set for an empty token.
	ErrEmptyToken = errors.New("session: empty token")

	// ErrNoExpiry is returned by Set when no ttl is given and the token
	// carries no readable exp claim.
	ErrNoExpiry = errors.New("session: token has no expiry")

	// ErrMirror wraps failures of the persisted mirror. The in-memory state
	// is still updated when the mirror fails.
	ErrMirror = errors.New("session: mirror failure")
)
