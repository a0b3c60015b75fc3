package fetch

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a transport failure.
type Kind int

const (
	// KindUnknown is any failure the transport did not classify.
	KindUnknown Kind = iota
	// KindNetwork means the remote API was unreachable. Retryable.
	KindNetwork
	// KindAuthRejected is a 401/403. Never retried; clears the session.
	KindAuthRejected
	// KindValidation is a 4xx other than auth and 404. Surfaced to the caller.
	KindValidation
	// KindNotFound is a 404. The cache entry is removed, not marked stale.
	KindNotFound
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindAuthRejected:
		return "auth_rejected"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Sentinel errors matched by errors.Is against an *Error of the same kind.
var (
	ErrNetworkFailure = errors.New("fetch: network failure")
	ErrAuthRejected   = errors.New("fetch: authentication rejected")
	ErrValidation     = errors.New("fetch: validation failed")
	ErrNotFound       = errors.New("fetch: not found")
)

func (k Kind) sentinel() error {
	switch k {
	case KindNetwork:
		return ErrNetworkFailure
	case KindAuthRejected:
		return ErrAuthRejected
	case KindValidation:
		return ErrValidation
	case KindNotFound:
		return ErrNotFound
	default:
		return nil
	}
}

// Error is a classified transport failure.
type Error struct {
	Kind Kind

	// Status is the HTTP status code, zero for network failures.
	Status int

	// Message is the server-provided message shown to users.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements error.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("fetch: %s (%d): %s", e.Kind, e.Status, msg)
	}
	return fmt.Sprintf("fetch: %s: %s", e.Kind, msg)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// NetworkError wraps err as a KindNetwork failure.
func NetworkError(err error) error {
	return &Error{Kind: KindNetwork, Err: err}
}

// FromStatus maps an HTTP status code to an error. It returns nil for 2xx
// and 3xx codes.
func FromStatus(status int, message string) error {
	if status < http.StatusBadRequest {
		return nil
	}

	kind := KindUnknown
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = KindAuthRejected
	case status == http.StatusNotFound:
		kind = KindNotFound
	case status < http.StatusInternalServerError:
		kind = KindValidation
	case status == http.StatusBadGateway || status == http.StatusServiceUnavailable || status == http.StatusGatewayTimeout:
		kind = KindNetwork
	}
	if message == "" {
		message = http.StatusText(status)
	}
	return &Error{Kind: kind, Status: status, Message: message}
}

// KindOf returns the kind of err, or KindUnknown when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsRetryable reports whether err is a network failure worth retrying.
func IsRetryable(err error) bool {
	return KindOf(err) == KindNetwork
}
