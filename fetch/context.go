package fetch

import "context"

// Context keys for fetch-related values.
type contextKey int

const (
	tokenKey contextKey = iota
)

// WithToken returns a new context carrying the session token for the
// transport to attach to its request.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey, token)
}

// TokenFromContext retrieves the session token from the context.
// Returns empty string if no token is present.
func TokenFromContext(ctx context.Context) string {
	tok, _ := ctx.Value(tokenKey).(string)
	return tok
}
