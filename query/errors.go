package query

import "errors"

var (
	// ErrDisabled is returned by a disabled query without cached data.
	ErrDisabled = errors.New("query: disabled and nothing cached")

	// ErrUnexpectedType is returned by Get when the cached or fetched value
	// does not have the requested type.
	ErrUnexpectedType = errors.New("query: unexpected value type")
)
