package cache

import "time"

// Status is the fetch status of a cache entry.
type Status int

const (
	// StatusIdle means no fetch is running and the entry is not current,
	// either because it was never fetched or because it was invalidated.
	StatusIdle Status = iota
	// StatusLoading means a fetch for the entry is in flight.
	StatusLoading
	// StatusSuccess means the entry holds the result of the last fetch.
	StatusSuccess
	// StatusError means the last fetch failed.
	StatusError
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Entry is a snapshot of one cached value and its metadata.
//
// Entries are returned by value. Mutating a returned Entry never changes the
// store; use Store methods instead.
type Entry struct {
	Key Key

	// Value is the cached entity or entity list. Only meaningful when HasData.
	Value any

	// HasData is false for entries that were created by a fetch that has not
	// succeeded yet.
	HasData bool

	Status Status

	// LastUpdated is when Value was last written.
	LastUpdated time.Time

	// Err is the error of the last failed fetch, nil otherwise.
	Err error

	// Invalidated is set by Invalidate and cleared by the next Write.
	Invalidated bool

	// Subscribers is the number of active listeners on the key.
	Subscribers int
}

// Listener is notified with the new state of an entry after every change.
// A removed entry is reported with HasData false and Status idle, or Status
// error when Fail dropped it.
type Listener func(Entry)
