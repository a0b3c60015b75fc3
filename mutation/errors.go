package mutation

import "errors"

var (
	// ErrNoFetcher is returned when a Request has no Fetch function.
	ErrNoFetcher = errors.New("mutation: request has no fetcher")

	// ErrMissingID is returned for an update or delete without an id.
	ErrMissingID = errors.New("mutation: update and delete require an id")

	// ErrUnknownOp is returned for an Op outside Create, Update and Delete.
	ErrUnknownOp = errors.New("mutation: unknown operation")

	// ErrNoSession is returned by Login and Register when the coordinator
	// was built without a session.
	ErrNoSession = errors.New("mutation: no session configured")

	// ErrBadAuthResult is returned when a login or registration fetcher
	// yields something other than an AuthResult with a token.
	ErrBadAuthResult = errors.New("mutation: fetcher did not return an auth result")
)
