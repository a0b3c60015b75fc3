// Package fetch defines the transport capability consumed by the cache engine
// and the error taxonomy it reports.
//
// The engine never performs network I/O itself. Every call site supplies a
// Func that performs the request and fails with an *Error on non-2xx
// outcomes. Authorized and Resilient decorate a Func with session token
// handling and retry/circuit-breaker policy.
package fetch
