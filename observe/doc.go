// Package observe provides logging, metrics and tracing for cache operations.
//
// It is a pure instrumentation library. The query and mutation layers wrap
// every transport call with a Middleware, which records a span, fetch
// counters and a duration histogram, and writes one structured log line.
// Cache hits and misses are recorded separately through Metrics.
package observe
