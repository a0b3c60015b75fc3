package observe

import (
	"context"
	"time"
)

// CallFunc is one instrumented transport call.
type CallFunc func(ctx context.Context) (any, error)

// Middleware wraps transport calls with tracing, metrics, and logging.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Errors: errors from the wrapped call are recorded and returned unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a new Middleware with the given components.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	return &Middleware{tracer: tracer, metrics: metrics, logger: logger}
}

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}
	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}

// NopMiddleware returns a Middleware that records nothing.
func NopMiddleware() *Middleware {
	return MustMiddleware(Nop())
}

// MustMiddleware is MiddlewareFromObserver that panics on error.
func MustMiddleware(obs Observer) *Middleware {
	m, err := MiddlewareFromObserver(obs)
	if err != nil {
		panic(err)
	}
	return m
}

// Logger returns the middleware's logger.
func (m *Middleware) Logger() Logger { return m.logger }

// Metrics returns the middleware's metrics.
func (m *Middleware) Metrics() Metrics { return m.metrics }

// Call runs fn inside a span and records its outcome.
func (m *Middleware) Call(ctx context.Context, meta OpMeta, fn CallFunc) (any, error) {
	ctx, span := m.tracer.StartSpan(ctx, meta)
	start := time.Now()

	result, err := fn(ctx)

	duration := time.Since(start)
	m.tracer.EndSpan(span, err)
	m.metrics.RecordFetch(ctx, meta, duration, err)

	fields := append(meta.fields(), F("duration_ms", float64(duration.Milliseconds())))
	if err != nil {
		fields = append(fields, F("error", err.Error()))
		m.logger.Warn(ctx, "fetch failed", fields...)
	} else {
		m.logger.Debug(ctx, "fetch completed", fields...)
	}
	return result, err
}
