package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Metrics records cache and transport metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordFetch records one transport call.
	RecordFetch(ctx context.Context, meta OpMeta, duration time.Duration, err error)

	// RecordLookup records whether a query was served from cache.
	RecordLookup(ctx context.Context, meta OpMeta, hit bool)

	// RecordInvalidation records how many entries an invalidation touched.
	RecordInvalidation(ctx context.Context, meta OpMeta, entries int)
}

type metricsImpl struct {
	fetchTotal    metric.Int64Counter
	fetchErrors   metric.Int64Counter
	fetchDuration metric.Float64Histogram
	hits          metric.Int64Counter
	misses        metric.Int64Counter
	invalidated   metric.Int64Counter
}

// NewMetrics creates the cache instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	m := &metricsImpl{}
	var err error

	if m.fetchTotal, err = meter.Int64Counter(
		"entitycache.fetch.total",
		metric.WithDescription("Total number of transport calls"),
		metric.WithUnit("{call}"),
	); err != nil {
		return nil, err
	}
	if m.fetchErrors, err = meter.Int64Counter(
		"entitycache.fetch.errors",
		metric.WithDescription("Total number of failed transport calls"),
		metric.WithUnit("{error}"),
	); err != nil {
		return nil, err
	}
	if m.fetchDuration, err = meter.Float64Histogram(
		"entitycache.fetch.duration_ms",
		metric.WithDescription("Transport call duration in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.hits, err = meter.Int64Counter(
		"entitycache.query.hits",
		metric.WithDescription("Queries served from cache"),
		metric.WithUnit("{query}"),
	); err != nil {
		return nil, err
	}
	if m.misses, err = meter.Int64Counter(
		"entitycache.query.misses",
		metric.WithDescription("Queries that waited for the transport"),
		metric.WithUnit("{query}"),
	); err != nil {
		return nil, err
	}
	if m.invalidated, err = meter.Int64Counter(
		"entitycache.invalidated",
		metric.WithDescription("Entries marked stale by invalidation"),
		metric.WithUnit("{entry}"),
	); err != nil {
		return nil, err
	}
	return m, nil
}

// NopMetrics returns Metrics backed by a no-op meter.
func NopMetrics() Metrics {
	m, _ := NewMetrics(noop.NewMeterProvider().Meter("noop"))
	return m
}

func (m *metricsImpl) RecordFetch(ctx context.Context, meta OpMeta, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("cache.op", meta.Op),
		attribute.String("cache.entity", meta.Entity),
	}
	opt := metric.WithAttributes(attrs...)

	m.fetchTotal.Add(ctx, 1, opt)
	if err != nil {
		m.fetchErrors.Add(ctx, 1, opt)
	}
	m.fetchDuration.Record(ctx, float64(duration.Milliseconds()), opt)
}

func (m *metricsImpl) RecordLookup(ctx context.Context, meta OpMeta, hit bool) {
	opt := metric.WithAttributes(attribute.String("cache.entity", meta.Entity))
	if hit {
		m.hits.Add(ctx, 1, opt)
		return
	}
	m.misses.Add(ctx, 1, opt)
}

func (m *metricsImpl) RecordInvalidation(ctx context.Context, meta OpMeta, entries int) {
	if entries <= 0 {
		return
	}
	m.invalidated.Add(ctx, int64(entries), metric.WithAttributes(
		attribute.String("cache.op", meta.Op),
		attribute.String("cache.entity", meta.Entity),
	))
}
