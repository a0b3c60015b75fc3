package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OpMeta describes one cache operation for telemetry purposes.
type OpMeta struct {
	Op     string // query|refetch|create|update|delete|recover|login|logout
	Entity string // entity-type tag of the key
	Key    string // human readable key, optional
}

// SpanName returns the deterministic span name for this operation.
// Format: entitycache.<op>.<entity> or entitycache.<op>
func (m OpMeta) SpanName() string {
	if m.Entity != "" {
		return "entitycache." + m.Op + "." + m.Entity
	}
	return "entitycache." + m.Op
}

func (m OpMeta) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("cache.op", m.Op),
		attribute.String("cache.entity", m.Entity),
	}
	if m.Key != "" {
		attrs = append(attrs, attribute.String("cache.key", m.Key))
	}
	return attrs
}

func (m OpMeta) fields() []Field {
	fields := []Field{F("op", m.Op), F("entity", m.Entity)}
	if m.Key != "" {
		fields = append(fields, F("key", m.Key))
	}
	return fields
}

// Tracer starts and ends spans around transport calls.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	StartSpan(ctx context.Context, meta OpMeta) (context.Context, trace.Span)
	EndSpan(span trace.Span, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer wraps an OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

func (t *tracerImpl) StartSpan(ctx context.Context, meta OpMeta) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(meta.attributes()...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
