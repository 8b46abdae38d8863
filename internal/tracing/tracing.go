// Package tracing wraps go.opentelemetry.io/otel span creation behind the
// same "maybe start a span" helper thunder's opentracingkit package
// exposed for the older opentracing API: start a child span if the
// incoming context already carries one, otherwise hand back a span from
// the global no-op tracer so callers never need a nil check.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/graphfed/engine")

// StartSpan starts a span named name as a child of any span already in
// ctx, returning the (possibly no-op) span and the context carrying it.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (trace.Span, context.Context) {
	ctx, span := tracer.Start(ctx, name)
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	return span, ctx
}

// RecordError marks span as failed and attaches err, mirroring
// opentracingkit.LogError's ext.Error/LogFields pair for the otel API.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
