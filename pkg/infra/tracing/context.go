package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation name used by the service.
const TracerName = "github.com/lazysoft/consultant"

// Span attribute keys.
const (
	HTTPRoute      = "http.route"
	HTTPClientIP   = "http.client_ip"
	HTTPRequestID  = "http.request_id"
	HTTPStatusCode = "http.status_code"

	SessionID      = "consultant.session_id"
	Intent         = "consultant.intent"
	Language       = "consultant.language"
	RetrievalHits  = "consultant.retrieval.hits"
	ObjectKind     = "consultant.object.kind"
	ProviderName   = "llm.provider"
	ProviderModel  = "llm.model"
	TokensConsumed = "llm.tokens"
)

// StartSpan starts a new span on the global tracer.
func StartSpan(ctx context.Context, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, spanName, trace.WithAttributes(attrs...))
}

// RecordError records an error on the span in the context and marks it failed.
func RecordError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// TraceIDFromContext extracts the trace ID from the context.
// Returns an empty string if no trace is active.
func TraceIDFromContext(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return ""
	}
	return span.SpanContext().TraceID().String()
}
