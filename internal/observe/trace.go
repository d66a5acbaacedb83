package observe

import (
	"context"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope name for the dbbridge tracer.
const tracerName = "github.com/MrWong99/dbbridge"

// Span attributes set on every tool dispatch.
const (
	AttrTool       = attribute.Key("dbbridge.tool")
	AttrBackend    = attribute.Key("dbbridge.backend")
	AttrToolStatus = attribute.Key("dbbridge.tool.status")
)

func tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// Backend returns the store a tool name belongs to, "postgres" or "redis",
// or "" for a name outside both tool sets.
func Backend(tool string) string {
	switch {
	case strings.HasPrefix(tool, "postgres_"):
		return "postgres"
	case strings.HasPrefix(tool, "redis_"):
		return "redis"
	}
	return ""
}

type toolKey struct{}

// StartToolSpan opens the span for one tool call, tagged with the tool and
// its backend. The returned context also carries the tool name for
// [Logger]. Finish the span with [EndToolSpan].
func StartToolSpan(ctx context.Context, tool string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{AttrTool.String(tool)}
	if b := Backend(tool); b != "" {
		attrs = append(attrs, AttrBackend.String(b))
	}
	ctx = context.WithValue(ctx, toolKey{}, tool)
	return tracer().Start(ctx, "tool "+tool,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// EndToolSpan records the dispatch status on span and ends it. A non-nil err
// is attached to the span and marks it failed.
func EndToolSpan(span trace.Span, status string, err error) {
	span.SetAttributes(AttrToolStatus.String(status))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, status)
	}
	span.End()
}

// traceID returns the hex trace ID of the active span in ctx, or "".
func traceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// Logger returns the default logger enriched from ctx: trace_id and span_id
// of the active span, and tool and backend inside a tool call.
func Logger(ctx context.Context) *slog.Logger {
	l := slog.Default()
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		l = l.With(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	if tool, ok := ctx.Value(toolKey{}).(string); ok {
		l = l.With(slog.String("tool", tool))
		if b := Backend(tool); b != "" {
			l = l.With(slog.String("backend", b))
		}
	}
	return l
}
