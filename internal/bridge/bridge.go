// Package bridge implements the Dispatch Bridge: it turns a tool call (name
// plus raw JSON arguments) into exactly one Store Handle operation and
// renders the outcome as a Response Envelope.
//
// Every call moves through Received → Validated → Executing → Completed, or
// ends Rejected (unknown tool, invalid arguments) or Failed (the handler
// returned an error). The bridge holds no call-scoped mutable state, so any
// number of calls may be in flight at once. It performs no retries and adds
// no timeouts of its own beyond what the caller's context carries.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/dbbridge/internal/observe"
	"github.com/MrWong99/dbbridge/internal/tool"
)

// ErrToolNotFound is matched by the error returned for unknown tool names.
var ErrToolNotFound = errors.New("tool not found")

// NotFoundError reports a call to a tool that is not in the catalog.
type NotFoundError struct {
	Name string
}

// Error implements error.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("bridge: tool %q not found", e.Name)
}

// Is reports whether target is [ErrToolNotFound].
func (e *NotFoundError) Is(target error) bool { return target == ErrToolNotFound }

// ContentText is the type of a text content block.
const ContentText = "text"

// Content is one block of a Response Envelope.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Envelope is the Response Envelope of a successful call. Calls produced by
// this package always hold exactly one text block.
type Envelope struct {
	Content []Content `json:"content"`
}

// Text returns the text of the first text block, or "".
func (e *Envelope) Text() string {
	for _, c := range e.Content {
		if c.Type == ContentText {
			return c.Text
		}
	}
	return ""
}

// Option configures a [Bridge].
type Option func(*Bridge)

// WithMetrics sets the instruments calls are recorded on. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(b *Bridge) { b.metrics = m }
}

// Bridge dispatches calls against a fixed [tool.Catalog]. It is safe for
// concurrent use.
type Bridge struct {
	catalog *tool.Catalog
	metrics *observe.Metrics
}

// New returns a Bridge serving catalog.
func New(catalog *tool.Catalog, opts ...Option) *Bridge {
	b := &Bridge{catalog: catalog}
	for _, o := range opts {
		o(b)
	}
	if b.metrics == nil {
		b.metrics = observe.DefaultMetrics()
	}
	return b
}

// Catalog returns the catalog the bridge dispatches against.
func (b *Bridge) Catalog() *tool.Catalog { return b.catalog }

// Dispatch runs the named tool with raw arguments.
//
// The name is resolved before the arguments are looked at; an unknown name
// yields a [*NotFoundError]. Arguments failing the tool's schema yield a
// [*tool.ValidationError] and the handler is not invoked. A handler error is
// returned as is, so the store's diagnostic text and error chain reach the
// caller unchanged. On success the payload is rendered as 2-space-indented
// JSON in a single text block.
func (b *Bridge) Dispatch(ctx context.Context, name string, raw json.RawMessage) (*Envelope, error) {
	start := time.Now()
	ctx, span := observe.StartToolSpan(ctx, name)
	log := observe.Logger(ctx)

	t, ok := b.catalog.Lookup(name)
	if !ok {
		err := &NotFoundError{Name: name}
		b.finish(ctx, span, name, observe.StatusNotFound, start, err)
		log.Warn("bridge: unknown tool")
		return nil, err
	}

	args, err := t.Schema.Validate(raw)
	if err != nil {
		var verr *tool.ValidationError
		if errors.As(err, &verr) {
			verr.Tool = name
		}
		b.finish(ctx, span, name, observe.StatusInvalid, start, err)
		log.Warn("bridge: invalid arguments", "err", err)
		return nil, err
	}

	payload, err := t.Handler(ctx, args)
	if err != nil {
		b.finish(ctx, span, name, observe.StatusError, start, err)
		log.Warn("bridge: tool failed", "err", err, "duration", time.Since(start))
		return nil, err
	}

	text, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		err = fmt.Errorf("bridge: encode %s result: %w", name, err)
		b.finish(ctx, span, name, observe.StatusError, start, err)
		log.Error("bridge: encode result", "err", err)
		return nil, err
	}

	b.finish(ctx, span, name, observe.StatusOK, start, nil)
	log.Debug("bridge: tool completed", "duration", time.Since(start), "bytes", len(text))
	return &Envelope{Content: []Content{{Type: ContentText, Text: string(text)}}}, nil
}

// finish closes out a call on every path: metrics first, then the span.
func (b *Bridge) finish(ctx context.Context, span trace.Span, name, status string, start time.Time, err error) {
	b.metrics.RecordToolCall(ctx, name, status, time.Since(start).Seconds())
	observe.EndToolSpan(span, status, err)
}
