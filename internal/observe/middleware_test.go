package observe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// testSetup creates both metrics and tracing infrastructure for middleware tests.
func testSetup(t *testing.T) (*Metrics, *sdkmetric.ManualReader, *tracetest.InMemoryExporter) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	origTP := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(origTP) })

	return m, reader, exp
}

func serve(h http.Handler, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// telemetryMux mirrors the listener's routes; /readyz answers status.
func telemetryMux(status int) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(http.ResponseWriter, *http.Request) {})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(status) })
	mux.HandleFunc("GET /metrics", func(http.ResponseWriter, *http.Request) {})
	return mux
}

func TestMiddleware_SetsTraceIDHeader(t *testing.T) {
	m, _, _ := testSetup(t)

	var seen string
	h := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = traceID(r.Context())
	}))
	rec := serve(h, "/healthz", nil)

	if len(seen) != 32 {
		t.Fatalf("handler saw trace ID %q, want 32 hex chars", seen)
	}
	if got := rec.Header().Get("X-Trace-ID"); got != seen {
		t.Errorf("X-Trace-ID = %q, want %q", got, seen)
	}
}

func TestMiddleware_SpanNamedByRoute(t *testing.T) {
	m, _, exp := testSetup(t)

	rec := serve(Middleware(m)(telemetryMux(http.StatusServiceUnavailable)), "/readyz", nil)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d", rec.Code)
	}
	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name != "telemetry GET /readyz" {
		t.Errorf("span name = %q", spans[0].Name)
	}
	attrs := map[string]attribute.Value{}
	for _, a := range spans[0].Attributes {
		attrs[string(a.Key)] = a.Value
	}
	if v := attrs["http.response.status_code"]; v.AsInt64() != 503 {
		t.Errorf("http.response.status_code = %v, want 503", v)
	}
	if v := attrs["http.route"]; v.AsString() != "/readyz" {
		t.Errorf("http.route = %v, want /readyz", v)
	}
}

func TestMiddleware_RecordsDurationByRoute(t *testing.T) {
	m, reader, exp := testSetup(t)

	h := Middleware(m)(telemetryMux(http.StatusOK))
	serve(h, "/metrics", nil)
	serve(h, "/metrics", nil)
	serve(h, "/favicon.ico", nil)
	serve(h, "/nope", nil)

	met := findMetric(collect(t, reader), "dbbridge.http.request.duration")
	if met == nil {
		t.Fatal("metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok || len(hist.DataPoints) == 0 {
		t.Fatal("no histogram data points")
	}
	counts := map[string]uint64{}
	for _, dp := range hist.DataPoints {
		v, _ := dp.Attributes.Value("route")
		counts[v.AsString()] += dp.Count
	}
	if counts["/metrics"] != 2 {
		t.Errorf("/metrics samples = %d, want 2 (all: %v)", counts["/metrics"], counts)
	}
	if counts[unmatchedRoute] != 2 {
		t.Errorf("unmatched samples = %d, want 2 (all: %v)", counts[unmatchedRoute], counts)
	}
	if len(counts) != 2 {
		t.Errorf("routes = %v, want only /metrics and %s", counts, unmatchedRoute)
	}

	last := exp.GetSpans()[len(exp.GetSpans())-1]
	if last.Name != "telemetry GET "+unmatchedRoute {
		t.Errorf("unmatched span name = %q", last.Name)
	}
}

func TestMiddleware_ContinuesIncomingTrace(t *testing.T) {
	m, _, _ := testSetup(t)
	const want = "4bf92f3577b34da6a3ce929d0e0e4736"

	var seen string
	h := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = traceID(r.Context())
	}))
	rec := serve(h, "/healthz", http.Header{
		"Traceparent": {"00-" + want + "-00f067aa0ba902b7-01"},
	})

	if seen != want {
		t.Errorf("trace ID = %q, want %q", seen, want)
	}
	if got := rec.Header().Get("X-Trace-ID"); got != want {
		t.Errorf("X-Trace-ID = %q, want %q", got, want)
	}
}
