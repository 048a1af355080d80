package observe

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// restoreGlobals puts the global OTel providers back after InitProvider.
func restoreGlobals(t *testing.T) {
	t.Helper()
	mp, tp, prop := otel.GetMeterProvider(), otel.GetTracerProvider(), otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetMeterProvider(mp)
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(prop)
	})
}

func TestInitProvider_ExportsToRegistry(t *testing.T) {
	restoreGlobals(t)
	ctx := context.Background()

	reg := NewRegistry()
	spans := tracetest.NewInMemoryExporter()
	shutdown, err := InitProvider(ctx, ProviderConfig{
		ServiceVersion: "test",
		Registerer:     reg,
		SpanExporter:   spans,
	})
	if err != nil {
		t.Fatalf("InitProvider: %v", err)
	}

	m, err := NewMetrics(otel.GetMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	m.RecordFrame(ctx, 0)
	m.RecordRecognition(ctx, "up")

	rec := httptest.NewRecorder()
	MetricsHandler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{"wakeline_frames_total", "wakeline_recognitions_total", `keyword="up"`, "go_goroutines"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("/metrics output missing %q", want)
		}
	}

	_, span := StartSpan(ctx, "session")
	span.End()
	if err := shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if got := len(spans.GetSpans()); got != 1 {
		t.Errorf("exported spans = %d, want 1 after shutdown flush", got)
	}
}

func TestInitProvider_InstallsPropagator(t *testing.T) {
	restoreGlobals(t)
	ctx := context.Background()

	shutdown, err := InitProvider(ctx, ProviderConfig{Registerer: NewRegistry()})
	if err != nil {
		t.Fatalf("InitProvider: %v", err)
	}
	t.Cleanup(func() { _ = shutdown(ctx) })

	fields := otel.GetTextMapPropagator().Fields()
	for _, want := range []string{"traceparent", "baggage"} {
		found := false
		for _, f := range fields {
			found = found || f == want
		}
		if !found {
			t.Errorf("propagator fields %v missing %q", fields, want)
		}
	}
}

func TestInitProvider_InvalidRatio(t *testing.T) {
	for _, ratio := range []float64{-0.1, 1.5} {
		if _, err := InitProvider(context.Background(), ProviderConfig{SampleRatio: ratio}); err == nil {
			t.Errorf("SampleRatio %v: expected error", ratio)
		}
	}
}
