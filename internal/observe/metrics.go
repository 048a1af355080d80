// Package observe wires wakeline into OpenTelemetry: the metric instruments
// recorded by pipelines and the stream server, span helpers, the HTTP
// middleware and the SDK setup that exports metrics to Prometheus.
//
// Production code records on [DefaultMetrics], which binds to the global
// meter provider installed by [InitProvider]. Tests build their own
// instruments with [NewMetrics] on top of a manual reader.
package observe

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/MrWong99/wakeline"

// Metrics holds every instrument wakeline records. Safe for concurrent use.
type Metrics struct {
	// InferenceDuration is the latency of one model run, labelled with
	// component (wakeword, keyword) and model (file name without extension).
	InferenceDuration metric.Float64Histogram

	// InferenceErrors counts failed model runs, labelled like
	// InferenceDuration.
	InferenceErrors metric.Int64Counter

	// FrameDuration is the time one frame spends in the whole pipeline.
	FrameDuration metric.Float64Histogram

	Frames       metric.Int64Counter
	Activations  metric.Int64Counter
	Recognitions metric.Int64Counter // labelled with keyword
	Timeouts     metric.Int64Counter

	// StreamSessions is the number of open WebSocket detection sessions.
	StreamSessions metric.Int64UpDownCounter

	// HTTPRequestDuration is labelled with method, route and status.
	HTTPRequestDuration metric.Float64Histogram
}

// Model runs and frames must finish well inside one 10-20 ms frame, so the
// latency buckets stop at 100 ms.
var latencyBuckets = []float64{
	0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1,
}

// NewMetrics creates every instrument on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)

	var errs []error
	histogram := func(name, desc string, opts ...metric.Float64HistogramOption) metric.Float64Histogram {
		opts = append(opts, metric.WithDescription(desc), metric.WithUnit("s"))
		h, err := meter.Float64Histogram(name, opts...)
		errs = append(errs, err)
		return h
	}
	counter := func(name, desc, unit string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
		errs = append(errs, err)
		return c
	}
	latency := metric.WithExplicitBucketBoundaries(latencyBuckets...)

	m := &Metrics{
		InferenceDuration: histogram("wakeline.inference.duration", "Latency of a single model run.", latency),
		InferenceErrors:   counter("wakeline.inference.errors", "Failed model runs.", "{error}"),
		FrameDuration:     histogram("wakeline.frame.duration", "Pipeline time per audio frame.", latency),
		Frames:            counter("wakeline.frames", "Audio frames processed.", "{frame}"),
		Activations:       counter("wakeline.activations", "Pipeline activations.", "{activation}"),
		Recognitions:      counter("wakeline.recognitions", "Recognised keywords.", "{recognition}"),
		Timeouts:          counter("wakeline.timeouts", "Activations that ended without a recognition.", "{timeout}"),
	}
	m.HTTPRequestDuration = histogram("wakeline.http.request.duration", "HTTP request latency.")
	sessions, err := meter.Int64UpDownCounter("wakeline.stream.sessions",
		metric.WithDescription("Open streaming detection sessions."),
		metric.WithUnit("{session}"),
	)
	errs = append(errs, err)
	m.StreamSessions = sessions

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return m, nil
}

// DefaultMetrics returns the instruments bound to the global meter provider.
// They are created on the first call, so call [InitProvider] first.
var DefaultMetrics = sync.OnceValue(func() *Metrics {
	m, err := NewMetrics(otel.GetMeterProvider())
	if err != nil {
		panic("observe: default metrics: " + err.Error())
	}
	return m
})

// RecordInference records one model run. A non-nil err also counts as an
// inference error.
func (m *Metrics) RecordInference(ctx context.Context, component, model string, d time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("component", component),
		attribute.String("model", model),
	)
	m.InferenceDuration.Record(ctx, d.Seconds(), attrs)
	if err != nil {
		m.InferenceErrors.Add(ctx, 1, attrs)
	}
}

// RecordFrame counts one processed frame and records how long it took.
func (m *Metrics) RecordFrame(ctx context.Context, d time.Duration) {
	m.Frames.Add(ctx, 1)
	m.FrameDuration.Record(ctx, d.Seconds())
}

// RecordRecognition counts a recognition of keyword.
func (m *Metrics) RecordRecognition(ctx context.Context, keyword string) {
	m.Recognitions.Add(ctx, 1, metric.WithAttributes(attribute.String("keyword", keyword)))
}
