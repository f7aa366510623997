// Package observability provides structured logging, metrics, and tracing
// for the event log.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records event log metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordPublish records a publish attempt with its duration and error status.
	RecordPublish(ctx context.Context, stream string, duration time.Duration, err error)

	// RecordReject records a rejection with its classified reason.
	RecordReject(ctx context.Context, reason string)

	// RecordQuery records a range query with its duration and result size.
	RecordQuery(ctx context.Context, duration time.Duration, count int)

	// RecordDeliveries records count subscriber delivery attempts.
	// Dropped is true when the subscribers' buffers were full.
	RecordDeliveries(ctx context.Context, count int, dropped bool)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	publishes      metric.Int64Counter
	publishLatency metric.Float64Histogram
	publishErrors  metric.Int64Counter
	rejections     metric.Int64Counter
	queries        metric.Int64Counter
	queryLatency   metric.Float64Histogram
	queryResults   metric.Int64Histogram
	deliveries     metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("eventlog")

	publishes, err := meter.Int64Counter("eventlog.publish.count",
		metric.WithDescription("Number of publish attempts"),
	)
	if err != nil {
		return nil, err
	}

	publishLatency, err := meter.Float64Histogram("eventlog.publish.latency_ms",
		metric.WithDescription("Publish latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	publishErrors, err := meter.Int64Counter("eventlog.publish.errors",
		metric.WithDescription("Number of failed publish attempts"),
	)
	if err != nil {
		return nil, err
	}

	rejections, err := meter.Int64Counter("eventlog.reject.count",
		metric.WithDescription("Number of recorded rejections"),
	)
	if err != nil {
		return nil, err
	}

	queries, err := meter.Int64Counter("eventlog.query.count",
		metric.WithDescription("Number of range queries"),
	)
	if err != nil {
		return nil, err
	}

	queryLatency, err := meter.Float64Histogram("eventlog.query.latency_ms",
		metric.WithDescription("Query latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	queryResults, err := meter.Int64Histogram("eventlog.query.results",
		metric.WithDescription("Number of events returned per query"),
	)
	if err != nil {
		return nil, err
	}

	deliveries, err := meter.Int64Counter("eventlog.subscribe.deliveries",
		metric.WithDescription("Number of subscriber delivery attempts"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		publishes:      publishes,
		publishLatency: publishLatency,
		publishErrors:  publishErrors,
		rejections:     rejections,
		queries:        queries,
		queryLatency:   queryLatency,
		queryResults:   queryResults,
		deliveries:     deliveries,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordPublish records a publish attempt.
func (m *otelMetrics) RecordPublish(ctx context.Context, stream string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("stream", stream),
	}

	m.publishes.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.publishLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))

	if err != nil {
		m.publishErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordReject records a rejection.
func (m *otelMetrics) RecordReject(ctx context.Context, reason string) {
	m.rejections.Add(ctx, 1, metric.WithAttributes(
		attribute.String("reason", reason),
	))
}

// RecordQuery records a range query.
func (m *otelMetrics) RecordQuery(ctx context.Context, duration time.Duration, count int) {
	m.queries.Add(ctx, 1)
	m.queryLatency.Record(ctx, float64(duration.Milliseconds()))
	m.queryResults.Record(ctx, int64(count))
}

// RecordDeliveries records subscriber delivery attempts. One publish counts
// a delivery per subscription that accepted the event; drops arrive one at
// a time from the fan-out path.
func (m *otelMetrics) RecordDeliveries(ctx context.Context, count int, dropped bool) {
	if count <= 0 {
		return
	}
	m.deliveries.Add(ctx, int64(count), metric.WithAttributes(
		attribute.Bool("dropped", dropped),
	))
}
