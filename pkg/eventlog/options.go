package eventlog

import (
	"log/slog"
	"time"

	"github.com/randalmurphal/eventlog/pkg/eventlog/domain"
	"github.com/randalmurphal/eventlog/pkg/eventlog/observability"
)

// logConfig holds configuration for an opened log.
type logConfig struct {
	logger         *slog.Logger
	metrics        observability.MetricsRecorder
	spans          observability.SpanManager
	bufferSize     int
	onHandlerError func(event domain.Event, subscriptionID string, err error)
}

// defaultLogConfig returns the default log configuration: no logging, no
// metrics, no tracing.
func defaultLogConfig() logConfig {
	return logConfig{
		metrics: observability.NoopMetrics{},
		spans:   observability.NoopSpanManager{},
	}
}

// Option configures an opened log.
type Option func(*logConfig)

// WithLogger enables structured logging through the given slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *logConfig) {
		c.logger = logger
	}
}

// WithMetrics enables metrics recording.
//
// Example:
//
//	log, err := eventlog.Open(path, eventlog.WithMetrics(observability.NewMetricsRecorder()))
func WithMetrics(metrics observability.MetricsRecorder) Option {
	return func(c *logConfig) {
		if metrics != nil {
			c.metrics = metrics
		}
	}
}

// WithSpans enables tracing of publish and query operations.
func WithSpans(spans observability.SpanManager) Option {
	return func(c *logConfig) {
		if spans != nil {
			c.spans = spans
		}
	}
}

// WithBufferSize sets the per-subscription delivery buffer size.
// Default: 256
func WithBufferSize(n int) Option {
	return func(c *logConfig) {
		if n > 0 {
			c.bufferSize = n
		}
	}
}

// WithHandlerErrorCallback registers a callback invoked when a subscriber
// handler fails. Failures are always isolated; the callback is for tests
// and custom alerting on top of the built-in logging.
func WithHandlerErrorCallback(fn func(event domain.Event, subscriptionID string, err error)) Option {
	return func(c *logConfig) {
		c.onHandlerError = fn
	}
}

// elapsed converts a millisecond reading from TimedOperation back to a
// duration for the metrics recorder.
func elapsed(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}
