package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds event context to a logger.
// Returns a new logger with stream, event, and correlation_id fields.
//
// Example:
//
//	enriched := EnrichLogger(logger, "/crm/customer/7", "CustomerActivated", "evt7")
//	enriched.Info("handling event") // includes stream, event, correlation_id
func EnrichLogger(logger *slog.Logger, stream, event, correlationID string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("stream", stream),
		slog.String("event", event),
		slog.String("correlation_id", correlationID),
	)
}

// LogPublish logs a successful append.
func LogPublish(logger *slog.Logger, eventID int64, stream, event string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Info("event published",
		slog.Int64("event_id", eventID),
		slog.String("stream", stream),
		slog.String("event", event),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogPublishError logs a failed append.
func LogPublishError(logger *slog.Logger, stream, event string, err error) {
	if logger == nil {
		return
	}
	logger.Error("publish failed",
		slog.String("stream", stream),
		slog.String("event", event),
		slog.String("error", err.Error()),
	)
}

// LogReject logs a recorded rejection.
func LogReject(logger *slog.Logger, id int64, reason, message string) {
	if logger == nil {
		return
	}
	logger.Warn("event rejected",
		slog.Int64("rejected_id", id),
		slog.String("reason", reason),
		slog.String("message", message),
	)
}

// LogQuery logs a range query.
func LogQuery(logger *slog.Logger, pattern string, since int64, count int, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("events queried",
		slog.String("pattern", pattern),
		slog.Int64("since", since),
		slog.Int("count", count),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogHandlerError logs a subscriber handler failure (non-fatal).
func LogHandlerError(logger *slog.Logger, subscriptionID string, eventID int64, err error) {
	if logger == nil {
		return
	}
	logger.Warn("subscriber handler failed",
		slog.String("subscription_id", subscriptionID),
		slog.Int64("event_id", eventID),
		slog.String("error", err.Error()),
	)
}

// LogDeliveryDrop logs an event dropped because a subscriber buffer was full.
func LogDeliveryDrop(logger *slog.Logger, subscriptionID string, eventID int64) {
	if logger == nil {
		return
	}
	logger.Warn("subscriber delivery dropped",
		slog.String("subscription_id", subscriptionID),
		slog.Int64("event_id", eventID),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
