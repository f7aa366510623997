package eventlog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/randalmurphal/eventlog/pkg/eventlog/domain"
	"github.com/randalmurphal/eventlog/pkg/eventlog/observability"
	"github.com/randalmurphal/eventlog/pkg/eventlog/store"
	"github.com/randalmurphal/eventlog/pkg/eventlog/subscribe"
)

const (
	// AnyStream is the query/subscription pattern matching every stream.
	AnyStream = "/*"

	// AnyEvent is the subscription pattern matching every event name.
	AnyEvent = "*"

	// SmallBatch is the default query page size.
	SmallBatch = 10
)

// SinceBeginning queries from the start of the log.
const SinceBeginning domain.EventID = 0

// Query selects a page of events. The zero value of each field falls back
// to its default: AnyStream, SinceBeginning, SmallBatch.
type Query struct {
	// Stream is a glob pattern streams must match.
	Stream string

	// Since excludes events with ids at or below it (exclusive cursor).
	Since domain.EventID

	// Limit caps the number of returned events.
	Limit int
}

// EventLog is the single point of composition the boundary calls.
type EventLog interface {
	// Publish durably appends def, fans it out to matching subscribers,
	// and returns the stored event. Appending an identical
	// (occurredAt, event, stream) again returns the existing event.
	Publish(ctx context.Context, def domain.EventDef) (domain.Event, error)

	// Reject records a rejected submission. Identical rejections collapse
	// onto the existing row.
	Reject(ctx context.Context, def domain.RejectedEventDef) (domain.RejectedEvent, error)

	// Query returns events matching q in ascending event id order.
	Query(ctx context.Context, q Query) ([]domain.Event, error)

	// Fetch returns the event with the given id, or store.ErrNotFound.
	Fetch(ctx context.Context, id domain.EventID) (domain.Event, error)

	// Subscribe registers a handler for events matching both patterns.
	Subscribe(streamPattern, eventPattern string, handler subscribe.Handler) *subscribe.Subscription

	// Shutdown releases the store and cancels all subscriptions. No
	// further calls are valid afterwards.
	Shutdown() error
}

// Log is the SQLite-backed EventLog.
type Log struct {
	store    *store.Store
	registry *subscribe.Registry
	logger   *slog.Logger
	metrics  observability.MetricsRecorder
	spans    observability.SpanManager
}

// Compile-time interface check.
var _ EventLog = (*Log)(nil)

// Open opens the event log at path, creating the database when absent.
func Open(path string, opts ...Option) (*Log, error) {
	cfg := defaultLogConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	s, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open event store: %w", err)
	}

	log := &Log{
		store:   s,
		logger:  cfg.logger,
		metrics: cfg.metrics,
		spans:   cfg.spans,
	}
	log.registry = subscribe.NewRegistry(subscribe.Config{
		BufferSize: cfg.bufferSize,
		OnError: func(event domain.Event, subscriptionID string, err error) {
			observability.LogHandlerError(log.logger, subscriptionID, int64(event.EventID), err)
			if cfg.onHandlerError != nil {
				cfg.onHandlerError(event, subscriptionID, err)
			}
		},
		OnDrop: func(event domain.Event, subscriptionID string) {
			observability.LogDeliveryDrop(log.logger, subscriptionID, int64(event.EventID))
			log.metrics.RecordDeliveries(context.Background(), 1, true)
		},
	})
	return log, nil
}

// Publish implements EventLog. Fan-out happens synchronously after the row
// is durably committed and before Publish returns, but handlers run on
// their own goroutines and are not awaited.
func (l *Log) Publish(ctx context.Context, def domain.EventDef) (domain.Event, error) {
	ctx, span := l.spans.StartPublishSpan(ctx, string(def.Stream), string(def.Event))
	done := observability.TimedOperation()

	event, err := l.store.Append(ctx, def)
	l.metrics.RecordPublish(ctx, string(def.Stream), elapsed(done()), err)
	if err != nil {
		observability.LogPublishError(l.logger, string(def.Stream), string(def.Event), err)
		l.spans.EndSpanWithError(span, err)
		return domain.Event{}, err
	}

	delivered := l.registry.Dispatch(event)
	l.metrics.RecordDeliveries(ctx, delivered, false)

	observability.LogPublish(l.logger, int64(event.EventID), string(event.Stream), string(event.Event), done())
	l.spans.EndSpanWithError(span, nil)
	return event, nil
}

// Reject implements EventLog.
func (l *Log) Reject(ctx context.Context, def domain.RejectedEventDef) (domain.RejectedEvent, error) {
	rejected, err := l.store.Reject(ctx, def)
	if err != nil {
		return domain.RejectedEvent{}, err
	}
	l.metrics.RecordReject(ctx, string(rejected.Reason))
	observability.LogReject(l.logger, int64(rejected.ID), string(rejected.Reason), rejected.Message)
	return rejected, nil
}

// Query implements EventLog.
func (l *Log) Query(ctx context.Context, q Query) ([]domain.Event, error) {
	if q.Stream == "" {
		q.Stream = AnyStream
	}
	if q.Limit <= 0 {
		q.Limit = SmallBatch
	}

	ctx, span := l.spans.StartQuerySpan(ctx, q.Stream)
	done := observability.TimedOperation()

	events, err := l.store.Query(ctx, q.Stream, q.Since, q.Limit)
	if err != nil {
		l.spans.EndSpanWithError(span, err)
		return nil, err
	}

	l.metrics.RecordQuery(ctx, elapsed(done()), len(events))
	observability.LogQuery(l.logger, q.Stream, int64(q.Since), len(events), done())
	l.spans.EndSpanWithError(span, nil)
	return events, nil
}

// Fetch implements EventLog.
func (l *Log) Fetch(ctx context.Context, id domain.EventID) (domain.Event, error) {
	return l.store.Fetch(ctx, id)
}

// Subscribe implements EventLog.
func (l *Log) Subscribe(streamPattern, eventPattern string, handler subscribe.Handler) *subscribe.Subscription {
	return l.registry.Subscribe(streamPattern, eventPattern, handler)
}

// Shutdown implements EventLog. It is safe to call more than once.
func (l *Log) Shutdown() error {
	l.registry.Close()
	return l.store.Close()
}
