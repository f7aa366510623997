package eventlog_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/eventlog/pkg/eventlog"
	"github.com/randalmurphal/eventlog/pkg/eventlog/domain"
	"github.com/randalmurphal/eventlog/pkg/eventlog/store"
)

func openLog(t *testing.T, opts ...eventlog.Option) *eventlog.Log {
	t.Helper()
	log, err := eventlog.Open(filepath.Join(t.TempDir(), "events.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { log.Shutdown() })
	return log
}

func defOf(t *testing.T, body map[string]any) domain.EventDef {
	t.Helper()
	def, err := domain.EventDefOf(body)
	require.NoError(t, err)
	return def
}

func TestPublishMinimalEvent(t *testing.T) {
	log := openLog(t)

	event, err := log.Publish(context.Background(), defOf(t, map[string]any{
		"occurredAt": "2022-07-12T17:54:21.485Z",
		"event":      "NodeReconnected",
		"stream":     "/network/node/node-ap3",
		"origin":     "network",
		"publisher":  "firewall",
	}))
	require.NoError(t, err)

	assert.Equal(t, domain.EventID(1), event.EventID)
	assert.Equal(t, domain.CorrelationID("evt1"), event.CorrelationID)
	assert.NotEmpty(t, event.PublishedAt)
	assert.Nil(t, event.Payload)
}

func TestPublishIsIdempotent(t *testing.T) {
	log := openLog(t)
	def := defOf(t, map[string]any{
		"occurredAt": "2022-07-12T17:54:21.485Z",
		"event":      "NodeReconnected",
		"stream":     "/network/node/node-ap3",
		"origin":     "network",
		"publisher":  "firewall",
	})

	first, err := log.Publish(context.Background(), def)
	require.NoError(t, err)
	second, err := log.Publish(context.Background(), def)
	require.NoError(t, err)
	assert.Equal(t, first.EventID, second.EventID)

	events, err := log.Query(context.Background(), eventlog.Query{})
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestQueryDefaults(t *testing.T) {
	log := openLog(t)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		_, err := log.Publish(ctx, defOf(t, map[string]any{
			"occurredAt": fmt.Sprintf("2022-07-12T17:54:%02d.000Z", i),
			"event":      "NodeReconnected",
			"stream":     "/network/node/node-ap3",
			"origin":     "network",
			"publisher":  "firewall",
		}))
		require.NoError(t, err)
	}

	// The zero query means any stream, from the beginning, a small batch.
	events, err := log.Query(ctx, eventlog.Query{})
	require.NoError(t, err)
	require.Len(t, events, eventlog.SmallBatch)

	// Page forward with the cursor.
	next, err := log.Query(ctx, eventlog.Query{Since: events[len(events)-1].EventID})
	require.NoError(t, err)
	assert.Len(t, next, 2)
}

func TestSubscriptionDelivery(t *testing.T) {
	log := openLog(t)
	ctx := context.Background()

	var received atomic.Int32
	var got atomic.Value
	sub := log.Subscribe(eventlog.AnyStream, eventlog.AnyEvent,
		func(ctx context.Context, evt domain.Event) error {
			received.Add(1)
			got.Store(evt)
			return nil
		})

	published, err := log.Publish(ctx, defOf(t, map[string]any{
		"occurredAt": "2022-07-12T17:54:21.485Z",
		"event":      "NodeDisconnected",
		"stream":     "/network/node/1",
		"origin":     "network",
		"publisher":  "shaper",
	}))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return received.Load() == 1 },
		time.Second, 10*time.Millisecond)
	assert.Equal(t, published, got.Load().(domain.Event))

	sub.Unsubscribe()
	_, err = log.Publish(ctx, defOf(t, map[string]any{
		"occurredAt": "2022-07-12T17:54:22.000Z",
		"event":      "NodeDisconnected",
		"stream":     "/network/node/1",
		"origin":     "network",
		"publisher":  "shaper",
	}))
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), received.Load())
}

func TestHandlerFailureDoesNotFailPublish(t *testing.T) {
	var failures atomic.Int32
	log := openLog(t,
		eventlog.WithLogger(slog.Default()),
		eventlog.WithHandlerErrorCallback(func(evt domain.Event, subscriptionID string, err error) {
			failures.Add(1)
		}),
	)

	log.Subscribe(eventlog.AnyStream, eventlog.AnyEvent,
		func(ctx context.Context, evt domain.Event) error {
			return errors.New("subscriber broke")
		})

	_, err := log.Publish(context.Background(), defOf(t, map[string]any{
		"occurredAt": "2022-07-12T17:54:21.485Z",
		"event":      "NodeDisconnected",
		"stream":     "/network/node/1",
		"origin":     "network",
		"publisher":  "shaper",
	}))
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return failures.Load() == 1 },
		time.Second, 10*time.Millisecond)
}

func TestRejectRoundTrip(t *testing.T) {
	log := openLog(t)

	rejected, err := log.Reject(context.Background(), domain.RejectedEventDef{
		Reason:  domain.ReasonInvalid,
		Message: "event should be in camel case, but was: 'node_reconnected'",
		Body:    `{"event":"node_reconnected"}`,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RejectedEventID(1), rejected.ID)
	assert.Equal(t, domain.ReasonInvalid, rejected.Reason)
	assert.NotEmpty(t, rejected.RejectedAt)
}

func TestFetchUnknownID(t *testing.T) {
	log := openLog(t)
	_, err := log.Fetch(context.Background(), 42)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestShutdownStopsOperations(t *testing.T) {
	log, err := eventlog.Open(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)

	require.NoError(t, log.Shutdown())
	require.NoError(t, log.Shutdown())

	_, err = log.Query(context.Background(), eventlog.Query{})
	assert.ErrorIs(t, err, store.ErrStoreClosed)
	assert.Nil(t, log.Subscribe(eventlog.AnyStream, eventlog.AnyEvent,
		func(ctx context.Context, evt domain.Event) error { return nil }))
}
