package store_test

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/eventlog/pkg/eventlog/domain"
	"github.com/randalmurphal/eventlog/pkg/eventlog/store"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleDef(t *testing.T, occurredAt, event, stream string) domain.EventDef {
	t.Helper()
	def, err := domain.EventDefOf(map[string]any{
		"occurredAt": occurredAt,
		"event":      event,
		"stream":     stream,
		"origin":     "network",
		"publisher":  "firewall",
	})
	require.NoError(t, err)
	return def
}

func TestAppendAssignsIdentityAndDefaults(t *testing.T) {
	s := openStore(t)

	event, err := s.Append(context.Background(), sampleDef(t,
		"2022-07-12T17:54:21.485Z", "NodeReconnected", "/network/node/node-ap3"))
	require.NoError(t, err)

	assert.Equal(t, domain.EventID(1), event.EventID)
	assert.Equal(t, domain.CorrelationID("evt1"), event.CorrelationID)
	assert.Equal(t, domain.UtcTimestamp("2022-07-12T17:54:21.485Z"), event.OccurredAt)
	assert.NotEmpty(t, event.PublishedAt)
	assert.Nil(t, event.Payload)
}

func TestAppendKeepsExplicitCorrelationID(t *testing.T) {
	s := openStore(t)

	def := sampleDef(t, "2022-07-12T17:54:21.485Z", "NodeDisconnected", "/network/node/node-ap4")
	def.CorrelationID = "cmd87"
	def.Payload = domain.Payload{"rule": "console"}

	event, err := s.Append(context.Background(), def)
	require.NoError(t, err)
	assert.Equal(t, domain.CorrelationID("cmd87"), event.CorrelationID)
	assert.Equal(t, "console", event.Payload["rule"])
}

func TestAppendIsIdempotent(t *testing.T) {
	s := openStore(t)
	def := sampleDef(t, "2022-07-12T17:54:21.485Z", "NodeReconnected", "/network/node/node-ap3")

	first, err := s.Append(context.Background(), def)
	require.NoError(t, err)
	second, err := s.Append(context.Background(), def)
	require.NoError(t, err)

	assert.Equal(t, first.EventID, second.EventID)
	assert.Equal(t, first.CorrelationID, second.CorrelationID)

	events, err := s.Query(context.Background(), "/*", 0, 100)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestAppendIdsAreStrictlyIncreasing(t *testing.T) {
	s := openStore(t)

	var last domain.EventID
	for i := 0; i < 5; i++ {
		def := sampleDef(t,
			fmt.Sprintf("2022-07-12T17:54:2%d.000Z", i), "NodeReconnected", "/network/node/node-ap3")
		event, err := s.Append(context.Background(), def)
		require.NoError(t, err)
		assert.Greater(t, event.EventID, last)
		last = event.EventID
	}
}

func TestFetch(t *testing.T) {
	s := openStore(t)
	appended, err := s.Append(context.Background(), sampleDef(t,
		"2022-07-12T17:54:21.485Z", "NodeReconnected", "/network/node/node-ap3"))
	require.NoError(t, err)

	fetched, err := s.Fetch(context.Background(), appended.EventID)
	require.NoError(t, err)
	assert.Equal(t, appended, fetched)

	_, err = s.Fetch(context.Background(), 999)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestQueryPatternSinceAndLimit(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := s.Append(ctx, sampleDef(t,
			fmt.Sprintf("2022-07-12T17:54:2%d.000Z", i), "NodeReconnected", "/network/node/node-ap3"))
		require.NoError(t, err)
	}
	_, err := s.Append(ctx, sampleDef(t,
		"2022-07-12T17:55:00.000Z", "CustomerActivated", "/crm/customer/8"))
	require.NoError(t, err)

	// Pattern narrows the result.
	events, err := s.Query(ctx, "/crm/*", 0, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.Stream("/crm/customer/8"), events[0].Stream)

	// Cursor excludes everything at or below since; order is ascending.
	events, err = s.Query(ctx, "/*", 2, 10)
	require.NoError(t, err)
	require.Len(t, events, 3)
	for i, event := range events {
		assert.Greater(t, event.EventID, domain.EventID(2))
		if i > 0 {
			assert.Greater(t, event.EventID, events[i-1].EventID)
		}
	}

	// Limit caps the page.
	events, err = s.Query(ctx, "/*", 0, 2)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestRejectIsIdempotent(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	def := domain.RejectedEventDef{
		Reason:  domain.ReasonInvalid,
		Message: "event should be in camel case",
		Body:    `{"event":"node_reconnected"}`,
	}

	first, err := s.Reject(ctx, def)
	require.NoError(t, err)
	assert.Equal(t, domain.RejectedEventID(1), first.ID)
	assert.Equal(t, domain.ReasonInvalid, first.Reason)
	assert.NotEmpty(t, first.RejectedAt)

	second, err := s.Reject(ctx, def)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.RejectedAt, second.RejectedAt)
}

func TestRejectWithoutMessageIsIdempotent(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	def := domain.RejectedEventDef{Reason: domain.ReasonUnsupported, Body: "*"}

	first, err := s.Reject(ctx, def)
	require.NoError(t, err)
	assert.Empty(t, first.Message)

	second, err := s.Reject(ctx, def)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestRejectTruncatesMessageAndBody(t *testing.T) {
	s := openStore(t)

	rejected, err := s.Reject(context.Background(), domain.RejectedEventDef{
		Reason:  domain.ReasonUnknown,
		Message: strings.Repeat("m", 3000),
		Body:    strings.Repeat("b", 6000),
	})
	require.NoError(t, err)
	assert.Len(t, rejected.Message, 2000)
	assert.Len(t, rejected.Body, 5000)
}

func TestPersistenceAcrossReopen(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "events.db")

	// First store instance
	store1, err := store.Open(dbPath)
	require.NoError(t, err)
	appended, err := store1.Append(context.Background(), sampleDef(t,
		"2022-07-12T17:54:21.485Z", "NodeReconnected", "/network/node/node-ap3"))
	require.NoError(t, err)
	require.NoError(t, store1.Close())

	// Second store instance (reopening the database)
	store2, err := store.Open(dbPath)
	require.NoError(t, err)
	defer store2.Close()

	fetched, err := store2.Fetch(context.Background(), appended.EventID)
	require.NoError(t, err)
	assert.Equal(t, appended, fetched)
}

func TestCloseIdempotent(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)

	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())

	_, err = s.Fetch(context.Background(), 1)
	assert.ErrorIs(t, err, store.ErrStoreClosed)
	_, err = s.Append(context.Background(), sampleDef(t,
		"2022-07-12T17:54:21.485Z", "NodeReconnected", "/network/node/node-ap3"))
	assert.ErrorIs(t, err, store.ErrStoreClosed)
}

func TestOpenInvalidPath(t *testing.T) {
	_, err := store.Open("/nonexistent/path/events.db")
	assert.Error(t, err)
}
