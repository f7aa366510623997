// Package store persists accepted and rejected events in SQLite.
//
// Both tables are append-only and idempotent by natural key: re-submitting
// an identical event (occurred_at, event, stream) or rejection
// (reason, message, body) is a no-op that returns the already stored row.
// The insert is an upsert whose conflict branch updates a column to itself,
// so RETURNING yields the row id on both the fresh and the duplicate path
// and two concurrent identical submissions cannot produce two rows.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/randalmurphal/eventlog/pkg/eventlog/domain"
)

var (
	// ErrNotFound is returned when a fetch references a nonexistent id.
	ErrNotFound = errors.New("event not found")

	// ErrStoreClosed is returned for any operation after Close.
	ErrStoreClosed = errors.New("store is closed")
)

// sentinelCorrelation marks an event whose correlation id was omitted.
// The default_correlation_id trigger rewrites it to "evt<event_id>" once
// the id is known.
const sentinelCorrelation = "def1"

// Store is a SQLite-backed event store. It is safe for concurrent use.
type Store struct {
	db *sql.DB

	mu     sync.RWMutex
	closed bool

	appendStmt *sql.Stmt
	rejectStmt *sql.Stmt
	fetchStmt  *sql.Stmt
	queryStmt  *sql.Stmt
}

// Open opens (and if necessary initializes) the event store at path.
// Use ":memory:" for an ephemeral store in tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	s := &Store{db: db}
	if s.appendStmt, err = db.Prepare(
		`insert into
		   events(occurred_at, event, stream, payload, origin, publisher, correlation_id)
		   values(?, ?, ?, ?, ?, ?, ?)
		 on conflict do update set event = event
		 returning event_id`,
	); err != nil {
		db.Close()
		return nil, fmt.Errorf("prepare append: %w", err)
	}
	if s.rejectStmt, err = db.Prepare(
		`insert into
		   rejected_events(rejected_at, reason, message, body)
		   values(?, ?, ?, ?)
		 on conflict do update set reason = reason
		 returning id, rejected_at, reason, message, body`,
	); err != nil {
		db.Close()
		return nil, fmt.Errorf("prepare reject: %w", err)
	}
	if s.fetchStmt, err = db.Prepare(
		`select event_id, occurred_at, event, stream, payload, origin, publisher, correlation_id, published_at
		 from events
		 where event_id = ?`,
	); err != nil {
		db.Close()
		return nil, fmt.Errorf("prepare fetch: %w", err)
	}
	if s.queryStmt, err = db.Prepare(
		`select event_id, occurred_at, event, stream, payload, origin, publisher, correlation_id, published_at
		 from events
		 where stream glob ? and event_id > ?
		 order by event_id limit ?`,
	); err != nil {
		db.Close()
		return nil, fmt.Errorf("prepare query: %w", err)
	}
	return s, nil
}

// Append inserts def and returns the fully hydrated stored event. When an
// event with the same (occurredAt, event, stream) already exists, no row is
// written and the existing event is returned.
func (s *Store) Append(ctx context.Context, def domain.EventDef) (domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return domain.Event{}, ErrStoreClosed
	}

	var payload any
	if def.Payload != nil {
		serialized, err := json.Marshal(def.Payload)
		if err != nil {
			return domain.Event{}, fmt.Errorf("serialize payload: %w", err)
		}
		payload = string(serialized)
	}
	correlation := string(def.CorrelationID)
	if correlation == "" {
		correlation = sentinelCorrelation
	}

	var id int64
	err := s.appendStmt.QueryRowContext(ctx,
		string(def.OccurredAt),
		string(def.Event),
		string(def.Stream),
		payload,
		string(def.Origin),
		string(def.Publisher),
		correlation,
	).Scan(&id)
	if err != nil {
		return domain.Event{}, fmt.Errorf("append event: %w", err)
	}

	return s.fetch(ctx, domain.EventID(id))
}

// Reject inserts def into the rejection table and returns the stored
// rejection. Message is truncated to 2000 and body to 5000 characters
// before storing. Repeated identical rejections return the existing row.
func (s *Store) Reject(ctx context.Context, def domain.RejectedEventDef) (domain.RejectedEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return domain.RejectedEvent{}, ErrStoreClosed
	}

	var message any
	if def.Message != "" {
		message = truncate(def.Message, 2000)
	}

	var (
		id         int64
		rejectedAt string
		reason     string
		stored     sql.NullString
		body       string
	)
	err := s.rejectStmt.QueryRowContext(ctx,
		string(domain.Now()),
		string(def.Reason),
		message,
		truncate(def.Body, 5000),
	).Scan(&id, &rejectedAt, &reason, &stored, &body)
	if err != nil {
		return domain.RejectedEvent{}, fmt.Errorf("reject event: %w", err)
	}

	rejected := domain.RejectedEvent{
		Reason: domain.Reason(reason),
		Body:   body,
	}
	if rejected.ID, err = domain.RejectedEventIDOf(id); err != nil {
		return domain.RejectedEvent{}, fmt.Errorf("hydrate rejected event: %w", err)
	}
	if rejected.RejectedAt, err = domain.UtcTimestampOf(rejectedAt); err != nil {
		return domain.RejectedEvent{}, fmt.Errorf("hydrate rejected event: %w", err)
	}
	if stored.Valid {
		rejected.Message = stored.String
	}
	return rejected, nil
}

// Fetch returns the event with the given id, or ErrNotFound.
func (s *Store) Fetch(ctx context.Context, id domain.EventID) (domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return domain.Event{}, ErrStoreClosed
	}
	return s.fetch(ctx, id)
}

func (s *Store) fetch(ctx context.Context, id domain.EventID) (domain.Event, error) {
	row := s.fetchStmt.QueryRowContext(ctx, int64(id))
	event, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Event{}, ErrNotFound
	}
	if err != nil {
		return domain.Event{}, fmt.Errorf("fetch event %d: %w", id, err)
	}
	return event, nil
}

// Query returns events whose stream matches the glob pattern, with ids
// greater than since, ordered ascending by id and capped at limit rows.
// Callers page forward by re-issuing the query with the last seen id.
func (s *Store) Query(ctx context.Context, pattern string, since domain.EventID, limit int) ([]domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.queryStmt.QueryContext(ctx, pattern, int64(since), limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// Close releases the prepared statements and the database handle.
// It is safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	for _, stmt := range []*sql.Stmt{s.appendStmt, s.rejectStmt, s.fetchStmt, s.queryStmt} {
		stmt.Close()
	}
	return s.db.Close()
}

// scannable covers *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanEvent hydrates a stored row back through the domain constructors.
// Hydration re-validates every column, so a row written by another process
// that slipped past the CHECK constraints still cannot surface as an
// invalid Event.
func scanEvent(row scannable) (domain.Event, error) {
	var (
		id          int64
		occurredAt  string
		name        string
		stream      string
		payload     sql.NullString
		origin      string
		publisher   string
		correlation string
		publishedAt string
	)
	if err := row.Scan(&id, &occurredAt, &name, &stream, &payload, &origin, &publisher, &correlation, &publishedAt); err != nil {
		return domain.Event{}, err
	}

	var event domain.Event
	var err error
	if event.EventID, err = domain.EventIDOf(id); err != nil {
		return domain.Event{}, err
	}
	if event.OccurredAt, err = domain.UtcTimestampOf(occurredAt); err != nil {
		return domain.Event{}, err
	}
	if event.Event, err = domain.EventNameOf(name); err != nil {
		return domain.Event{}, err
	}
	if event.Stream, err = domain.StreamOf(stream); err != nil {
		return domain.Event{}, err
	}
	if payload.Valid {
		var decoded map[string]any
		if err := json.Unmarshal([]byte(payload.String), &decoded); err != nil {
			return domain.Event{}, fmt.Errorf("decode payload: %w", err)
		}
		if event.Payload, err = domain.PayloadOf(decoded); err != nil {
			return domain.Event{}, err
		}
	}
	if event.Origin, err = domain.OriginOf(origin); err != nil {
		return domain.Event{}, err
	}
	if event.Publisher, err = domain.PublisherOf(publisher); err != nil {
		return domain.Event{}, err
	}
	if event.CorrelationID, err = domain.CorrelationIDOf(correlation); err != nil {
		return domain.Event{}, err
	}
	if event.PublishedAt, err = domain.UtcTimestampOf(publishedAt); err != nil {
		return domain.Event{}, err
	}
	return event, nil
}

// truncate cuts s to at most max runes.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
