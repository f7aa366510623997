// Package subscribe delivers newly appended events to in-process listeners.
//
// Each subscription owns a buffered channel drained by its own goroutine,
// so publishing never waits for handlers (fire-and-forget dispatch). A
// single subscription still observes events in append order because its
// channel is fed synchronously from the publish path. Handler failures are
// isolated: an erroring or panicking handler is reported through OnError
// and never suppresses delivery to other subscriptions or fails the
// triggering publish.
package subscribe

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/randalmurphal/eventlog/pkg/eventlog/domain"
)

// Handler processes a published event.
type Handler func(ctx context.Context, event domain.Event) error

// Config configures registry behavior.
type Config struct {
	// BufferSize is the channel buffer size per subscription.
	// Default: 256
	BufferSize int

	// OnError is called when a handler returns an error or panics.
	OnError func(event domain.Event, subscriptionID string, err error)

	// OnDrop is called when a subscription's buffer is full and an event
	// is dropped.
	OnDrop func(event domain.Event, subscriptionID string)
}

// DefaultConfig provides reasonable defaults.
var DefaultConfig = Config{
	BufferSize: 256,
}

// patternKey is the composite subscription key of the two patterns.
type patternKey struct {
	stream string
	event  string
}

// Registry is an in-memory map from (stream-pattern, event-name-pattern)
// to registered handlers. It is safe for concurrent use; subscribing and
// unsubscribing may race freely with an in-flight dispatch.
type Registry struct {
	config Config

	mu   sync.RWMutex
	subs map[patternKey]map[uuid.UUID]*Subscription

	closed atomic.Bool
}

// NewRegistry creates a new subscription registry.
func NewRegistry(config Config) *Registry {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultConfig.BufferSize
	}
	return &Registry{
		config: config,
		subs:   make(map[patternKey]map[uuid.UUID]*Subscription),
	}
}

// Subscription is a cancellable registration. Multiple subscriptions may
// share the same patterns; each is independently cancellable via its
// opaque token without affecting the others.
type Subscription struct {
	id       uuid.UUID
	key      patternKey
	handler  Handler
	events   chan domain.Event
	done     chan struct{}
	registry *Registry
	stop     sync.Once
}

// Subscribe registers handler under the two patterns and returns the
// cancellation handle. Returns nil after Close.
func (r *Registry) Subscribe(streamPattern, eventPattern string, handler Handler) *Subscription {
	if r.closed.Load() {
		return nil
	}

	sub := &Subscription{
		id:       uuid.New(),
		key:      patternKey{stream: streamPattern, event: eventPattern},
		handler:  handler,
		events:   make(chan domain.Event, r.config.BufferSize),
		done:     make(chan struct{}),
		registry: r,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.subs[sub.key] == nil {
		r.subs[sub.key] = make(map[uuid.UUID]*Subscription)
	}
	r.subs[sub.key][sub.id] = sub

	go sub.process()

	return sub
}

// Dispatch fans event out to every subscription whose stream and event
// name patterns both match, returning the number of subscriptions that
// accepted the event. The send is non-blocking: a subscription whose
// buffer is full misses the event and OnDrop is notified.
func (r *Registry) Dispatch(event domain.Event) int {
	if r.closed.Load() {
		return 0
	}

	// Snapshot the matching subscriptions so concurrent unsubscription
	// cannot disturb the iteration.
	r.mu.RLock()
	var matched []*Subscription
	for key, subs := range r.subs {
		if !MatchStream(key.stream, string(event.Stream)) || !MatchEventName(key.event, string(event.Event)) {
			continue
		}
		for _, sub := range subs {
			matched = append(matched, sub)
		}
	}
	r.mu.RUnlock()

	delivered := 0
	for _, sub := range matched {
		select {
		case sub.events <- event:
			delivered++
		default:
			if r.config.OnDrop != nil {
				r.config.OnDrop(event, sub.id.String())
			}
		}
	}
	return delivered
}

// Len returns the number of active subscriptions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, subs := range r.subs {
		n += len(subs)
	}
	return n
}

// Close cancels every subscription. Further Subscribe calls return nil and
// Dispatch becomes a no-op.
func (r *Registry) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil // Already closed
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, subs := range r.subs {
		for _, sub := range subs {
			sub.stop.Do(func() { close(sub.done) })
		}
	}
	r.subs = make(map[patternKey]map[uuid.UUID]*Subscription)
	return nil
}

// process drains the subscription's channel until it is cancelled.
func (s *Subscription) process() {
	for {
		select {
		case event := <-s.events:
			s.deliver(event)
		case <-s.done:
			return
		}
	}
}

func (s *Subscription) deliver(event domain.Event) {
	defer func() {
		if r := recover(); r != nil && s.registry.config.OnError != nil {
			s.registry.config.OnError(event, s.id.String(), fmt.Errorf("handler panic: %v", r))
		}
	}()

	if err := s.handler(context.Background(), event); err != nil && s.registry.config.OnError != nil {
		s.registry.config.OnError(event, s.id.String(), err)
	}
}

// Unsubscribe removes the subscription. It is safe to call more than once
// and concurrently with an in-flight dispatch.
func (s *Subscription) Unsubscribe() {
	s.registry.mu.Lock()
	if subs, ok := s.registry.subs[s.key]; ok {
		delete(subs, s.id)
		if len(subs) == 0 {
			delete(s.registry.subs, s.key)
		}
	}
	s.registry.mu.Unlock()

	s.stop.Do(func() { close(s.done) })
}
