/*
Package eventlog provides an append-only, idempotent event log backed by
SQLite, with in-process pattern-based subscriptions.

# Overview

Clients submit domain events; the log validates their shape and semantics,
persists accepted events durably and idempotently, records malformed
submissions in a separate audit trail, and notifies subscribers interested
in a stream/event-name pattern.

Every submission yields exactly one terminal record: an accepted Event or a
RejectedEvent carrying the classified reason (unsupported, malformed,
invalid, unknown) and the raw original body for audit.

# Basic Usage

Open a log, publish, and subscribe:

	log, err := eventlog.Open("events.db")
	if err != nil {
	    // handle
	}
	defer log.Shutdown()

	sub := log.Subscribe(eventlog.AnyStream, eventlog.AnyEvent,
	    func(ctx context.Context, evt domain.Event) error {
	        fmt.Println("got", evt.Event, "on", evt.Stream)
	        return nil
	    })
	defer sub.Unsubscribe()

	def, err := domain.EventDefOf(map[string]any{
	    "occurredAt": "2022-07-12T17:54:21.485Z",
	    "event":      "NodeReconnected",
	    "stream":     "/network/node/node-ap3",
	    "origin":     "network",
	    "publisher":  "firewall",
	})
	if err != nil {
	    // classify with domain.ReasonOf and record via log.Reject
	}
	event, err := log.Publish(ctx, def)

# Guarantees

Appending the same (occurredAt, event, stream) twice stores one row and
returns the same event id both times. Event ids are strictly increasing and
never reused. A submission without a correlation id receives
"evt<eventId>". Query pages forward by event id with glob stream patterns.

Subscriber fan-out is fire-and-forget: handlers run on their own
goroutines, failures are isolated and logged, and a slow subscriber cannot
stall Publish.
*/
package eventlog
