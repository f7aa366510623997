package domain

import "sort"

// EventDef is a fully validated event submission, ready to append.
// Payload and CorrelationID are optional; their zero values mean absent.
type EventDef struct {
	OccurredAt    UtcTimestamp
	Event         EventName
	Stream        Stream
	Payload       Payload
	Origin        Origin
	Publisher     Publisher
	CorrelationID CorrelationID
}

// Event is a stored event as returned by the log. Unlike EventDef the
// correlation id is always present: the store assigns "evt<eventId>" when
// the submission omitted it.
type Event struct {
	EventID       EventID       `json:"eventId"`
	OccurredAt    UtcTimestamp  `json:"occurredAt"`
	Event         EventName     `json:"event"`
	Stream        Stream        `json:"stream"`
	Payload       Payload       `json:"payload,omitempty"`
	Origin        Origin        `json:"origin"`
	Publisher     Publisher     `json:"publisher"`
	CorrelationID CorrelationID `json:"correlationId"`
	PublishedAt   UtcTimestamp  `json:"publishedAt"`
}

// RejectedEventDef describes a submission that could not be accepted.
// Body carries the raw original input for audit.
type RejectedEventDef struct {
	Reason  Reason
	Message string
	Body    string
}

// RejectedEvent is a stored rejection.
type RejectedEvent struct {
	ID         RejectedEventID `json:"id"`
	RejectedAt UtcTimestamp    `json:"rejectedAt"`
	Reason     Reason          `json:"reason"`
	Message    string          `json:"message,omitempty"`
	Body       string          `json:"body"`
}

var (
	mandatoryFields = []string{"occurredAt", "event", "stream", "origin", "publisher"}
	optionalFields  = map[string]bool{"payload": true, "correlationId": true}
)

// CheckShape verifies that body carries exactly the mandatory fields plus
// any subset of the optional ones. It returns a *ShapeError enumerating the
// missing and extra field names, sorted, or nil when the shape is right.
// Shape checking runs before any per-field validation.
func CheckShape(body map[string]any) *ShapeError {
	missing := make(map[string]bool, len(mandatoryFields))
	for _, field := range mandatoryFields {
		missing[field] = true
	}
	var extra []string
	for key := range body {
		if missing[key] {
			delete(missing, key)
		} else if !optionalFields[key] {
			extra = append(extra, key)
		}
	}
	if len(missing) == 0 && len(extra) == 0 {
		return nil
	}
	stillMissing := make([]string, 0, len(missing))
	for field := range missing {
		stillMissing = append(stillMissing, field)
	}
	sort.Strings(stillMissing)
	sort.Strings(extra)
	return &ShapeError{Missing: stillMissing, Extra: extra}
}

// EventDefOf turns an untyped field bag into a validated EventDef. The shape
// is checked first; field validation then fails fast on the first invalid
// field. There are no partial results: either every field is valid or an
// error is returned.
func EventDefOf(body map[string]any) (EventDef, error) {
	if shapeErr := CheckShape(body); shapeErr != nil {
		return EventDef{}, shapeErr
	}

	var def EventDef
	var err error
	if def.OccurredAt, err = UtcTimestampOf(body["occurredAt"]); err != nil {
		return EventDef{}, err
	}
	if def.Event, err = EventNameOf(body["event"]); err != nil {
		return EventDef{}, err
	}
	if def.Stream, err = StreamOf(body["stream"]); err != nil {
		return EventDef{}, err
	}
	if raw, present := body["payload"]; present {
		if def.Payload, err = PayloadOf(raw); err != nil {
			return EventDef{}, err
		}
	}
	if def.Origin, err = OriginOf(body["origin"]); err != nil {
		return EventDef{}, err
	}
	if def.Publisher, err = PublisherOf(body["publisher"]); err != nil {
		return EventDef{}, err
	}
	if raw, present := body["correlationId"]; present {
		if def.CorrelationID, err = CorrelationIDOf(raw); err != nil {
			return EventDef{}, err
		}
	}
	return def, nil
}
