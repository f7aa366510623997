// Package domain defines the validated value types of the event log.
//
// Every scalar is an opaque wrapper around a primitive: the Of-constructor
// is the only sanctioned way to obtain a value, and it either returns a
// well-formed value or a *ValidationError describing the violated rule.
// Constructors accept untyped input (any) because they sit directly behind
// JSON decoding, where everything arrives as string, float64 or map.
package domain

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"
)

// UtcLayout is the exact wire format for timestamps: millisecond precision,
// always UTC, always 24 characters.
const UtcLayout = "2006-01-02T15:04:05.000Z"

var (
	utcPattern         = regexp.MustCompile(`^\d{4}-\d\d-\d\dT\d\d:\d\d:\d\d\.\d{3}Z$`)
	eventNamePattern   = regexp.MustCompile(`^[A-Z][a-zA-Z0-9]*$`)
	streamPattern      = regexp.MustCompile(`^/([a-z]+/?([a-z]+/?([a-z0-9-]+)?)?)?$`)
	identifierPattern  = regexp.MustCompile(`^[a-z][a-z0-9]*$`)
	correlationPattern = regexp.MustCompile(`^(def|evt|cmd|crl)[1-9][0-9]*$`)
)

// UtcTimestamp is a UTC instant in UtcLayout form.
type UtcTimestamp string

// UtcTimestampOf validates v against UtcLayout and the calendar.
func UtcTimestampOf(v any) (UtcTimestamp, error) {
	s, ok := v.(string)
	if !ok || !utcPattern.MatchString(s) {
		return "", &ValidationError{Field: "occurredAt", Message: fmt.Sprintf("should be of %q, but was: '%v'", "YYYY-MM-DDTHH:MM:SS.sssZ", v)}
	}
	if _, err := time.Parse(UtcLayout, s); err != nil {
		return "", &ValidationError{Field: "occurredAt", Message: fmt.Sprintf("is not a real instant: '%s'", s)}
	}
	return UtcTimestamp(s), nil
}

// Time returns the parsed instant. The zero value parses to the zero time.
func (t UtcTimestamp) Time() time.Time {
	parsed, _ := time.Parse(UtcLayout, string(t))
	return parsed
}

// Now returns the current instant as a UtcTimestamp.
func Now() UtcTimestamp {
	return UtcTimestamp(time.Now().UTC().Format(UtcLayout))
}

// EventName is a camel-case identifier of 1 to 99 characters starting with
// an uppercase ASCII letter.
type EventName string

// EventNameOf validates v as an event name.
func EventNameOf(v any) (EventName, error) {
	s, ok := v.(string)
	if !ok || !eventNamePattern.MatchString(s) {
		return "", &ValidationError{Field: "event", Message: fmt.Sprintf("should be in camel case, but was: '%v'", v)}
	}
	if len(s) >= 100 {
		return "", &ValidationError{Field: "event", Message: fmt.Sprintf("is too long, it should be [1, 99], but was: '%d'", len(s))}
	}
	return EventName(s), nil
}

// Stream is a slash-rooted path of up to three lowercase segments,
// "/context/entity/id", where the id segment may also contain digits and
// hyphens. Length is 1 to 199 characters.
type Stream string

// StreamOf validates v as a stream path.
func StreamOf(v any) (Stream, error) {
	s, ok := v.(string)
	if !ok || !streamPattern.MatchString(s) {
		return "", &ValidationError{Field: "stream", Message: fmt.Sprintf("should be of \"/context?/entity?/id?\", but was: '%v'", v)}
	}
	if len(s) >= 200 {
		return "", &ValidationError{Field: "stream", Message: fmt.Sprintf("is too long, it should be [1, 199], but was: '%d'", len(s))}
	}
	return Stream(s), nil
}

// Origin names the system an event came from.
type Origin string

// OriginOf validates v as a lowercase identifier.
func OriginOf(v any) (Origin, error) {
	s, err := identifierOf(v, "origin")
	return Origin(s), err
}

// Publisher names the login that published an event.
type Publisher string

// PublisherOf validates v as a lowercase identifier.
func PublisherOf(v any) (Publisher, error) {
	s, err := identifierOf(v, "publisher")
	return Publisher(s), err
}

func identifierOf(v any, field string) (string, error) {
	s, ok := v.(string)
	if !ok || !identifierPattern.MatchString(s) {
		return "", &ValidationError{Field: field, Message: fmt.Sprintf("should be a lower case identifier, but was: '%v'", v)}
	}
	if len(s) >= 100 {
		return "", &ValidationError{Field: field, Message: fmt.Sprintf("is too long, it should be [1, 99], but was: '%d'", len(s))}
	}
	return s, nil
}

// CorrelationID groups related events. It is one of the prefixes def, evt,
// cmd or crl followed by a positive integer without leading zeros.
type CorrelationID string

// CorrelationIDOf validates v as a correlation id.
func CorrelationIDOf(v any) (CorrelationID, error) {
	s, ok := v.(string)
	if !ok || !correlationPattern.MatchString(s) {
		return "", &ValidationError{Field: "correlationId", Message: fmt.Sprintf("should match (def|evt|cmd|crl)<n> with n > 0, but was: '%v'", v)}
	}
	if len(s) >= 100 {
		return "", &ValidationError{Field: "correlationId", Message: fmt.Sprintf("is too long, it should be [4, 99], but was: '%d'", len(s))}
	}
	return CorrelationID(s), nil
}

// Payload is a non-empty key/value mapping whose serialized form stays
// under 2000 bytes.
type Payload map[string]any

// PayloadOf validates v as a payload.
func PayloadOf(v any) (Payload, error) {
	m, ok := v.(map[string]any)
	if !ok || len(m) == 0 {
		return nil, &ValidationError{Field: "payload", Message: fmt.Sprintf("should be a non empty object, but was: '%v'", v)}
	}
	serialized, err := json.Marshal(m)
	if err != nil {
		return nil, &ValidationError{Field: "payload", Message: fmt.Sprintf("is not serializable: %v", err)}
	}
	if len(serialized) >= 2000 {
		return nil, &ValidationError{Field: "payload", Message: fmt.Sprintf("is too long, it should be serialized under 2000 bytes, but was: '%d'", len(serialized))}
	}
	return Payload(m), nil
}

// EventID identifies a stored event. Ids are positive and assigned by the
// store in strictly increasing order.
type EventID int64

// EventIDOf validates v as an event id.
func EventIDOf(v int64) (EventID, error) {
	if v <= 0 {
		return 0, &ValidationError{Field: "eventId", Message: fmt.Sprintf("should be > 0, but was: '%d'", v)}
	}
	return EventID(v), nil
}

// RejectedEventID identifies a stored rejection.
type RejectedEventID int64

// RejectedEventIDOf validates v as a rejected event id.
func RejectedEventIDOf(v int64) (RejectedEventID, error) {
	if v <= 0 {
		return 0, &ValidationError{Field: "id", Message: fmt.Sprintf("should be > 0, but was: '%d'", v)}
	}
	return RejectedEventID(v), nil
}
