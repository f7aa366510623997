package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError indicates a field failed its typed constructor.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s %s", e.Field, e.Message)
	}
	return e.Message
}

// ShapeError indicates a submission carried the wrong set of top-level
// fields. Missing and Extra are sorted for deterministic messages.
type ShapeError struct {
	Missing []string
	Extra   []string
}

// Error implements the error interface. The format matches what is stored
// as the rejection message.
func (e *ShapeError) Error() string {
	return fmt.Sprintf("missing properties [%s], extra properties [%s]",
		strings.Join(e.Missing, ", "), strings.Join(e.Extra, ", "))
}

// ParseError indicates raw input was not well-formed structured data.
type ParseError struct {
	Err error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error: %v", e.Err)
}

// Unwrap returns the underlying decode error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// Reason classifies why a submission was rejected.
type Reason string

const (
	// ReasonUnsupported means the input could not be parsed as structured
	// data at all.
	ReasonUnsupported Reason = "unsupported"

	// ReasonMalformed means the input parsed but carried missing or extra
	// top-level fields.
	ReasonMalformed Reason = "malformed"

	// ReasonInvalid means all fields were present but one failed semantic
	// validation.
	ReasonInvalid Reason = "invalid"

	// ReasonUnknown means a downstream failure during persistence, not
	// attributable to the input's shape.
	ReasonUnknown Reason = "unknown"
)

// ReasonOf classifies an error from the validation pipeline into the
// rejection reason the boundary records.
func ReasonOf(err error) Reason {
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return ReasonUnsupported
	}
	var shapeErr *ShapeError
	if errors.As(err, &shapeErr) {
		return ReasonMalformed
	}
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return ReasonInvalid
	}
	return ReasonUnknown
}
