package prism

import (
	"errors"
	"fmt"
)

// Sentinel errors for programmatic error handling.
// Use errors.Is() to check for these error types.
var (
	// ErrCycle indicates an instance was reachable from itself on the
	// active projection path. Cycles are never silently truncated.
	ErrCycle = errors.New("cyclic reference")

	// ErrUnencodable indicates a scalar with no applicable type encoder
	// and no native representation in the destination mode.
	ErrUnencodable = errors.New("unencodable value")

	// ErrDepthExceeded indicates the object graph nested deeper than the
	// configured bound.
	ErrDepthExceeded = errors.New("depth exceeded")

	// ErrNotStruct indicates a dump or copy entry point was handed a
	// value that is not a struct or pointer to struct.
	ErrNotStruct = errors.New("not a struct")

	// ErrUnknownField indicates a copy update or encoder registration
	// named a field the type does not declare.
	ErrUnknownField = errors.New("unknown field")

	// ErrBadDefault indicates a default tag could not be parsed as the
	// field's type.
	ErrBadDefault = errors.New("invalid default")

	// ErrBadSelector indicates a selection literal or tag path could not
	// be understood.
	ErrBadSelector = errors.New("invalid selector")

	// ErrBadUpdate indicates a copy update value is not assignable to
	// the field it targets.
	ErrBadUpdate = errors.New("invalid update value")

	// ErrBadEmbedded indicates an embedded structured-text field does
	// not hold valid text.
	ErrBadEmbedded = errors.New("invalid embedded text")

	// ErrEncoder indicates a registered field, instance, or type
	// encoder returned an error.
	ErrEncoder = errors.New("encoder failed")

	// ErrUnknownView indicates a view tag named a type that was never
	// registered.
	ErrUnknownView = errors.New("unknown view type")
)

// EncodeError represents a projection or rendering failure.
// Path is the dotted/bracketed location of the fault in the object
// graph, e.g. "address.country.name" or "hobbies[1].info".
type EncodeError struct {
	Err   error  // Underlying sentinel error (ErrCycle, ErrUnencodable, ...)
	Path  string // Field path where the failure occurred
	Type  string // Go type at the failure site, when known
	Cause error  // Original error from a custom encoder or parser
}

func (e *EncodeError) Error() string {
	msg := e.Err.Error()
	if e.Type != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Type)
	}
	if e.Path != "" {
		msg = fmt.Sprintf("%s at %s", msg, e.Path)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *EncodeError) Unwrap() error {
	return e.Err
}

// SpecError represents a declaration-time failure: a tag that does not
// parse, a default that does not fit the field, or a copy update that
// does not match the type.
type SpecError struct {
	Err   error  // Underlying sentinel error (ErrBadDefault, ErrUnknownField, ...)
	Type  string // Type name, when known
	Field string // Field name, when known
	Cause error  // Original parse error, when any
}

func (e *SpecError) Error() string {
	msg := e.Err.Error()
	switch {
	case e.Type != "" && e.Field != "":
		msg = fmt.Sprintf("%s for field %s.%s", msg, e.Type, e.Field)
	case e.Field != "":
		msg = fmt.Sprintf("%s for field %s", msg, e.Field)
	case e.Type != "":
		msg = fmt.Sprintf("%s for type %s", msg, e.Type)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *SpecError) Unwrap() error {
	return e.Err
}

// newEncodeError creates an EncodeError localized to a field path.
func newEncodeError(sentinel error, path, typeName string, cause error) error {
	return &EncodeError{
		Err:   sentinel,
		Path:  path,
		Type:  typeName,
		Cause: cause,
	}
}

// newSpecError creates a SpecError for declaration-time failures.
func newSpecError(sentinel error, typeName, field string, cause error) error {
	return &SpecError{
		Err:   sentinel,
		Type:  typeName,
		Field: field,
		Cause: cause,
	}
}
