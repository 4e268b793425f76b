package content

import (
	"errors"
	"fmt"
)

// Build error categories. Use errors.Is against these to classify a failure.
var (
	// ErrNotFound indicates a definition file does not exist.
	ErrNotFound = errors.New("content: definition not found")

	// ErrParse indicates a definition file is not well-formed.
	ErrParse = errors.New("content: malformed definition")

	// ErrValidation indicates a required field is missing or has the wrong type.
	ErrValidation = errors.New("content: validation failed")

	// ErrReference indicates a referenced object could not be resolved.
	ErrReference = errors.New("content: unresolved reference")
)

// NotFoundError reports a missing definition file.
type NotFoundError struct {
	Path string
	Err  error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("content: definition not found: %s", e.Path)
}

// Unwrap returns the underlying filesystem error.
func (e *NotFoundError) Unwrap() error { return e.Err }

// Is reports whether target is ErrNotFound.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ParseError reports a definition that could not be decoded.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("content: malformed definition %s: %v", e.Path, e.Err)
}

// Unwrap returns the decoder error.
func (e *ParseError) Unwrap() error { return e.Err }

// Is reports whether target is ErrParse.
func (e *ParseError) Is(target error) bool { return target == ErrParse }

// ValidationError reports a schema mismatch for one object kind.
type ValidationError struct {
	Kind   Kind   // Kind being built
	Field  string // Offending field, dotted for nested fields
	Reason string // Optional detail, e.g. "required" or "uuid"
	Path   string // Definition file, if known
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("content: invalid %s: field %q", e.Kind, e.Field)
	if e.Reason != "" {
		msg += " " + e.Reason
	}
	if e.Path != "" {
		msg += " (" + e.Path + ")"
	}
	return msg
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ReferenceError reports a reference to an object that was not supplied.
type ReferenceError struct {
	Kind Kind   // Kind of the missing object
	Name string // Referenced name
	From string // Referencing object
}

func (e *ReferenceError) Error() string {
	if e.From != "" {
		return fmt.Sprintf("content: %s %q referenced by %q not found", e.Kind, e.Name, e.From)
	}
	return fmt.Sprintf("content: %s %q not found", e.Kind, e.Name)
}

// Is reports whether target is ErrReference.
func (e *ReferenceError) Is(target error) bool { return target == ErrReference }

// NewValidationError creates a ValidationError for a missing or invalid field.
func NewValidationError(kind Kind, field, reason string) *ValidationError {
	return &ValidationError{Kind: kind, Field: field, Reason: reason}
}

// IsNotFound checks if the error is a missing definition error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsParse checks if the error is a malformed definition error.
func IsParse(err error) bool {
	return errors.Is(err, ErrParse)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsReference checks if the error is an unresolved reference error.
func IsReference(err error) bool {
	return errors.Is(err, ErrReference)
}

// IsFatal reports whether err should abort the build of a single object.
// Reference errors are only returned in strict mode and abort the pass, not the object.
func IsFatal(err error) bool {
	return IsNotFound(err) || IsParse(err) || IsValidation(err)
}
