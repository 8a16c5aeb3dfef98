// Package errors provides standardized error types and helpers for the incipit codebase.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	// ErrMissingPart indicates a required package part is absent
	ErrMissingPart = errors.New("missing part")
	// ErrMissingEndnotes indicates the endnotes part is absent while endnote conversion was requested
	ErrMissingEndnotes = errors.New("missing endnotes")
	// ErrMalformedPackage indicates the package archive or one of its XML parts cannot be parsed
	ErrMalformedPackage = errors.New("malformed package")
	// ErrMalformedRelationships indicates a relationship table is present but unparsable
	ErrMalformedRelationships = errors.New("malformed relationships")
	// ErrInvalidInput indicates invalid input or validation failure
	ErrInvalidInput = errors.New("invalid input")
)

// MissingPartError reports a package part that was expected but not found.
// A missing body part is always fatal for a conversion.
type MissingPartError struct {
	Part string // Part name (e.g., "word/document.xml")
	Err  error  // Underlying error, if any
}

func (e *MissingPartError) Error() string {
	return fmt.Sprintf("package part not found: %s", e.Part)
}

func (e *MissingPartError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrMissingPart
}

// MissingEndnotesError reports that endnote conversion was requested on a
// package without an endnotes part.
type MissingEndnotesError struct {
	Err error // Underlying error, if any
}

func (e *MissingEndnotesError) Error() string {
	return "no endnotes part found: document has no endnotes"
}

func (e *MissingEndnotesError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrMissingEndnotes
}

// MalformedPackageError reports an archive or XML part that cannot be parsed.
// Always fatal: the conversion aborts before any output is produced.
type MalformedPackageError struct {
	Stage string // What was being parsed (e.g., "archive", "word/document.xml")
	Err   error  // Underlying error
}

func (e *MalformedPackageError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("malformed package: %s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("malformed package: %v", e.Err)
}

func (e *MalformedPackageError) Unwrap() error {
	return ErrMalformedPackage
}

// MalformedRelationshipsError reports a relationship table that is present but
// unparsable. Non-fatal: callers treat the table as empty and proceed, losing
// only URL-deduplication opportunities for that part.
type MalformedRelationshipsError struct {
	Part string // Relationship part name (e.g., "word/_rels/document.xml.rels")
	Err  error  // Underlying error
}

func (e *MalformedRelationshipsError) Error() string {
	if e.Part != "" {
		return fmt.Sprintf("malformed relationship table %s: %v", e.Part, e.Err)
	}
	return fmt.Sprintf("malformed relationship table: %v", e.Err)
}

func (e *MalformedRelationshipsError) Unwrap() error {
	return ErrMalformedRelationships
}

// ValidationError represents an input validation error with context
type ValidationError struct {
	Field   string // Field name that failed validation
	Value   string // Value that failed validation (may be redacted)
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// Helper functions for creating common errors

// NewMissingPart creates a MissingPartError
func NewMissingPart(part string) *MissingPartError {
	return &MissingPartError{Part: part}
}

// NewMissingEndnotes creates a MissingEndnotesError
func NewMissingEndnotes() *MissingEndnotesError {
	return &MissingEndnotesError{}
}

// NewMalformedPackage creates a MalformedPackageError
func NewMalformedPackage(stage string, err error) *MalformedPackageError {
	return &MalformedPackageError{Stage: stage, Err: err}
}

// NewMalformedRelationships creates a MalformedRelationshipsError
func NewMalformedRelationships(part string, err error) *MalformedRelationshipsError {
	return &MalformedRelationshipsError{Part: part, Err: err}
}

// NewValidation creates a ValidationError
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// Wrap adds context to an error. If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf adds formatted context to an error. If err is nil, returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// Is wraps errors.Is for convenience
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
