// Package errors provides the error taxonomy shared by the alignment tree,
// the training orchestrator and the model cache.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common cases
var (
	// ErrNotFound indicates a selector or key did not resolve
	ErrNotFound = errors.New("not found")
	// ErrNotSelected indicates a selector level required by an operation is empty
	ErrNotSelected = errors.New("not selected")
	// ErrInvalidInput indicates invalid input or validation failure
	ErrInvalidInput = errors.New("invalid input")
	// ErrDataError indicates malformed or missing source/target text
	ErrDataError = errors.New("data error")
	// ErrAlignmentMerge indicates an alignment could not be merged into target text
	ErrAlignmentMerge = errors.New("alignment merge failed")
	// ErrInsufficientData indicates too few training examples
	ErrInsufficientData = errors.New("insufficient training data")
	// ErrTrainingTask indicates the background training task failed
	ErrTrainingTask = errors.New("training task failed")
	// ErrTrainingTimeout indicates the training deadline was exceeded
	ErrTrainingTimeout = errors.New("training timed out")
	// ErrCacheMiss indicates no cached model was found
	ErrCacheMiss = errors.New("cache miss")
)

// NotFoundError represents a selector or resource not found error with context
type NotFoundError struct {
	Resource string // Type of resource (e.g., "group", "book", "verse")
	ID       string // Identifier of the resource
	Err      error  // Underlying error, if any
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrNotFound
}

// NotSelectedError is returned when a selector omits a level the operation needs.
type NotSelectedError struct {
	Level string // "group", "book", "chapter" or "verse"
}

func (e *NotSelectedError) Error() string {
	return fmt.Sprintf("no %s selected", e.Level)
}

func (e *NotSelectedError) Unwrap() error {
	return ErrNotSelected
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

// DataError describes source or target text that was dropped during import.
type DataError struct {
	Ref    string // Reference of the affected verse or book
	Reason string
}

func (e *DataError) Error() string {
	if e.Ref != "" {
		return fmt.Sprintf("data error at %s: %s", e.Ref, e.Reason)
	}
	return fmt.Sprintf("data error: %s", e.Reason)
}

func (e *DataError) Unwrap() error {
	return ErrDataError
}

// AlignmentMergeError is returned when alignments cannot be losslessly
// merged back into the stored target text.
type AlignmentMergeError struct {
	Token   string // Target token that could not be placed, if known
	Message string
}

func (e *AlignmentMergeError) Error() string {
	if e.Token != "" {
		return fmt.Sprintf("alignment merge failed at %q: %s", e.Token, e.Message)
	}
	return fmt.Sprintf("alignment merge failed: %s", e.Message)
}

func (e *AlignmentMergeError) Unwrap() error {
	return ErrAlignmentMerge
}

// InsufficientDataError reports a training run skipped for lack of examples.
type InsufficientDataError struct {
	Have int
	Need int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient training data: have %d alignments, need %d", e.Have, e.Need)
}

func (e *InsufficientDataError) Unwrap() error {
	return ErrInsufficientData
}

// TrainingTaskError wraps a failure raised inside the background task.
type TrainingTaskError struct {
	RunID   string
	Message string
}

func (e *TrainingTaskError) Error() string {
	if e.RunID != "" {
		return fmt.Sprintf("training run %s failed: %s", e.RunID, e.Message)
	}
	return fmt.Sprintf("training failed: %s", e.Message)
}

func (e *TrainingTaskError) Unwrap() error {
	return ErrTrainingTask
}

// TrainingTimeoutError reports a run terminated at its deadline.
type TrainingTimeoutError struct {
	RunID    string
	Deadline time.Duration
}

func (e *TrainingTimeoutError) Error() string {
	return fmt.Sprintf("training run %s exceeded deadline of %s", e.RunID, e.Deadline)
}

func (e *TrainingTimeoutError) Unwrap() error {
	return ErrTrainingTimeout
}

// CacheMissError reports a key with no stored model or settings.
type CacheMissError struct {
	Key string
}

func (e *CacheMissError) Error() string {
	return fmt.Sprintf("no cached entry for %s", e.Key)
}

func (e *CacheMissError) Unwrap() error {
	return ErrCacheMiss
}

// IOError represents an I/O operation error with context
type IOError struct {
	Operation string // Operation being performed (e.g., "read", "write", "open")
	Path      string // File/resource path involved
	Err       error  // Underlying error
}

func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to %s %s: %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("failed to %s: %v", e.Operation, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// ParseError represents a parsing or deserialization error
type ParseError struct {
	Format  string // Format being parsed (e.g., "reference", "model", "project")
	Path    string // File path, if applicable
	Message string // Error details
	Err     error  // Underlying error, if any
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to parse %s at %s: %s", e.Format, e.Path, e.Message)
	}
	return fmt.Sprintf("failed to parse %s: %s", e.Format, e.Message)
}

func (e *ParseError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// Helper functions for creating common errors

// NewNotFound creates a NotFoundError
func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		ID:       id,
	}
}

// NewNotSelected creates a NotSelectedError
func NewNotSelected(level string) *NotSelectedError {
	return &NotSelectedError{Level: level}
}

// NewValidation creates a ValidationError
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewAlignmentMerge creates an AlignmentMergeError
func NewAlignmentMerge(token, message string) *AlignmentMergeError {
	return &AlignmentMergeError{
		Token:   token,
		Message: message,
	}
}

// NewIO creates an IOError
func NewIO(operation, path string, err error) *IOError {
	return &IOError{
		Operation: operation,
		Path:      path,
		Err:       err,
	}
}

// NewParse creates a ParseError
func NewParse(format, path, message string) *ParseError {
	return &ParseError{
		Format:  format,
		Path:    path,
		Message: message,
	}
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
