package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeAlreadyExists    = "ALREADY_EXISTS"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeInvalidOperation = "INVALID_OPERATION"
	ErrCodeUnavailable      = "UNAVAILABLE"
)

// Validation errors
var (
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "missing required field")
	ErrInvalidHandle        = NewDomainError(ErrCodeValidation, "invalid source handle")
	ErrInvalidItemURL       = NewDomainError(ErrCodeValidation, "invalid item url")
	ErrInvalidMediaURL      = NewDomainError(ErrCodeValidation, "invalid media url")
	ErrEmptyQuery           = NewDomainError(ErrCodeValidation, "query cannot be empty")
	ErrNonContiguousChunks  = NewDomainError(ErrCodeValidation, "chunk indices must be contiguous from 0")
)

// Not found errors
var (
	ErrSourceNotFound = NewDomainError(ErrCodeNotFound, "source not found")
	ErrItemNotFound   = NewDomainError(ErrCodeNotFound, "content item not found")
)

// Already exists errors
var (
	ErrItemAlreadyChunked = NewDomainError(ErrCodeAlreadyExists, "content item already chunked")
)

// Operation errors
var (
	ErrPipelineRunning      = NewDomainError(ErrCodeInvalidOperation, "a pipeline run is already in progress")
	ErrPipelineUnconfigured = NewDomainError(ErrCodeUnavailable, "pipeline is not configured")
)

// ErrorKind classifies failures so callers can tell retryable conditions from
// fatal ones.
type ErrorKind string

const (
	ErrorKindTransient ErrorKind = "transient"
	ErrorKindDataShape ErrorKind = "data_shape"
	ErrorKindConfig    ErrorKind = "config"
	ErrorKindFatal     ErrorKind = "fatal"
)

// KindError tags an error with an ErrorKind and the operation that failed.
type KindError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *KindError) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *KindError) Unwrap() error {
	return e.Err
}

// NewKindError wraps err with the given kind. A nil err yields nil.
func NewKindError(kind ErrorKind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &KindError{Kind: kind, Op: op, Err: err}
}

// Transient, DataShape, Config and Fatal are shorthands for NewKindError.
func Transient(op string, err error) error { return NewKindError(ErrorKindTransient, op, err) }
func DataShape(op string, err error) error { return NewKindError(ErrorKindDataShape, op, err) }
func Config(op string, err error) error    { return NewKindError(ErrorKindConfig, op, err) }
func Fatal(op string, err error) error     { return NewKindError(ErrorKindFatal, op, err) }

// KindOf reports the kind of err. Untagged errors, including context and
// network failures, are treated as transient: the next pipeline run is the
// retry.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var kindErr *KindError
	if errors.As(err, &kindErr) {
		return kindErr.Kind
	}

	var domainErr *DomainError
	if errors.As(err, &domainErr) && domainErr.Code == ErrCodeValidation {
		return ErrorKindDataShape
	}

	return ErrorKindTransient
}

// IsRetryable reports whether err is worth retrying on a later run.
func IsRetryable(err error) bool {
	return err != nil && KindOf(err) == ErrorKindTransient
}
