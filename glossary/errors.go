package glossary

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Code is a backend status code, independent of the transport.
type Code int

const (
	CodeUnknown Code = iota
	CodeNotFound
	CodeAlreadyExists
	CodeInvalidArgument
	CodePermissionDenied
	CodeResourceExhausted
	CodeDeadlineExceeded
	CodeUnavailable
	CodeCanceled
)

func (c Code) String() string {
	switch c {
	case CodeNotFound:
		return "NOT_FOUND"
	case CodeAlreadyExists:
		return "ALREADY_EXISTS"
	case CodeInvalidArgument:
		return "INVALID_ARGUMENT"
	case CodePermissionDenied:
		return "PERMISSION_DENIED"
	case CodeResourceExhausted:
		return "RESOURCE_EXHAUSTED"
	case CodeDeadlineExceeded:
		return "DEADLINE_EXCEEDED"
	case CodeUnavailable:
		return "UNAVAILABLE"
	case CodeCanceled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// APIError is returned by Backend implementations for failed calls.
type APIError struct {
	Op   string // "get", "create", "delete", ...
	Code Code
	Err  error
}

func (e *APIError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s glossary: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("%s glossary: %s: %v", e.Op, e.Code, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

// NewAPIError builds an APIError.
func NewAPIError(op string, code Code, err error) *APIError {
	return &APIError{Op: op, Code: code, Err: err}
}

var (
	// ErrTimeout matches any *TimeoutError.
	ErrTimeout = errors.New("glossary operation timed out")
	// ErrQuota marks resource exhaustion on the backend.
	ErrQuota = errors.New("glossary quota exhausted")
	// ErrInvalidLanguage marks a malformed target language code.
	ErrInvalidLanguage = errors.New("invalid language code")
)

// TimeoutError reports that a long-running glossary operation did not
// finish in time. The operation has been asked to cancel.
type TimeoutError struct {
	Name  string
	After time.Duration
	// CancelErr is set when requesting cancellation itself failed.
	CancelErr error
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("glossary %s: creation timed out after %s", e.Name, e.After)
	if e.CancelErr != nil {
		msg += fmt.Sprintf(" (cancel failed: %v)", e.CancelErr)
	}
	return msg
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// CodeOf extracts the status code carried by err.
func CodeOf(err error) Code {
	if err == nil {
		return CodeUnknown
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	switch {
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return CodeDeadlineExceeded
	case errors.Is(err, context.Canceled):
		return CodeCanceled
	case errors.Is(err, ErrQuota):
		return CodeResourceExhausted
	case errors.Is(err, ErrInvalidLanguage):
		return CodeInvalidArgument
	}
	return CodeUnknown
}

// IsNotFound reports whether err is a not-found response.
func IsNotFound(err error) bool { return CodeOf(err) == CodeNotFound }

// Class groups codes by how the lifecycle reacts to them.
type Class int

const (
	ClassNone      Class = iota // nil error
	ClassNotFound               // absent on lookup, already gone on delete
	ClassConflict               // already exists on create: success
	ClassTransient              // timeout, quota, unavailable: caller may retry later
	ClassPermanent              // everything else: fatal for this language's glossary
)

func (c Class) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassNotFound:
		return "not-found"
	case ClassConflict:
		return "conflict"
	case ClassTransient:
		return "transient"
	default:
		return "permanent"
	}
}

// Classify maps err onto the lifecycle's error taxonomy.
func Classify(err error) Class {
	if err == nil {
		return ClassNone
	}
	switch CodeOf(err) {
	case CodeNotFound:
		return ClassNotFound
	case CodeAlreadyExists:
		return ClassConflict
	case CodeDeadlineExceeded, CodeResourceExhausted, CodeUnavailable:
		return ClassTransient
	default:
		return ClassPermanent
	}
}

// describe returns an operator hint for a failed glossary creation.
func describe(err error) string {
	switch CodeOf(err) {
	case CodeInvalidArgument:
		return "invalid glossary configuration"
	case CodePermissionDenied:
		return "permission denied, check credentials and project permissions"
	case CodeNotFound:
		return "resource not found, check that the glossary file exists in the bucket"
	case CodeResourceExhausted:
		return "resource quota exceeded, try again later"
	case CodeDeadlineExceeded:
		return "operation timed out"
	default:
		return "backend error"
	}
}
