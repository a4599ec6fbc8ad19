package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrMalformedResponse = errors.New("malformed response")
	ErrInvalidInput      = errors.New("invalid input")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrTemporary         = errors.New("temporary failure")
)

// ErrorKind is the per-file failure taxonomy surfaced to callers.
type ErrorKind string

const (
	KindUnsupportedFormat ErrorKind = "UnsupportedFormat"
	KindAuthError         ErrorKind = "AuthError"
	KindRateLimited       ErrorKind = "RateLimited"
	KindTimeout           ErrorKind = "Timeout"
	KindTransportError    ErrorKind = "TransportError"
	KindUnknownError      ErrorKind = "UnknownError"
	KindMalformedResponse ErrorKind = "MalformedResponse"
)

// Retryable reports whether a caller may reasonably repeat the call.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindRateLimited, KindTimeout, KindTransportError:
		return true
	default:
		return false
	}
}

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// PipelineError ties a failure to the file and stage that produced it.
type PipelineError struct {
	Kind     ErrorKind
	Filename string
	Err      error
}

func (e *PipelineError) Error() string {
	if e == nil {
		return "pipeline error"
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Filename, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Filename, e.Kind, e.Err)
}

func (e *PipelineError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func NewPipelineError(kind ErrorKind, filename string, err error) *PipelineError {
	return &PipelineError{Kind: kind, Filename: filename, Err: err}
}

// ErrorKindOf maps any error onto the taxonomy. Unknown errors become KindUnknownError.
func ErrorKindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var pipelineErr *PipelineError
	if errors.As(err, &pipelineErr) && pipelineErr.Kind != "" {
		return pipelineErr.Kind
	}
	switch {
	case errors.Is(err, ErrUnsupportedFormat):
		return KindUnsupportedFormat
	case errors.Is(err, ErrMalformedResponse):
		return KindMalformedResponse
	case errors.Is(err, ErrUnauthorized):
		return KindAuthError
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return KindTimeout
	case errors.Is(err, ErrTemporary):
		return KindTransportError
	default:
		return KindUnknownError
	}
}

// UnsupportedFormat reports a file that could not be turned into text.
func UnsupportedFormat(filename string, err error) error {
	return NewPipelineError(KindUnsupportedFormat, filename, WrapError(ErrUnsupportedFormat, "extract", err))
}
