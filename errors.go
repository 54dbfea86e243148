package vectra

import (
	"errors"
	"fmt"
)

// ErrFallbackToCPU indicates an accelerated kernel cannot handle this call.
// The dispatcher transparently falls back to the CPU kernel.
var ErrFallbackToCPU = errors.New("vectra: falling back to CPU kernel")

// ErrAccelerationUnavailable indicates the accelerated kernel layer failed to
// initialize or dispatch. It is always recovered by the CPU path and never
// surfaces to the caller of Vectorize.
var ErrAccelerationUnavailable = errors.New("vectra: acceleration unavailable")

// ErrResourceExhausted indicates the input is too large for the configured
// budget. Recovery is a forced downscale, never silent truncation.
var ErrResourceExhausted = errors.New("vectra: resource budget exhausted")

// ValidationError reports a malformed configuration or input buffer.
// It is returned before any processing starts; the whole call is rejected
// atomically.
type ValidationError struct {
	Field  string // configuration field or input property
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("vectra: invalid %s: %s", e.Field, e.Reason)
}

// validationErr is a shorthand constructor used throughout config checking.
func validationErr(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ProcessingError reports a violated internal invariant in a pipeline stage.
// Stages recover from these by falling back to a coarser variant of the same
// stage; a ProcessingError only propagates if the fallback itself fails.
type ProcessingError struct {
	Stage string // pipeline stage, e.g. "trace", "segment"
	Err   error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("vectra: %s stage: %v", e.Stage, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

func processingErr(stage string, format string, args ...any) *ProcessingError {
	return &ProcessingError{Stage: stage, Err: fmt.Errorf(format, args...)}
}
