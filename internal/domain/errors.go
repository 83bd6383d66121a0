package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInvalidDescriptor is returned when a job request fails validation.
	ErrInvalidDescriptor = errors.New("invalid descriptor")

	// ErrJobAlreadyActive is returned when submitting while a job is running or cancelling.
	ErrJobAlreadyActive = errors.New("job already active")

	// ErrNoActiveJob is returned when an operation needs a running job.
	ErrNoActiveJob = errors.New("no active job")
)

// DescriptorError names the descriptor field that failed validation.
type DescriptorError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *DescriptorError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Unwrap lets callers match with errors.Is(err, ErrInvalidDescriptor).
func (e *DescriptorError) Unwrap() error {
	return ErrInvalidDescriptor
}

// EngineErrorKind classifies failures surfaced by the fetch-and-encode engine.
type EngineErrorKind string

const (
	EngineErrorNetwork           EngineErrorKind = "network"
	EngineErrorMissingDependency EngineErrorKind = "missing_dependency"
	EngineErrorStreamUnavailable EngineErrorKind = "stream_unavailable"
	EngineErrorDestination       EngineErrorKind = "destination"
	EngineErrorCancelled         EngineErrorKind = "cancelled"
	EngineErrorUnknown           EngineErrorKind = "unknown"
)

// EngineError is a kind-tagged engine failure with optional process output.
type EngineError struct {
	Kind    EngineErrorKind `json:"kind"`
	Message string          `json:"message"`
	Stderr  string          `json:"stderr,omitempty"`
	Err     error           `json:"-"`
}

// Error formats engine failures for logs and UI.
func (e *EngineError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
}

// Unwrap exposes underlying error for errors.Is / errors.As.
func (e *EngineError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ErrEngineCancelled is the canonical cancellation error returned by engines.
var ErrEngineCancelled = &EngineError{Kind: EngineErrorCancelled, Message: "download cancelled by user"}

// EngineErrorKindOf returns the kind carried by err, or unknown.
func EngineErrorKindOf(err error) EngineErrorKind {
	if err == nil {
		return ""
	}

	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		return engineErr.Kind
	}
	if errors.Is(err, context.Canceled) {
		return EngineErrorCancelled
	}
	return EngineErrorUnknown
}

// IsCancelled reports whether err represents user-initiated cancellation.
func IsCancelled(err error) bool {
	return EngineErrorKindOf(err) == EngineErrorCancelled
}
