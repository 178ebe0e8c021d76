package core

import (
	"errors"
	"fmt"
)

// ErrInvalidInput is returned for empty or malformed content/context.
var ErrInvalidInput = errors.New("invalid input")

// ErrUnroutableTask is returned when no routing rule matches a task type
// and no default provider is configured.
var ErrUnroutableTask = errors.New("unroutable task")

// CapacityError reports a misconfigured store capacity. Under normal
// operation the short-term store always makes room, so this surfaces
// only from construction with a non-positive capacity.
type CapacityError struct {
	Capacity int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("invalid store capacity %d (must be > 0)", e.Capacity)
}

// EmbeddingError wraps a failure from the external embedding function.
// Propagated to the caller untouched; the core never retries.
type EmbeddingError struct {
	Err error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding failed: %v", e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// CompletionError wraps a failure from the external completion function.
type CompletionError struct {
	Provider string
	Err      error
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("completion failed (provider=%s): %v", e.Provider, e.Err)
}

func (e *CompletionError) Unwrap() error { return e.Err }
