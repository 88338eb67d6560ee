package store

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptySummary is returned by Add for a blank summary.
	ErrEmptySummary = errors.New("store: summary is empty")

	// ErrInvalidK is returned by Search when k is not positive.
	ErrInvalidK = errors.New("store: k must be positive")

	// ErrDimension marks an embedding whose length differs from the store's.
	ErrDimension = errors.New("store: embedding dimension mismatch")

	// ErrNotFound is returned by Get for an out-of-range position.
	ErrNotFound = errors.New("store: memory not found")
)

// EmbeddingError reports a failed or malformed embedding. No state was
// mutated.
type EmbeddingError struct {
	Op  string
	Err error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embed %s: %v", e.Op, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// PersistenceError reports a failed read or write of an on-disk artifact.
// When returned by Add the in-memory append has been rolled back.
type PersistenceError struct {
	Op   string
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IntegrityError reports persisted artifacts that disagree with each other.
// It is never repaired automatically.
type IntegrityError struct {
	Reason string
}

func (e *IntegrityError) Error() string {
	return "store integrity: " + e.Reason
}
