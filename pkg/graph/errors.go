package graph

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a get or delete targets an absent vertex,
	// edge or property.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a vertex id is already taken, or when an
	// edge is created between vertices that do not exist.
	ErrConflict = errors.New("conflict")
)

// ValidationError reports a malformed identifier or value. It is never
// retried: the caller has to fix the input.
type ValidationError struct {
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid value %q: %s", e.Value, e.Reason)
}

// QueryError reports a malformed query expression, typically a pipe applied
// to the wrong kind of stream.
type QueryError struct {
	Reason string
}

func (e *QueryError) Error() string {
	return "invalid query: " + e.Reason
}

// StorageError wraps a failure of the underlying storage engine (I/O,
// corruption detected on read). It is always surfaced as-is.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError wraps err unless it is nil or already a StorageError.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
