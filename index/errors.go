package index

import (
	"errors"
	"fmt"

	"github.com/quiverdb/quiver/model"
)

var (
	// ErrInvalidK is returned when a search asks for a non-positive number
	// of results.
	ErrInvalidK = errors.New("k must be positive")

	// ErrZeroVector is returned when inserting a zero-magnitude vector
	// under the cosine metric.
	ErrZeroVector = errors.New("zero vector has no direction under cosine")

	// ErrDeleteUnsupported is returned by graph-backed indexes, which never
	// remove records. Export the index with Snapshot, filter the records
	// with Without and restore the result instead.
	ErrDeleteUnsupported = errors.New("delete is not supported by this index: snapshot, filter and restore instead")
)

// ErrDimensionMismatch is returned when a vector's length does not match
// the index dimensionality.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// ErrInvalidVector is returned when a vector contains a NaN or infinite
// component. Index names the offending component.
type ErrInvalidVector struct {
	Index int
	Value float32
}

func (e *ErrInvalidVector) Error() string {
	return fmt.Sprintf("invalid vector: component %d is %v", e.Index, e.Value)
}

// ErrDuplicateKey is returned when inserting an id that already exists.
type ErrDuplicateKey struct {
	ID model.DocumentID
}

func (e *ErrDuplicateKey) Error() string {
	return fmt.Sprintf("duplicate key: %s", e.ID)
}

// ErrNotFound is returned when looking up or deleting an id the index does
// not hold.
type ErrNotFound struct {
	ID model.DocumentID
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("not found: %s", e.ID)
}

// ErrInvalidConfig is returned for unusable parameters, at construction
// time or when effective search parameters are inconsistent (for example
// a beam width smaller than k).
type ErrInvalidConfig struct {
	Reason string
}

func (e *ErrInvalidConfig) Error() string {
	return fmt.Sprintf("invalid configuration: %s", e.Reason)
}
