package models

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned for cache misses. It is an expected,
// non-exceptional result; callers branch on it with errors.Is.
var ErrNotFound = errors.New("not found")

// StorageOp identifies which side of the storage medium failed.
type StorageOp string

const (
	StorageOpRead  StorageOp = "read"
	StorageOpWrite StorageOp = "write"
)

// StorageError wraps a backing-medium failure. It is propagated to the
// caller unchanged; retry policy belongs outside this subsystem.
type StorageError struct {
	Op  StorageOp
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed for %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError builds a StorageError for the given operation and key.
func NewStorageError(op StorageOp, key string, err error) *StorageError {
	return &StorageError{Op: op, Key: key, Err: err}
}

// IsNotFound reports whether err represents a cache miss.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
