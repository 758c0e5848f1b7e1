package storage

import "errors"

var (
	// ErrNotFound is returned when a looked-up record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrPersistence wraps failures of the underlying database.
	ErrPersistence = errors.New("persistence failure")
	// ErrDuplicate is returned when a unique constraint rejects an insert.
	ErrDuplicate = errors.New("duplicate record")
)
