package storage

import "errors"

// Storage errors shared by all implementations.
var (
	// ErrNotFound is returned when a requested record does not exist,
	// and by TokenSignalStore.ClaimPending when the signal is not claimable.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when attempting to insert a record
	// with a key that already exists.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput is returned when input validation fails, including
	// attempts to transition a trade or signal out of a terminal state.
	ErrInvalidInput = errors.New("invalid input")
)
