package storage

import "errors"

// Errors shared by every store implementation.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when an insert collides with an existing key.
	// Transaction, tick, trade and signal history stores are append-only.
	ErrDuplicateKey = errors.New("duplicate key: append-only store does not allow updates")

	// ErrInvalidInput is returned when a record fails validation before write.
	ErrInvalidInput = errors.New("invalid input")
)
