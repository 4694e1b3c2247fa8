package store

import "errors"

var (
	// ErrNotFound indicates the requested entry does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entry with the same fingerprint exists
	// (unique constraint).
	ErrAlreadyExists = errors.New("already exists")

	// ErrUnavailable indicates the backing database could not be reached.
	ErrUnavailable = errors.New("store unavailable")
)
