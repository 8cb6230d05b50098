package repository

import "errors"

var (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrStoreUnavailable indicates the backing store could not be reached,
	// as opposed to rejecting the statement.
	ErrStoreUnavailable = errors.New("store unavailable")
)
