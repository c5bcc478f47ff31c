package store

import "errors"

// ErrNotFound is returned when a lookup finds no matching row.
var ErrNotFound = errors.New("store: not found")

// ErrConflict is returned when a write would violate a uniqueness or
// foreign-key constraint that the caller should have avoided.
var ErrConflict = errors.New("store: conflict")
