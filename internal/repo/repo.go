package repo

import "errors"

// ErrNotFound is returned when a lookup matches no row. Callers branch on it
// to distinguish absent records from store failures.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an insert violates a uniqueness constraint.
var ErrConflict = errors.New("already exists")
