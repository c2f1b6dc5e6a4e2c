package repository

import "errors"

// ErrNotFound indicates the requested record does not exist. Conditional
// updates (consume, mark-used) also return it when the guard column blocks
// the write, so callers can treat "missing" and "lost the claim" the same
// way at the storage boundary.
var ErrNotFound = errors.New("repository: not found")

// ErrDuplicate indicates an insert collided with a unique constraint.
var ErrDuplicate = errors.New("repository: duplicate record")
