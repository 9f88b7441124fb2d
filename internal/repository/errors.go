package repository

import "errors"

var (
	// ErrNotFound is returned when no record matches the lookup.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when an insert violates a uniqueness
	// constraint. The store's constraint is authoritative: concurrent
	// signups racing on the same username surface here.
	ErrDuplicate = errors.New("duplicate record")
)
