package repository

import "errors"

var (
	// ErrNotFound is returned when a lookup matches no document or row.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when an insert violates a unique index.
	ErrDuplicate = errors.New("duplicate record")
	// ErrStale is returned when a conditional update finds the document changed since it was read.
	ErrStale = errors.New("record changed since read")
)
