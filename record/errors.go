package record

import "errors"

var (
	// ErrNotFound indicates no row exists for the requested target.
	ErrNotFound = errors.New("record: not found")
)
