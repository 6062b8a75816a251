package shared

import "errors"

// Error categories. Domain sentinels wrap one of these so transports can map
// an error to a status without knowing every package.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("already exists")
	ErrInvalidState = errors.New("invalid state")
)
