package cvfile

import "errors"

var (
	// ErrNotFound is returned when the file doesn't exist
	ErrNotFound = errors.New("file not found")

	// ErrNotOwner is returned when the file belongs to another user
	ErrNotOwner = errors.New("file belongs to another user")

	ErrInternal = errors.New("internal error")
)
