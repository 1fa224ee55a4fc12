package user

import "errors"

var (
	// ErrNotFound is returned when the user doesn't exist
	ErrNotFound = errors.New("user not found")

	// ErrDuplicateEmail is returned when another account already owns the email
	ErrDuplicateEmail = errors.New("email already in use")

	ErrInternal = errors.New("internal error")
)
