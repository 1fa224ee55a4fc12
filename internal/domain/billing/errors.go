package billing

import "errors"

var (
	// ErrNotFound is returned when no transaction matches the given reference
	ErrNotFound = errors.New("transaction not found")

	// ErrDuplicateExternalID is returned when a transaction with the same
	// external reference already exists
	ErrDuplicateExternalID = errors.New("transaction with this external id already exists")

	// ErrInvalidStatus is returned for an unknown lifecycle state
	ErrInvalidStatus = errors.New("invalid transaction status")

	// ErrInvalidCredits is returned when the requested credit count is out of range
	ErrInvalidCredits = errors.New("invalid credits amount")

	ErrInternal = errors.New("internal error")
)
