package credit

import "errors"

var (
	// ErrInsufficientCredits is returned when a debit would take the balance below zero
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrInvalidAmount is returned when amount is 0
	ErrInvalidAmount = errors.New("invalid amount: must be non-zero")

	// ErrInvalidReason is returned for an unknown ledger reason
	ErrInvalidReason = errors.New("invalid ledger reason")

	ErrInternal = errors.New("internal error")
)
