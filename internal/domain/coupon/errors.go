package coupon

import "errors"

var (
	// ErrNotFound is returned when no coupon matches the given code
	ErrNotFound = errors.New("coupon not found")

	// ErrDuplicateCode is returned when creating a coupon whose code exists
	ErrDuplicateCode = errors.New("coupon code already exists")

	ErrInternal = errors.New("internal error")
)
