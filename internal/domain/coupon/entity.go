package coupon

import "time"

// Coupon is a redeemable credit grant.
type Coupon struct {
	ID             string     `db:"id"`
	Code           string     `db:"code"`
	CreditAmount   int        `db:"credit_amount"`
	ExpirationDate *time.Time `db:"expiration_date"`
	UsageLimit     int        `db:"usage_limit"`
	CreatedAt      time.Time  `db:"created_at"`
}

// Redemption records one use of a coupon.
type Redemption struct {
	ID         string    `db:"id"`
	UserID     string    `db:"user_id"`
	CouponID   string    `db:"coupon_id"`
	RedeemedAt time.Time `db:"redeemed_at"`
}

// Result is the user-facing outcome of a redemption attempt. Message carries
// the exact wording the frontend displays.
type Result struct {
	Success      bool
	Message      string
	CreditsAdded int
}

const (
	MsgInvalidCode  = "Invalid coupon code."
	MsgLimitReached = "Coupon limit reached."
	MsgSuccess      = "Coupon redeemed successfully!"
)
