package credit

import "time"

// Reason classifies a ledger entry.
type Reason string

const (
	ReasonPurchase         Reason = "purchase"
	ReasonFileSubmission   Reason = "file_submission"
	ReasonGift             Reason = "gift"
	ReasonAdminAdjustment  Reason = "admin_adjustment"
	ReasonSignupBonus      Reason = "signup_bonus"
	ReasonReferral         Reason = "referral"
	ReasonCouponRedemption Reason = "coupon_redemption"
)

// Valid reports whether the reason is one of the known ledger reasons.
func (r Reason) Valid() bool {
	switch r {
	case ReasonPurchase, ReasonFileSubmission, ReasonGift, ReasonAdminAdjustment,
		ReasonSignupBonus, ReasonReferral, ReasonCouponRedemption:
		return true
	}
	return false
}

// Entry is a credit_history ledger row.
type Entry struct {
	ID            string    `db:"id"`
	UserID        string    `db:"user_id"`
	ChangeAmount  int       `db:"change_amount"`
	Reason        string    `db:"reason"`
	TransactionID *string   `db:"transaction_id"`
	CreatedAt     time.Time `db:"created_at"`
}

// Pagination controls simple list pagination.
type Pagination struct {
	Limit  int
	Offset int
}
