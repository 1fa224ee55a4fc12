package billing

import (
	"fmt"
	"time"
)

// Status is a purchase transaction's lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusApproved   Status = "approved"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCanceled   Status = "canceled"
)

// Valid reports whether the status is a known lifecycle state.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusApproved, StatusCompleted, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// Terminal reports whether the status accepts no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// transitions holds the forward edges of the status machine.
// Writing the current status again is always a no-op, handled separately.
var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusApproved, StatusCompleted, StatusFailed, StatusCanceled},
	StatusProcessing: {StatusApproved, StatusCompleted, StatusFailed},
	StatusApproved:   {StatusCompleted},
}

// CanTransition reports whether from may move to to. Same-state writes are
// allowed (no-op); terminal states absorb everything else.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionError reports a rejected status change.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid status transition: %s -> %s", e.From, e.To)
}

// Transaction is a credit purchase record.
type Transaction struct {
	ID               string    `db:"id" json:"id"`
	UserID           string    `db:"user_id" json:"user_id"`
	Amount           float64   `db:"amount" json:"amount"`
	CreditsPurchased int       `db:"credits_purchased" json:"credits_purchased"`
	Status           string    `db:"status" json:"status"`
	Provider         string    `db:"provider" json:"provider"`
	ExternalID       *string   `db:"external_id" json:"external_id,omitempty"`
	Currency         string    `db:"currency" json:"currency"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}
