package coupon

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/cvlift/cvlift-api/internal/domain/billing"
	"github.com/cvlift/cvlift-api/internal/domain/credit"
)

// Transactions is the slice of the billing repository redemption needs.
// The Tx variants run inside the redemption's own transaction.
type Transactions interface {
	CreateTx(ctx context.Context, tx *sqlx.Tx, t *billing.Transaction) error
	SetStatusTx(ctx context.Context, tx *sqlx.Tx, externalID string, to billing.Status) error
}

// Ledger is the slice of the credit repository redemption needs.
type Ledger interface {
	ApplyTx(ctx context.Context, tx *sqlx.Tx, userID string, amount int, reason credit.Reason, txRef *string) error
}

type Service struct {
	repo         Repository
	transactions Transactions
	ledger       Ledger
	currency     string
}

func NewService(repo Repository, transactions Transactions, ledger Ledger, currency string) *Service {
	return &Service{repo: repo, transactions: transactions, ledger: ledger, currency: currency}
}

// Create registers a new coupon code.
func (s *Service) Create(ctx context.Context, c *Coupon) error {
	return s.repo.Create(ctx, c)
}

// Redeem grants a coupon's credits to the user. Invalid codes and exhausted
// limits are soft failures carried in the Result, not errors; an error means
// the attempt itself could not run.
//
// The usage limit caps how many times each user may redeem the code, so the
// counts filter on the caller. The cheap checks run first without a
// transaction. The mutation then re-checks the limit under a FOR UPDATE lock
// on the coupon row, so duplicate requests from one user racing for their
// last slot cannot both get it.
func (s *Service) Redeem(ctx context.Context, userID, code string) (*Result, error) {
	code = strings.TrimSpace(code)

	c, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return &Result{Message: MsgInvalidCode}, nil
		}
		return nil, err
	}

	count, err := s.repo.CountRedemptions(ctx, userID, c.ID)
	if err != nil {
		return nil, err
	}
	if count >= c.UsageLimit {
		return &Result{Message: MsgLimitReached}, nil
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	locked, err := s.repo.LockCouponTx(ctx, tx, c.ID)
	if err != nil {
		return nil, err
	}

	count, err = s.repo.CountRedemptionsTx(ctx, tx, userID, locked.ID)
	if err != nil {
		return nil, err
	}
	if count >= locked.UsageLimit {
		return &Result{Message: MsgLimitReached}, nil
	}

	if err := s.repo.InsertRedemptionTx(ctx, tx, userID, locked.ID); err != nil {
		return nil, err
	}

	externalID := redemptionExternalID(userID)

	if err := s.transactions.CreateTx(ctx, tx, &billing.Transaction{
		UserID:           userID,
		Amount:           0,
		CreditsPurchased: locked.CreditAmount,
		Status:           string(billing.StatusPending),
		Provider:         "coupon",
		ExternalID:       &externalID,
		Currency:         s.currency,
	}); err != nil {
		return nil, fmt.Errorf("record coupon transaction: %w", err)
	}

	if err := s.ledger.ApplyTx(ctx, tx, userID, locked.CreditAmount, credit.ReasonCouponRedemption, &externalID); err != nil {
		return nil, fmt.Errorf("grant coupon credits: %w", err)
	}

	if err := s.transactions.SetStatusTx(ctx, tx, externalID, billing.StatusCompleted); err != nil {
		return nil, fmt.Errorf("complete coupon transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit redemption", ErrInternal)
	}

	log.Info().
		Str("user_id", userID).
		Str("coupon_code", locked.Code).
		Int("credits", locked.CreditAmount).
		Msg("coupon redeemed")

	return &Result{Success: true, Message: MsgSuccess, CreditsAdded: locked.CreditAmount}, nil
}

// redemptionExternalID builds the ledger idempotency key for a redemption.
// The random suffix keeps two same-millisecond redemptions by one user
// distinct; the key is minted once inside the transaction, so nothing ever
// replays it.
func redemptionExternalID(userID string) string {
	return fmt.Sprintf("COUPON_%s_%d_%s", userID, time.Now().UnixMilli(), uuid.NewString())
}
