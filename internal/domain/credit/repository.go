package credit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const queryTimeout = 3 * time.Second

type Repository interface {
	Apply(ctx context.Context, userID string, amount int, reason Reason, txRef *string) error
	ApplyTx(ctx context.Context, tx *sqlx.Tx, userID string, amount int, reason Reason, txRef *string) error
	GetBalance(ctx context.Context, userID string) (int, error)
	ListHistory(ctx context.Context, userID string, pagination Pagination) ([]Entry, error)
}

// LedgerRepository provides the credit balance and its append-only history.
// The history is the source of truth: sum(change_amount) == balance holds
// because both writes always share one transaction.
type LedgerRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Apply posts one signed ledger entry and moves the balance in the same
// transaction. When txRef is set it acts as an idempotency key: a second call
// with the same txRef is a no-op success and the balance moves exactly once.
func (r *LedgerRepository) Apply(ctx context.Context, userID string, amount int, reason Reason, txRef *string) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx2, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	applied, err := r.applyTx(ctx2, tx, userID, amount, reason, txRef)
	if err != nil {
		return err
	}
	if !applied {
		return nil
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit tx", ErrInternal)
	}

	return nil
}

// ApplyTx posts a ledger entry within an external transaction.
// This method does NOT commit or rollback the transaction — the caller is responsible.
func (r *LedgerRepository) ApplyTx(ctx context.Context, tx *sqlx.Tx, userID string, amount int, reason Reason, txRef *string) error {
	_, err := r.applyTx(ctx, tx, userID, amount, reason, txRef)
	return err
}

// applyTx reports applied=false when txRef was already recorded, meaning the
// entry (and its balance move) exists from an earlier call.
func (r *LedgerRepository) applyTx(ctx context.Context, tx *sqlx.Tx, userID string, amount int, reason Reason, txRef *string) (bool, error) {
	if amount == 0 {
		return false, ErrInvalidAmount
	}
	if !reason.Valid() {
		return false, ErrInvalidReason
	}

	// The history insert goes first: ON CONFLICT on the idempotency key makes
	// insert-or-skip a single atomic statement, so concurrent duplicates never
	// both reach the balance update.
	result, err := tx.ExecContext(ctx, `
		INSERT INTO credit_history (id, user_id, change_amount, reason, transaction_id)
		VALUES (gen_random_uuid(), $1, $2, $3, $4)
		ON CONFLICT (transaction_id) DO NOTHING
	`, userID, amount, string(reason), txRef)
	if err != nil {
		return false, fmt.Errorf("%w: insert history", ErrInternal)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: rows affected", ErrInternal)
	}
	if rows == 0 {
		return false, nil
	}

	if amount > 0 {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO credits (user_id, balance, last_updated)
			VALUES ($1, $2, now())
			ON CONFLICT (user_id) DO UPDATE
			SET balance = credits.balance + EXCLUDED.balance, last_updated = now()
		`, userID, amount)
		if err != nil {
			return false, fmt.Errorf("%w: upsert balance", ErrInternal)
		}
		return true, nil
	}

	// Debit: the guard keeps the balance non-negative. A missing balance row
	// means balance zero, which also cannot cover a debit.
	result, err = tx.ExecContext(ctx, `
		UPDATE credits
		SET balance = balance + $2, last_updated = now()
		WHERE user_id = $1 AND balance + $2 >= 0
	`, userID, amount)
	if err != nil {
		return false, fmt.Errorf("%w: update balance", ErrInternal)
	}

	rows, err = result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: rows affected", ErrInternal)
	}
	if rows == 0 {
		return false, ErrInsufficientCredits
	}

	return true, nil
}

func (r *LedgerRepository) GetBalance(ctx context.Context, userID string) (int, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var balance int
	err := r.db.GetContext(ctx2, &balance, `SELECT balance FROM credits WHERE user_id = $1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: get balance", ErrInternal)
	}

	return balance, nil
}

func (r *LedgerRepository) ListHistory(ctx context.Context, userID string, pagination Pagination) ([]Entry, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	limit := pagination.Limit
	if limit <= 0 {
		limit = 20
	}

	entries := make([]Entry, 0)
	err := r.db.SelectContext(ctx2, &entries, `
		SELECT id, user_id, change_amount, reason, transaction_id, created_at
		FROM credit_history
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, pagination.Offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list history", ErrInternal)
	}

	return entries, nil
}
