package billing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

const queryTimeout = 3 * time.Second

const sqlStateUniqueViolation = "23505"

type Repository interface {
	Create(ctx context.Context, t *Transaction) error
	CreateTx(ctx context.Context, tx *sqlx.Tx, t *Transaction) error
	SetStatus(ctx context.Context, externalID string, to Status) error
	SetStatusTx(ctx context.Context, tx *sqlx.Tx, externalID string, to Status) error
	GetByExternalID(ctx context.Context, externalID string) (*Transaction, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Transaction, error)
}

// TransactionRepository stores purchase transactions and guards their
// status machine.
type TransactionRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, t *Transaction) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return r.create(ctx2, r.db, t)
}

// CreateTx inserts within an external transaction.
// This method does NOT commit or rollback the transaction — the caller is responsible.
func (r *TransactionRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, t *Transaction) error {
	return r.create(ctx, tx, t)
}

func (r *TransactionRepository) create(ctx context.Context, q sqlx.ExtContext, t *Transaction) error {
	if t.Status == "" {
		t.Status = string(StatusPending)
	}
	if !Status(t.Status).Valid() {
		return ErrInvalidStatus
	}

	row := q.QueryRowxContext(ctx, `
		INSERT INTO transactions (
			id, user_id, amount, credits_purchased, status, provider, external_id, currency
		)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`, t.UserID, t.Amount, t.CreditsPurchased, t.Status, t.Provider, t.ExternalID, t.Currency)

	if err := row.Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == sqlStateUniqueViolation {
			log.Warn().
				Str("user_id", t.UserID).
				Str("pg_constraint", pqErr.Constraint).
				Msg("transaction insert hit unique violation")
			return ErrDuplicateExternalID
		}
		return fmt.Errorf("%w: insert transaction", ErrInternal)
	}

	return nil
}

// SetStatus moves the transaction found by external reference to the given
// state. The row is locked for the duration of the check so concurrent
// webhook deliveries serialize; illegal transitions come back as
// *TransitionError and same-state writes are silent no-ops.
func (r *TransactionRepository) SetStatus(ctx context.Context, externalID string, to Status) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx2, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	if err := r.setStatusTx(ctx2, tx, externalID, to); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit tx", ErrInternal)
	}

	return nil
}

// SetStatusTx is SetStatus within an external transaction.
// This method does NOT commit or rollback the transaction — the caller is responsible.
func (r *TransactionRepository) SetStatusTx(ctx context.Context, tx *sqlx.Tx, externalID string, to Status) error {
	return r.setStatusTx(ctx, tx, externalID, to)
}

func (r *TransactionRepository) setStatusTx(ctx context.Context, tx *sqlx.Tx, externalID string, to Status) error {
	if !to.Valid() {
		return ErrInvalidStatus
	}

	var current Status
	err := tx.QueryRowContext(ctx, `
		SELECT status FROM transactions WHERE external_id = $1 FOR UPDATE
	`, externalID).Scan(&current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: lock transaction row", ErrInternal)
	}

	if current == to {
		return nil
	}
	if !CanTransition(current, to) {
		return &TransitionError{From: current, To: to}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE transactions SET status = $2, updated_at = now() WHERE external_id = $1
	`, externalID, string(to))
	if err != nil {
		return fmt.Errorf("%w: update status", ErrInternal)
	}

	return nil
}

func (r *TransactionRepository) GetByExternalID(ctx context.Context, externalID string) (*Transaction, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var t Transaction
	err := r.db.GetContext(ctx2, &t, `
		SELECT id, user_id, amount, credits_purchased, status, provider, external_id, currency, created_at, updated_at
		FROM transactions
		WHERE external_id = $1
	`, externalID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: get transaction", ErrInternal)
	}

	return &t, nil
}

func (r *TransactionRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Transaction, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 20
	}

	transactions := make([]Transaction, 0)
	err := r.db.SelectContext(ctx2, &transactions, `
		SELECT id, user_id, amount, credits_purchased, status, provider, external_id, currency, created_at, updated_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list transactions", ErrInternal)
	}

	return transactions, nil
}
