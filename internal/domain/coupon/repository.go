package coupon

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const queryTimeout = 3 * time.Second

const sqlStateUniqueViolation = "23505"

type Repository interface {
	Create(ctx context.Context, c *Coupon) error
	GetByCode(ctx context.Context, code string) (*Coupon, error)
	CountRedemptions(ctx context.Context, userID, couponID string) (int, error)
	BeginTx(ctx context.Context) (*sqlx.Tx, error)
	LockCouponTx(ctx context.Context, tx *sqlx.Tx, couponID string) (*Coupon, error)
	CountRedemptionsTx(ctx context.Context, tx *sqlx.Tx, userID, couponID string) (int, error)
	InsertRedemptionTx(ctx context.Context, tx *sqlx.Tx, userID, couponID string) error
}

// CouponRepository stores coupons and their redemptions.
type CouponRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *CouponRepository {
	return &CouponRepository{db: db}
}

func (r *CouponRepository) Create(ctx context.Context, c *Coupon) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if c.UsageLimit <= 0 {
		c.UsageLimit = 1
	}

	row := r.db.QueryRowxContext(ctx2, `
		INSERT INTO coupons (id, code, credit_amount, expiration_date, usage_limit)
		VALUES (gen_random_uuid(), $1, $2, $3, $4)
		RETURNING id, created_at
	`, c.Code, c.CreditAmount, c.ExpirationDate, c.UsageLimit)

	if err := row.Scan(&c.ID, &c.CreatedAt); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == sqlStateUniqueViolation {
			return ErrDuplicateCode
		}
		return fmt.Errorf("%w: insert coupon", ErrInternal)
	}

	return nil
}

func (r *CouponRepository) GetByCode(ctx context.Context, code string) (*Coupon, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var c Coupon
	err := r.db.GetContext(ctx2, &c, `
		SELECT id, code, credit_amount, expiration_date, usage_limit, created_at
		FROM coupons
		WHERE code = $1
	`, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: get coupon", ErrInternal)
	}

	return &c, nil
}

// CountRedemptions counts how many times one user has redeemed a coupon.
// The usage limit is per user, not per coupon.
func (r *CouponRepository) CountRedemptions(ctx context.Context, userID, couponID string) (int, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var count int
	err := r.db.GetContext(ctx2, &count, `
		SELECT COUNT(*) FROM redeemed_coupons WHERE coupon_id = $1 AND user_id = $2
	`, couponID, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: count redemptions", ErrInternal)
	}

	return count, nil
}

func (r *CouponRepository) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: begin tx", ErrInternal)
	}
	return tx, nil
}

// LockCouponTx takes a FOR UPDATE lock on the coupon row so concurrent
// redemptions of the same code serialize on the usage-limit check.
func (r *CouponRepository) LockCouponTx(ctx context.Context, tx *sqlx.Tx, couponID string) (*Coupon, error) {
	var c Coupon
	err := tx.GetContext(ctx, &c, `
		SELECT id, code, credit_amount, expiration_date, usage_limit, created_at
		FROM coupons
		WHERE id = $1
		FOR UPDATE
	`, couponID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: lock coupon row", ErrInternal)
	}

	return &c, nil
}

func (r *CouponRepository) CountRedemptionsTx(ctx context.Context, tx *sqlx.Tx, userID, couponID string) (int, error) {
	var count int
	err := tx.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM redeemed_coupons WHERE coupon_id = $1 AND user_id = $2
	`, couponID, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: count redemptions", ErrInternal)
	}

	return count, nil
}

func (r *CouponRepository) InsertRedemptionTx(ctx context.Context, tx *sqlx.Tx, userID, couponID string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO redeemed_coupons (id, user_id, coupon_id)
		VALUES (gen_random_uuid(), $1, $2)
	`, userID, couponID)
	if err != nil {
		return fmt.Errorf("%w: insert redemption", ErrInternal)
	}

	return nil
}
