package user

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
	GetByID(ctx context.Context, id string) (*User, error)
	Ensure(ctx context.Context, u *User) error
	UpdateProfile(ctx context.Context, id, name string) error
}

type UserRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*User, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var u User
	err := r.db.GetContext(ctx2, &u, `
		SELECT id, email, name, avatar_url, created_at, updated_at
		FROM users
		WHERE id = $1
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: get user", ErrInternal)
	}

	return &u, nil
}

// Ensure upserts the account row for a token identity. First request after
// an OAuth signup lands here before any other write references the user.
// The conflict target is the id; a different identity claiming an existing
// email trips the email unique constraint instead.
func (r *UserRepository) Ensure(ctx context.Context, u *User) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx2, `
		INSERT INTO users (id, email, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email, updated_at = now()
	`, u.ID, u.Email, u.Name)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == sqlStateUniqueViolation {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("%w: ensure user", ErrInternal)
	}

	return nil
}

func (r *UserRepository) UpdateProfile(ctx context.Context, id, name string) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx2, `
		UPDATE users SET name = $2, updated_at = now() WHERE id = $1
	`, id, name)
	if err != nil {
		return fmt.Errorf("%w: update profile", ErrInternal)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected", ErrInternal)
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}
