package evaluation

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const queryTimeout = 3 * time.Second

type Repository interface {
	ReplaceForFile(ctx context.Context, fileID string, evals []Evaluation) error
	ListByFile(ctx context.Context, fileID string) ([]Evaluation, error)
	DeleteByFile(ctx context.Context, fileID string) error
}

// EvaluationRepository stores per-aspect results keyed by file.
type EvaluationRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *EvaluationRepository {
	return &EvaluationRepository{db: db}
}

// ReplaceForFile swaps the file's stored results in one transaction, so
// readers never observe a partial aspect set.
func (r *EvaluationRepository) ReplaceForFile(ctx context.Context, fileID string, evals []Evaluation) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx2, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx2, `DELETE FROM cv_evaluations WHERE file_id = $1`, fileID); err != nil {
		return fmt.Errorf("%w: delete stale results", ErrInternal)
	}

	for i := range evals {
		evals[i].FileID = fileID
		row := tx.QueryRowxContext(ctx2, `
			INSERT INTO cv_evaluations (id, file_id, aspect, score, feedback)
			VALUES (gen_random_uuid(), $1, $2, $3, $4)
			RETURNING id, created_at
		`, fileID, evals[i].Aspect, evals[i].Score, evals[i].Feedback)
		if err := row.Scan(&evals[i].ID, &evals[i].CreatedAt); err != nil {
			return fmt.Errorf("%w: insert result", ErrInternal)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit tx", ErrInternal)
	}

	return nil
}

func (r *EvaluationRepository) ListByFile(ctx context.Context, fileID string) ([]Evaluation, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	evals := make([]Evaluation, 0)
	err := r.db.SelectContext(ctx2, &evals, `
		SELECT id, file_id, aspect, score, feedback, created_at
		FROM cv_evaluations
		WHERE file_id = $1
		ORDER BY created_at, aspect
	`, fileID)
	if err != nil {
		return nil, fmt.Errorf("%w: list results", ErrInternal)
	}

	return evals, nil
}

func (r *EvaluationRepository) DeleteByFile(ctx context.Context, fileID string) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx2, `DELETE FROM cv_evaluations WHERE file_id = $1`, fileID); err != nil {
		return fmt.Errorf("%w: delete results", ErrInternal)
	}

	return nil
}
