package cvfile

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

type Repository interface {
	Create(ctx context.Context, f *File) error
	GetByID(ctx context.Context, id string) (*File, error)
	ListByUser(ctx context.Context, userID string) ([]FileWithEvaluations, error)
	Delete(ctx context.Context, id string) error
}

// FileRepository stores uploaded résumé metadata.
type FileRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *FileRepository {
	return &FileRepository{db: db}
}

func (r *FileRepository) Create(ctx context.Context, f *File) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	row := r.db.QueryRowxContext(ctx2, `
		INSERT INTO files (id, user_id, file_url, storage_key, original_name)
		VALUES (gen_random_uuid(), $1, $2, $3, $4)
		RETURNING id, uploaded_at
	`, f.UserID, f.FileURL, f.StorageKey, f.OriginalName)

	if err := row.Scan(&f.ID, &f.UploadedAt); err != nil {
		return fmt.Errorf("%w: insert file", ErrInternal)
	}

	return nil
}

func (r *FileRepository) GetByID(ctx context.Context, id string) (*File, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var f File
	err := r.db.GetContext(ctx2, &f, `
		SELECT id, user_id, file_url, storage_key, original_name, uploaded_at
		FROM files
		WHERE id = $1
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: get file", ErrInternal)
	}

	return &f, nil
}

// ListByUser returns the user's files newest first, each with its stored
// evaluation aspects.
func (r *FileRepository) ListByUser(ctx context.Context, userID string) ([]FileWithEvaluations, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	files := make([]File, 0)
	err := r.db.SelectContext(ctx2, &files, `
		SELECT id, user_id, file_url, storage_key, original_name, uploaded_at
		FROM files
		WHERE user_id = $1
		ORDER BY uploaded_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: list files", ErrInternal)
	}

	out := make([]FileWithEvaluations, len(files))
	ids := make([]string, len(files))
	index := make(map[string]int, len(files))
	for i, f := range files {
		out[i] = FileWithEvaluations{File: f, Evaluations: make([]AspectFeedback, 0)}
		ids[i] = f.ID
		index[f.ID] = i
	}
	if len(ids) == 0 {
		return out, nil
	}

	rows := make([]struct {
		FileID string `db:"file_id"`
		AspectFeedback
	}, 0)
	err = r.db.SelectContext(ctx2, &rows, `
		SELECT file_id, aspect, score, feedback
		FROM cv_evaluations
		WHERE file_id = ANY($1)
		ORDER BY created_at
	`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("%w: list evaluations", ErrInternal)
	}

	for _, row := range rows {
		i := index[row.FileID]
		out[i].Evaluations = append(out[i].Evaluations, row.AspectFeedback)
	}

	return out, nil
}

func (r *FileRepository) Delete(ctx context.Context, id string) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx2, `DELETE FROM files WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%w: delete file", ErrInternal)
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
