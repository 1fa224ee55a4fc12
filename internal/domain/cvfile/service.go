package cvfile

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/cvlift/cvlift-api/internal/pkg/imaging"
	"github.com/cvlift/cvlift-api/internal/pkg/storage"
)

type Service struct {
	repo      Repository
	store     storage.Storage
	processor *imaging.Processor
}

func NewService(repo Repository, store storage.Storage, processor *imaging.Processor) *Service {
	return &Service{repo: repo, store: store, processor: processor}
}

// Upload validates a résumé, normalizes image scans, writes the blob and
// records the file row. The blob is removed again if the row insert fails.
func (s *Service) Upload(ctx context.Context, userID, originalName string, reader io.Reader) (*File, error) {
	data, mimeType, err := storage.ValidateCV(reader)
	if err != nil {
		return nil, err
	}

	if storage.IsImage(mimeType) {
		data, mimeType, err = s.processor.Normalize(data)
		if err != nil {
			return nil, fmt.Errorf("normalize image: %w", err)
		}
	}

	key := fmt.Sprintf("cv/%s/%s%s", userID, uuid.NewString(), storage.ExtensionForMime(mimeType))
	if err := s.store.Save(ctx, key, bytes.NewReader(data), mimeType); err != nil {
		return nil, fmt.Errorf("store blob: %w", err)
	}

	f := &File{
		UserID:       userID,
		FileURL:      s.store.GetURL(key),
		StorageKey:   key,
		OriginalName: originalName,
	}
	if err := s.repo.Create(ctx, f); err != nil {
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			log.Warn().Err(delErr).Str("key", key).Msg("orphaned blob after failed insert")
		}
		return nil, err
	}

	log.Info().
		Str("user_id", userID).
		Str("file_id", f.ID).
		Str("key", key).
		Str("mime_type", mimeType).
		Msg("cv uploaded")

	return f, nil
}

// GetOwned fetches a file and checks it belongs to userID.
func (s *Service) GetOwned(ctx context.Context, userID, fileID string) (*File, error) {
	f, err := s.repo.GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if f.UserID != userID {
		return nil, ErrNotOwner
	}
	return f, nil
}

// Download reads the file's blob content.
func (s *Service) Download(ctx context.Context, f *File) ([]byte, error) {
	rc, err := s.store.Get(ctx, f.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("fetch blob: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return data, nil
}

func (s *Service) List(ctx context.Context, userID string) ([]FileWithEvaluations, error) {
	return s.repo.ListByUser(ctx, userID)
}

// Delete removes the row and then the blob. The blob delete is best effort:
// the row is the source of truth and an orphaned object is only storage cost.
func (s *Service) Delete(ctx context.Context, userID, fileID string) error {
	f, err := s.GetOwned(ctx, userID, fileID)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, fileID); err != nil {
		return err
	}

	if err := s.store.Delete(ctx, f.StorageKey); err != nil {
		log.Warn().Err(err).Str("key", f.StorageKey).Msg("blob delete failed")
	}

	log.Info().Str("user_id", userID).Str("file_id", fileID).Msg("cv deleted")
	return nil
}
