package credit

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Service exposes ledger operations to other domains and to the HTTP layer.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) GetBalance(ctx context.Context, userID string) (int, error) {
	return s.repo.GetBalance(ctx, userID)
}

func (s *Service) ListHistory(ctx context.Context, userID string, limit, offset int) ([]Entry, error) {
	return s.repo.ListHistory(ctx, userID, Pagination{Limit: limit, Offset: offset})
}

// Apply posts a signed ledger entry. txRef, when set, is an idempotency key:
// retries with the same key leave the balance unchanged.
func (s *Service) Apply(ctx context.Context, userID string, amount int, reason Reason, txRef *string) error {
	if err := s.repo.Apply(ctx, userID, amount, reason, txRef); err != nil {
		return err
	}

	entry := log.Info().Str("user_id", userID).Int("amount", amount).Str("reason", string(reason))
	if txRef != nil {
		entry = entry.Str("transaction_id", *txRef)
	}
	entry.Msg("ledger entry applied")
	return nil
}
