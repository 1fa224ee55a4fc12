package billing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/cvlift/cvlift-api/internal/domain/credit"
	"github.com/cvlift/cvlift-api/internal/pkg/mercadopago"
)

// Ledger is the slice of the credit service billing needs.
type Ledger interface {
	Apply(ctx context.Context, userID string, amount int, reason credit.Reason, txRef *string) error
}

// Gateway is the slice of the payment provider client billing needs.
type Gateway interface {
	GetPayment(ctx context.Context, paymentID string) (*mercadopago.Payment, error)
	GetMerchantOrder(ctx context.Context, orderID int64) (*mercadopago.MerchantOrder, error)
	CreatePreference(ctx context.Context, req mercadopago.PreferenceRequest) (*mercadopago.Preference, error)
}

// Config carries the pricing and URL settings checkout needs.
type Config struct {
	PricePerCredit float64
	Currency       string
	FrontendURL    string
	BackendURL     string
}

// NotificationResult summarizes what a webhook delivery did.
type NotificationResult struct {
	Ignored      bool
	Status       Status
	CreditsAdded int
}

type Service struct {
	repo    Repository
	ledger  Ledger
	gateway Gateway
	cfg     Config
}

func NewService(repo Repository, ledger Ledger, gateway Gateway, cfg Config) *Service {
	return &Service{repo: repo, ledger: ledger, gateway: gateway, cfg: cfg}
}

func (s *Service) Create(ctx context.Context, t *Transaction) error {
	return s.repo.Create(ctx, t)
}

func (s *Service) SetStatus(ctx context.Context, externalID string, to Status) error {
	return s.repo.SetStatus(ctx, externalID, to)
}

func (s *Service) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Transaction, error) {
	return s.repo.ListByUser(ctx, userID, limit, offset)
}

// CompleteWithCredit grants the purchased credits and closes the transaction.
// The ledger call uses externalID as its idempotency key, so a replay grants
// nothing and the follow-up status write is a same-state no-op.
func (s *Service) CompleteWithCredit(ctx context.Context, userID string, credits int, externalID string) error {
	if credits <= 0 {
		return ErrInvalidCredits
	}

	if err := s.ledger.Apply(ctx, userID, credits, credit.ReasonPurchase, &externalID); err != nil {
		return fmt.Errorf("grant purchased credits: %w", err)
	}

	// Credits are granted at this point; the ledger key makes replays no-ops.
	// A settled-status conflict is logged and absorbed so the gateway does
	// not redeliver forever, any other failure surfaces for redelivery.
	if err := s.setStatusTolerant(ctx, externalID, StatusCompleted); err != nil {
		return fmt.Errorf("mark transaction completed: %w", err)
	}

	log.Info().
		Str("user_id", userID).
		Str("external_id", externalID).
		Int("credits", credits).
		Msg("purchase completed")
	return nil
}

// CreateCheckout starts a hosted checkout for a credit pack and records the
// pending transaction keyed by the gateway's preference id.
func (s *Service) CreateCheckout(ctx context.Context, userID string, credits int) (*CheckoutResponse, error) {
	if credits <= 0 {
		return nil, ErrInvalidCredits
	}

	amount := float64(credits) * s.cfg.PricePerCredit

	pref, err := s.gateway.CreatePreference(ctx, mercadopago.PreferenceRequest{
		Items: []mercadopago.PreferenceItem{{
			ID:         fmt.Sprintf("CREDITS_%d", credits),
			Title:      fmt.Sprintf("%d CV evaluation credits", credits),
			Quantity:   credits,
			UnitPrice:  s.cfg.PricePerCredit,
			CurrencyID: s.cfg.Currency,
		}},
		ExternalReference: userID,
		BackURLs: mercadopago.BackURLs{
			Success: s.cfg.FrontendURL + "/payment/success",
			Failure: s.cfg.FrontendURL + "/payment/failure",
			Pending: s.cfg.FrontendURL + "/payment/pending",
		},
		AutoReturn:      "approved",
		NotificationURL: s.cfg.BackendURL + "/api/payments",
	})
	if err != nil {
		return nil, fmt.Errorf("create checkout preference: %w", err)
	}

	t := &Transaction{
		UserID:           userID,
		Amount:           amount,
		CreditsPurchased: credits,
		Status:           string(StatusPending),
		Provider:         "mercadopago",
		ExternalID:       &pref.ID,
		Currency:         s.cfg.Currency,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("record pending transaction: %w", err)
	}

	log.Info().
		Str("user_id", userID).
		Str("transaction_id", t.ID).
		Str("preference_id", pref.ID).
		Int("credits", credits).
		Msg("checkout started")

	return &CheckoutResponse{
		TransactionID: t.ID,
		CheckoutURL:   pref.InitPoint,
		Amount:        amount,
		Currency:      s.cfg.Currency,
	}, nil
}

// ProcessNotification resolves a gateway notification to a transaction
// outcome. Deliveries the service cannot act on (foreign topics, unknown
// references, replays against a settled transaction) come back Ignored
// rather than as errors: the webhook acknowledges them and the gateway
// stops retrying.
func (s *Service) ProcessNotification(ctx context.Context, topic, resource string) (*NotificationResult, error) {
	if topic != "payment" || strings.TrimSpace(resource) == "" {
		return &NotificationResult{Ignored: true}, nil
	}

	paymentID := lastPathSegment(resource)

	payment, err := s.gateway.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("fetch payment %s: %w", paymentID, err)
	}
	if payment.Order.ID == 0 {
		log.Warn().Str("payment_id", paymentID).Msg("payment has no merchant order, skipping")
		return &NotificationResult{Ignored: true}, nil
	}

	order, err := s.gateway.GetMerchantOrder(ctx, payment.Order.ID)
	if err != nil {
		return nil, fmt.Errorf("fetch merchant order %d: %w", payment.Order.ID, err)
	}

	userID := order.ExternalReference
	externalID := order.PreferenceID
	if userID == "" || externalID == "" {
		log.Warn().Int64("order_id", order.ID).Msg("merchant order lacks references, skipping")
		return &NotificationResult{Ignored: true}, nil
	}

	credits := 0
	if s.cfg.PricePerCredit > 0 {
		credits = int(math.Floor(order.TotalAmount / s.cfg.PricePerCredit))
	}

	if len(order.Payments) == 0 {
		if err := s.setStatusTolerant(ctx, externalID, StatusPending); err != nil {
			return nil, err
		}
		return &NotificationResult{Status: StatusPending}, nil
	}

	approved := false
	for _, p := range order.Payments {
		if p.Status == "approved" {
			approved = true
			break
		}
	}

	if !approved {
		if err := s.setStatusTolerant(ctx, externalID, StatusFailed); err != nil {
			return nil, err
		}
		return &NotificationResult{Status: StatusFailed}, nil
	}

	if err := s.setStatusTolerant(ctx, externalID, StatusApproved); err != nil {
		return nil, err
	}
	if err := s.CompleteWithCredit(ctx, userID, credits, externalID); err != nil {
		return nil, err
	}

	return &NotificationResult{Status: StatusCompleted, CreditsAdded: credits}, nil
}

// setStatusTolerant absorbs the outcomes a redelivered notification
// produces: unknown reference and illegal transition both mean there is
// nothing left to do for this delivery.
func (s *Service) setStatusTolerant(ctx context.Context, externalID string, to Status) error {
	err := s.repo.SetStatus(ctx, externalID, to)
	if err == nil {
		return nil
	}

	var transitionErr *TransitionError
	switch {
	case errors.Is(err, ErrNotFound):
		log.Warn().Str("external_id", externalID).Str("status", string(to)).Msg("notification for unknown transaction")
		return nil
	case errors.As(err, &transitionErr):
		log.Info().
			Str("external_id", externalID).
			Str("from", string(transitionErr.From)).
			Str("to", string(transitionErr.To)).
			Msg("status already settled, skipping")
		return nil
	}
	return err
}

func lastPathSegment(resource string) string {
	resource = strings.TrimRight(resource, "/")
	if idx := strings.LastIndex(resource, "/"); idx != -1 {
		return resource[idx+1:]
	}
	return resource
}
