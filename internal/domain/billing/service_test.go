package billing_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/cvlift/cvlift-api/internal/domain/billing"
	"github.com/cvlift/cvlift-api/internal/domain/credit"
	"github.com/cvlift/cvlift-api/internal/pkg/mercadopago"
)

type fakeRepo struct {
	mu         sync.Mutex
	byExternal map[string]*billing.Transaction
	all        []*billing.Transaction
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byExternal: make(map[string]*billing.Transaction)}
}

func (f *fakeRepo) Create(_ context.Context, t *billing.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if t.Status == "" {
		t.Status = string(billing.StatusPending)
	}
	if t.ExternalID != nil {
		if _, ok := f.byExternal[*t.ExternalID]; ok {
			return billing.ErrDuplicateExternalID
		}
	}
	t.ID = fmt.Sprintf("tx-%d", len(f.all)+1)
	f.all = append(f.all, t)
	if t.ExternalID != nil {
		f.byExternal[*t.ExternalID] = t
	}
	return nil
}

func (f *fakeRepo) CreateTx(ctx context.Context, _ *sqlx.Tx, t *billing.Transaction) error {
	return f.Create(ctx, t)
}

func (f *fakeRepo) SetStatus(_ context.Context, externalID string, to billing.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	t, ok := f.byExternal[externalID]
	if !ok {
		return billing.ErrNotFound
	}
	current := billing.Status(t.Status)
	if current == to {
		return nil
	}
	if !billing.CanTransition(current, to) {
		return &billing.TransitionError{From: current, To: to}
	}
	t.Status = string(to)
	return nil
}

func (f *fakeRepo) SetStatusTx(ctx context.Context, _ *sqlx.Tx, externalID string, to billing.Status) error {
	return f.SetStatus(ctx, externalID, to)
}

func (f *fakeRepo) GetByExternalID(_ context.Context, externalID string) (*billing.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	t, ok := f.byExternal[externalID]
	if !ok {
		return nil, billing.ErrNotFound
	}
	return t, nil
}

func (f *fakeRepo) ListByUser(_ context.Context, userID string, _, _ int) ([]billing.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]billing.Transaction, 0)
	for _, t := range f.all {
		if t.UserID == userID {
			out = append(out, *t)
		}
	}
	return out, nil
}

// fakeLedger mirrors the ledger's idempotency-key contract.
type fakeLedger struct {
	mu       sync.Mutex
	applied  map[string]bool
	balances map[string]int
	calls    int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{applied: make(map[string]bool), balances: make(map[string]int)}
}

func (f *fakeLedger) Apply(_ context.Context, userID string, amount int, _ credit.Reason, txRef *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if txRef != nil {
		if f.applied[*txRef] {
			return nil
		}
		f.applied[*txRef] = true
	}
	if amount < 0 && f.balances[userID]+amount < 0 {
		return credit.ErrInsufficientCredits
	}
	f.balances[userID] += amount
	return nil
}

type fakeGateway struct {
	preference *mercadopago.Preference
	prefErr    error
}

func (f *fakeGateway) GetPayment(context.Context, string) (*mercadopago.Payment, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeGateway) GetMerchantOrder(context.Context, int64) (*mercadopago.MerchantOrder, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeGateway) CreatePreference(context.Context, mercadopago.PreferenceRequest) (*mercadopago.Preference, error) {
	return f.preference, f.prefErr
}

func testConfig() billing.Config {
	return billing.Config{
		PricePerCredit: 500,
		Currency:       "ARS",
		FrontendURL:    "https://front.test",
		BackendURL:     "https://api.test",
	}
}

func strPtr(s string) *string { return &s }

func TestCreateDuplicateExternalID(t *testing.T) {
	repo := newFakeRepo()
	svc := billing.NewService(repo, newFakeLedger(), &fakeGateway{}, testConfig())

	first := &billing.Transaction{UserID: "user-1", Amount: 500, CreditsPurchased: 1, ExternalID: strPtr("pref-1")}
	if err := svc.Create(context.Background(), first); err != nil {
		t.Fatalf("first create failed: %v", err)
	}

	second := &billing.Transaction{UserID: "user-2", Amount: 1000, CreditsPurchased: 2, ExternalID: strPtr("pref-1")}
	if err := svc.Create(context.Background(), second); !errors.Is(err, billing.ErrDuplicateExternalID) {
		t.Fatalf("expected ErrDuplicateExternalID, got %v", err)
	}

	kept, err := repo.GetByExternalID(context.Background(), "pref-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if kept.UserID != "user-1" || kept.CreditsPurchased != 1 {
		t.Fatalf("duplicate create mutated the original row: %+v", kept)
	}
}

func TestTerminalStatusImmutable(t *testing.T) {
	repo := newFakeRepo()
	svc := billing.NewService(repo, newFakeLedger(), &fakeGateway{}, testConfig())

	tx := &billing.Transaction{UserID: "user-1", ExternalID: strPtr("pref-terminal")}
	if err := svc.Create(context.Background(), tx); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := svc.SetStatus(context.Background(), "pref-terminal", billing.StatusFailed); err != nil {
		t.Fatalf("fail transition rejected: %v", err)
	}

	err := svc.SetStatus(context.Background(), "pref-terminal", billing.StatusApproved)
	var transitionErr *billing.TransitionError
	if !errors.As(err, &transitionErr) {
		t.Fatalf("expected TransitionError, got %v", err)
	}
	if transitionErr.From != billing.StatusFailed || transitionErr.To != billing.StatusApproved {
		t.Fatalf("unexpected transition error: %+v", transitionErr)
	}

	// same-state write stays a silent no-op
	if err := svc.SetStatus(context.Background(), "pref-terminal", billing.StatusFailed); err != nil {
		t.Fatalf("same-state write should be a no-op, got %v", err)
	}
}

func TestSetStatusUnknownReference(t *testing.T) {
	svc := billing.NewService(newFakeRepo(), newFakeLedger(), &fakeGateway{}, testConfig())

	if err := svc.SetStatus(context.Background(), "missing", billing.StatusApproved); !errors.Is(err, billing.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCompleteWithCreditIdempotent(t *testing.T) {
	repo := newFakeRepo()
	ledger := newFakeLedger()
	svc := billing.NewService(repo, ledger, &fakeGateway{}, testConfig())

	tx := &billing.Transaction{UserID: "user-1", CreditsPurchased: 5, ExternalID: strPtr("pref-complete")}
	if err := svc.Create(context.Background(), tx); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := svc.CompleteWithCredit(context.Background(), "user-1", 5, "pref-complete"); err != nil {
			t.Fatalf("complete %d failed: %v", i, err)
		}
	}

	if ledger.balances["user-1"] != 5 {
		t.Fatalf("expected 5 credits granted once, got %d", ledger.balances["user-1"])
	}
	got, _ := repo.GetByExternalID(context.Background(), "pref-complete")
	if got.Status != string(billing.StatusCompleted) {
		t.Fatalf("expected completed, got %s", got.Status)
	}
}

func TestCompleteWithCreditRejectsNonPositive(t *testing.T) {
	svc := billing.NewService(newFakeRepo(), newFakeLedger(), &fakeGateway{}, testConfig())

	if err := svc.CompleteWithCredit(context.Background(), "user-1", 0, "pref-x"); !errors.Is(err, billing.ErrInvalidCredits) {
		t.Fatalf("expected ErrInvalidCredits, got %v", err)
	}
}

func TestCreateCheckout(t *testing.T) {
	repo := newFakeRepo()
	gw := &fakeGateway{preference: &mercadopago.Preference{ID: "pref-new", InitPoint: "https://mp.test/init"}}
	svc := billing.NewService(repo, newFakeLedger(), gw, testConfig())

	resp, err := svc.CreateCheckout(context.Background(), "user-1", 4)
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if resp.CheckoutURL != "https://mp.test/init" {
		t.Fatalf("unexpected checkout url: %s", resp.CheckoutURL)
	}
	if resp.Amount != 2000 {
		t.Fatalf("expected amount 2000, got %f", resp.Amount)
	}

	tx, err := repo.GetByExternalID(context.Background(), "pref-new")
	if err != nil {
		t.Fatalf("pending transaction not recorded: %v", err)
	}
	if tx.Status != string(billing.StatusPending) || tx.CreditsPurchased != 4 {
		t.Fatalf("unexpected pending transaction: %+v", tx)
	}
}

func TestCreateCheckoutGatewayFailure(t *testing.T) {
	repo := newFakeRepo()
	gw := &fakeGateway{prefErr: errors.New("gateway down")}
	svc := billing.NewService(repo, newFakeLedger(), gw, testConfig())

	if _, err := svc.CreateCheckout(context.Background(), "user-1", 2); err == nil {
		t.Fatal("expected error when gateway fails")
	}
	if len(repo.all) != 0 {
		t.Fatalf("no transaction should be recorded on gateway failure, got %d", len(repo.all))
	}
}
