package funding

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/bridge-pay/bridge_pay/internal/billing"
	"github.com/bridge-pay/bridge_pay/internal/events"
	"github.com/bridge-pay/bridge_pay/internal/fees"
	"github.com/bridge-pay/bridge_pay/internal/ledger"
	"github.com/bridge-pay/bridge_pay/internal/logging"
	"github.com/bridge-pay/bridge_pay/internal/provider"
	"github.com/bridge-pay/bridge_pay/internal/wallet"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type scriptedProvider struct {
	status string
	ok     bool
	calls  int
}

func (p *scriptedProvider) Call(_ context.Context, r provider.Request) (provider.Response, error) {
	p.calls++
	return provider.Response{OK: p.ok, Status: 200, Data: map[string]any{"transaction_id": "tx-" + r.IdempotencyKey, "status": p.status}}, nil
}

type fixture struct {
	store     ledger.Store
	wallets   *wallet.Service
	catalog   *fees.MemoryCatalog
	provider  *scriptedProvider
	publisher *events.Recorder
	svc       *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := ledger.NewInMemory()
	logger := logging.Discard()
	platform, err := wallet.BootstrapPlatform(context.Background(), store, "platform", []string{"KES"})
	if err != nil {
		t.Fatalf("bootstrap platform: %v", err)
	}
	f := &fixture{
		store:     store,
		wallets:   wallet.NewService(store, wallet.NewMemoryRepository(), logger),
		catalog:   fees.NewMemoryCatalog(),
		provider:  &scriptedProvider{ok: true, status: "pending"},
		publisher: &events.Recorder{},
	}
	engine := billing.NewEngine(fees.NewResolver(f.catalog), billing.NewMemoryRepository(), store, platform, nil, nil, logger)
	f.svc, err = NewService(Dependencies{
		Repo:      NewMemoryRepository(),
		Wallets:   f.wallets,
		Fees:      engine,
		Provider:  f.provider,
		Publisher: f.publisher,
		Logger:    logger,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return f
}

func (f *fixture) wallet(t *testing.T, user string) ledger.Wallet {
	t.Helper()
	w, err := f.wallets.GetOrCreate(context.Background(), user, "KES")
	if err != nil {
		t.Fatalf("wallet: %v", err)
	}
	return w
}

func (f *fixture) balance(t *testing.T, user string) decimal.Decimal {
	t.Helper()
	return f.wallet(t, user).Balance
}

func TestTopUpChargesCustomerFeeOnConfirmation(t *testing.T) {
	f := newFixture(t)
	f.catalog.PutItem(fees.CatalogItem{Code: "TOPUP_FEE", Kind: fees.KindPercentage, AppliesTo: fees.CategoryTopUp, Payer: fees.PayerCustomer, Rate: decimal.NewNullDecimal(d("0.01"))})
	w := f.wallet(t, "alice")
	ctx := context.Background()

	req, err := f.svc.TopUp(ctx, Input{WalletID: w.ID, UserID: "alice", Amount: d("10000"), Account: "254700000001", Reference: "ref-1"})
	if err != nil {
		t.Fatalf("top up: %v", err)
	}
	if req.Status != provider.StatusPending {
		t.Fatalf("expected pending top-up, got %s", req.Status)
	}
	if got := f.balance(t, "alice"); !got.IsZero() {
		t.Fatalf("wallet credited before confirmation: %s", got)
	}

	for i := 0; i < 2; i++ {
		handled, err := f.svc.ApplyLegUpdate(ctx, provider.StatusUpdate{OrderRef: "ref-1", Status: "success"})
		if err != nil || !handled {
			t.Fatalf("apply update: handled=%v err=%v", handled, err)
		}
	}
	if got := f.balance(t, "alice"); !got.Equal(d("9900")) {
		t.Fatalf("expected 9900 after fee, got %s", got)
	}
	if got := f.balance(t, "platform"); !got.Equal(d("100")) {
		t.Fatalf("expected platform 100, got %s", got)
	}
	if types := f.publisher.Types(); len(types) != 1 || types[0] != events.FundingPosted {
		t.Fatalf("expected one funding event, got %v", types)
	}
}

func TestTopUpImmediateSuccessAndReferenceReuse(t *testing.T) {
	f := newFixture(t)
	f.provider.status = "completed"
	w := f.wallet(t, "alice")
	ctx := context.Background()
	in := Input{WalletID: w.ID, UserID: "alice", Amount: d("50"), Account: "254700000001", Reference: "ref-2"}

	first, err := f.svc.TopUp(ctx, in)
	if err != nil || first.Status != provider.StatusSuccess {
		t.Fatalf("top up: %v status=%s", err, first.Status)
	}
	second, err := f.svc.TopUp(ctx, in)
	if err != nil || second.ID != first.ID {
		t.Fatalf("expected stored request on reuse, got %v %s", err, second.ID)
	}
	if f.provider.calls != 1 {
		t.Fatalf("expected one provider call, got %d", f.provider.calls)
	}
	if got := f.balance(t, "alice"); !got.Equal(d("50")) {
		t.Fatalf("expected 50, got %s", got)
	}
}

func TestWithdrawHoldsAndReleasesOnFailure(t *testing.T) {
	f := newFixture(t)
	w := f.wallet(t, "bob")
	ctx := context.Background()
	if _, err := f.store.Post(ctx, ledger.Posting{WalletID: w.ID, Direction: ledger.Credit, Amount: d("300"), Currency: "KES", Ref: "seed-bob"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, err := f.svc.Withdraw(ctx, Input{WalletID: w.ID, UserID: "bob", Amount: d("500"), Account: "LW-9", Reference: "w-0"}); !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}

	req, err := f.svc.Withdraw(ctx, Input{WalletID: w.ID, UserID: "bob", Amount: d("120"), Account: "LW-9", Reference: "w-1"})
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if got := f.balance(t, "bob"); !got.Equal(d("180")) {
		t.Fatalf("expected held balance 180, got %s", got)
	}
	if _, err := f.svc.ApplyLegUpdate(ctx, provider.StatusUpdate{OrderRef: req.Reference, Status: "declined"}); err != nil {
		t.Fatalf("apply update: %v", err)
	}
	if got := f.balance(t, "bob"); !got.Equal(d("300")) {
		t.Fatalf("expected released balance 300, got %s", got)
	}
}

func TestFundingRejectsForeignWallet(t *testing.T) {
	f := newFixture(t)
	w := f.wallet(t, "alice")
	_, err := f.svc.TopUp(context.Background(), Input{WalletID: w.ID, UserID: "mallory", Amount: d("10"), Account: "254700000001"})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	_, err = f.svc.TopUp(context.Background(), Input{WalletID: w.ID, UserID: "alice", Amount: d("10")})
	if !errors.Is(err, ErrAccountRequired) {
		t.Fatalf("expected account required, got %v", err)
	}
}
