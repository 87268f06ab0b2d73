package splits

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/bridge-pay/bridge_pay/internal/apperr"
	"github.com/bridge-pay/bridge_pay/internal/billing"
	"github.com/bridge-pay/bridge_pay/internal/events"
	"github.com/bridge-pay/bridge_pay/internal/fees"
	"github.com/bridge-pay/bridge_pay/internal/idempotency"
	"github.com/bridge-pay/bridge_pay/internal/ledger"
	"github.com/bridge-pay/bridge_pay/internal/logging"
	"github.com/bridge-pay/bridge_pay/internal/provider"
	"github.com/bridge-pay/bridge_pay/internal/wallet"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fakeProvider struct {
	mu      sync.Mutex
	calls   int
	respond func(provider.Request) (provider.Response, error)
}

func (p *fakeProvider) Call(_ context.Context, r provider.Request) (provider.Response, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	if p.respond != nil {
		return p.respond(r)
	}
	return provider.Response{OK: true, Status: 200, Data: map[string]any{"transaction_id": "tx-" + r.IdempotencyKey, "status": "pending"}}, nil
}

func (p *fakeProvider) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type fixture struct {
	store     ledger.Store
	wallets   *wallet.Service
	catalog   *fees.MemoryCatalog
	repo      Repository
	provider  *fakeProvider
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
		repo:      NewMemoryRepository(),
		provider:  &fakeProvider{},
		publisher: &events.Recorder{},
	}
	engine := billing.NewEngine(fees.NewResolver(f.catalog), billing.NewMemoryRepository(), store, platform, billing.NewMemoryOutbox(), nil, logger)
	f.svc = NewService(Dependencies{
		Repo:        f.repo,
		Wallets:     f.wallets,
		Fees:        engine,
		Provider:    f.provider,
		Idempotency: idempotency.NewMemoryStore(),
		Publisher:   f.publisher,
		Logger:      logger,
	})
	return f
}

func (f *fixture) fund(t *testing.T, user, amount string) {
	t.Helper()
	w, err := f.wallets.GetOrCreate(context.Background(), user, "KES")
	if err != nil {
		t.Fatalf("wallet: %v", err)
	}
	if _, err := f.store.Post(context.Background(), ledger.Posting{WalletID: w.ID, Direction: ledger.Credit, Amount: d(amount), Currency: "KES", Ref: "seed-" + user}); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func (f *fixture) balance(t *testing.T, user string) decimal.Decimal {
	t.Helper()
	w, err := f.wallets.GetOrCreate(context.Background(), user, "KES")
	if err != nil {
		t.Fatalf("wallet: %v", err)
	}
	return w.Balance
}

func (f *fixture) group(t *testing.T, in CreateInput) View {
	t.Helper()
	if in.UserID == "" {
		in.UserID = "payer"
	}
	if in.Currency == "" {
		in.Currency = "KES"
	}
	v, err := f.svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	return v
}

func TestEqualSharesPutsResidualOnLast(t *testing.T) {
	shares := EqualShares(d("100"), 3)
	want := []string{"33.33", "33.33", "33.34"}
	for i, s := range shares {
		if s.StringFixed(2) != want[i] {
			t.Fatalf("share %d: expected %s, got %s", i, want[i], s.StringFixed(2))
		}
	}
}

func TestDeriveStatus(t *testing.T) {
	cases := []struct {
		statuses []string
		want     string
	}{
		{[]string{StatusCompleted, StatusCompleted}, StatusCompleted},
		{[]string{StatusCompleted, StatusPending, StatusFailed}, StatusPending},
		{[]string{StatusCompleted, StatusFailed}, StatusFailed},
	}
	for _, tc := range cases {
		members := make([]Member, len(tc.statuses))
		for i, s := range tc.statuses {
			members[i].Status = s
		}
		if got := DeriveStatus(members); got != tc.want {
			t.Fatalf("%v: expected %s, got %s", tc.statuses, tc.want, got)
		}
	}
}

func TestCreateValidatesShares(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cases := []struct {
		name string
		in   CreateInput
		want error
	}{
		{"no members", CreateInput{Total: d("10")}, ErrNoMembers},
		{"equal without total", CreateInput{SplitType: TypeEqual, Members: []MemberInput{{RecipientUserID: "a"}}}, ErrInvalidTotal},
		{"custom mismatch", CreateInput{Total: d("10"), Members: []MemberInput{{RecipientUserID: "a", Amount: d("4")}, {RecipientUserID: "b", Amount: d("5")}}}, ErrSharesMismatch},
		{"bad method", CreateInput{Total: d("10"), Members: []MemberInput{{Method: "cash"}}}, ErrInvalidMethod},
		{"bad type", CreateInput{Total: d("10"), SplitType: "weighted", Members: []MemberInput{{RecipientUserID: "a"}}}, ErrInvalidSplitType},
	}
	for _, tc := range cases {
		tc.in.UserID, tc.in.Currency = "payer", "KES"
		if _, err := f.svc.Create(ctx, tc.in); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}

	v := f.group(t, CreateInput{Members: []MemberInput{{RecipientUserID: "a", Amount: d("2.50")}, {RecipientUserID: "b", Amount: d("1.25")}}})
	if v.Group.SplitType != TypeCustom || v.Group.TotalAmount.StringFixed(2) != "3.75" {
		t.Fatalf("expected custom group totalling 3.75, got %s %s", v.Group.SplitType, v.Group.TotalAmount)
	}
}

func TestExecuteIsolatesMemberFailures(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "payer", "100")
	v := f.group(t, CreateInput{Total: d("30"), Members: []MemberInput{
		{RecipientUserID: "bob"},
		{Payee: "nobody"},
		{RecipientUserID: "carol"},
	}})

	res, replayed, err := f.svc.Execute(context.Background(), ExecuteInput{GroupID: v.Group.ID, UserID: "payer"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if replayed || res.Completed != 2 || res.Failed != 1 || res.Pending != 0 {
		t.Fatalf("expected 2 completed and 1 failed, got %+v replayed=%v", res, replayed)
	}
	if got := f.balance(t, "payer"); !got.Equal(d("80")) {
		t.Fatalf("expected payer balance 80, got %s", got)
	}
	if got := f.balance(t, "carol"); !got.Equal(d("10")) {
		t.Fatalf("expected carol balance 10, got %s", got)
	}
	g, err := f.repo.Group(context.Background(), v.Group.ID)
	if err != nil {
		t.Fatalf("group: %v", err)
	}
	if g.Status != StatusFailed {
		t.Fatalf("expected group failed, got %s", g.Status)
	}
}

func TestExecuteExternalFailureNeverCompletesGroup(t *testing.T) {
	f := newFixture(t)
	f.provider.respond = func(r provider.Request) (provider.Response, error) {
		if r.Payload["acc_no"] == "254700000002" {
			return provider.Response{}, errors.New("connection reset")
		}
		return provider.Response{OK: true, Status: 200, Data: map[string]any{"transaction_id": "tx-1", "status": "completed"}}, nil
	}
	v := f.group(t, CreateInput{Total: d("6"), Method: MethodSTK, Members: []MemberInput{
		{Payee: "Ann", PhoneNumber: "254700000001"},
		{Payee: "Ben", PhoneNumber: "254700000002"},
	}})

	res, _, err := f.svc.Execute(context.Background(), ExecuteInput{GroupID: v.Group.ID, UserID: "payer"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.Completed != 1 || res.Failed != 1 {
		t.Fatalf("expected 1 completed and 1 failed, got %+v", res)
	}
	g, _ := f.repo.Group(context.Background(), v.Group.ID)
	if g.Status == StatusCompleted {
		t.Fatalf("group with a failed member must not complete")
	}
}

func TestExecuteReplaysStoredResult(t *testing.T) {
	f := newFixture(t)
	v := f.group(t, CreateInput{Total: d("10"), Method: MethodSTK, Members: []MemberInput{
		{PhoneNumber: "254700000001"},
		{PhoneNumber: "254700000002"},
	}})
	ctx := context.Background()

	first, replayed, err := f.svc.Execute(ctx, ExecuteInput{GroupID: v.Group.ID, UserID: "payer"})
	if err != nil || replayed {
		t.Fatalf("first execute: %v replayed=%v", err, replayed)
	}
	if first.Pending != 2 {
		t.Fatalf("expected 2 pending, got %+v", first)
	}
	second, replayed, err := f.svc.Execute(ctx, ExecuteInput{GroupID: v.Group.ID, UserID: "payer"})
	if err != nil {
		t.Fatalf("second execute: %v", err)
	}
	if !replayed || second != first {
		t.Fatalf("expected replay of %+v, got %+v replayed=%v", first, second, replayed)
	}
	if got := f.provider.count(); got != 2 {
		t.Fatalf("expected 2 provider calls, got %d", got)
	}
}

func TestExecuteKeyIsScopedToGroup(t *testing.T) {
	f := newFixture(t)
	g1 := f.group(t, CreateInput{Total: d("10"), Method: MethodSTK, Members: []MemberInput{{PhoneNumber: "254700000001"}}})
	g2 := f.group(t, CreateInput{Total: d("20"), Method: MethodSTK, Members: []MemberInput{{PhoneNumber: "254700000002"}}})
	ctx := context.Background()

	if _, replayed, err := f.svc.Execute(ctx, ExecuteInput{GroupID: g1.Group.ID, UserID: "payer", IdempotencyKey: "k-1"}); err != nil || replayed {
		t.Fatalf("execute g1: %v replayed=%v", err, replayed)
	}
	res, replayed, err := f.svc.Execute(ctx, ExecuteInput{GroupID: g2.Group.ID, UserID: "payer", IdempotencyKey: "k-1"})
	if err != nil || replayed {
		t.Fatalf("execute g2: %v replayed=%v", err, replayed)
	}
	if res.Pending != 1 {
		t.Fatalf("expected g2 member pending, got %+v", res)
	}
	if got := f.provider.count(); got != 2 {
		t.Fatalf("expected 2 provider calls, got %d", got)
	}
	if _, replayed, err := f.svc.Execute(ctx, ExecuteInput{GroupID: g1.Group.ID, UserID: "payer", IdempotencyKey: "k-1"}); err != nil || !replayed {
		t.Fatalf("repeat g1 should replay: %v replayed=%v", err, replayed)
	}
	if got := f.provider.count(); got != 2 {
		t.Fatalf("replay called the provider: %d", got)
	}
}

func TestExecuteAuthorization(t *testing.T) {
	f := newFixture(t)
	v := f.group(t, CreateInput{Total: d("10"), Members: []MemberInput{{RecipientUserID: "bob"}}})
	ctx := context.Background()

	if _, _, err := f.svc.Execute(ctx, ExecuteInput{GroupID: v.Group.ID, UserID: "mallory"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, _, err := f.svc.Execute(ctx, ExecuteInput{GroupID: "missing", UserID: "payer"}); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := f.svc.Get(ctx, v.Group.ID, "ops", RoleAdmin); err != nil {
		t.Fatalf("admin get: %v", err)
	}
}

func TestWalletMemberChargesSplitFee(t *testing.T) {
	f := newFixture(t)
	f.catalog.PutItem(fees.CatalogItem{Code: "SPLIT_FEE", Kind: fees.KindFlat, AppliesTo: fees.CategorySplit, Payer: fees.PayerCustomer, Amount: decimal.NewNullDecimal(d("1"))})
	f.fund(t, "payer", "50")
	v := f.group(t, CreateInput{Total: d("20"), Members: []MemberInput{{RecipientUserID: "bob"}}})

	if _, _, err := f.svc.Execute(context.Background(), ExecuteInput{GroupID: v.Group.ID, UserID: "payer"}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got := f.balance(t, "payer"); !got.Equal(d("29")) {
		t.Fatalf("expected payer balance 29, got %s", got)
	}
	if got := f.balance(t, "platform"); !got.Equal(d("1")) {
		t.Fatalf("expected platform balance 1, got %s", got)
	}
}

func TestApplyLegUpdateCompletesPendingMember(t *testing.T) {
	f := newFixture(t)
	v := f.group(t, CreateInput{Total: d("5"), Method: MethodWallet, Members: []MemberInput{{WalletNumber: "LW-1"}}})
	ctx := context.Background()
	if _, _, err := f.svc.Execute(ctx, ExecuteInput{GroupID: v.Group.ID, UserID: "payer"}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	view, _ := f.svc.Get(ctx, v.Group.ID, "payer", "")
	member := view.Members[0]
	if member.Status != StatusPending || member.OrderRef == "" {
		t.Fatalf("expected pending member with order ref, got %+v", member)
	}

	handled, err := f.svc.ApplyLegUpdate(ctx, provider.StatusUpdate{OrderRef: member.OrderRef, Status: "successful"})
	if err != nil || !handled {
		t.Fatalf("apply update: handled=%v err=%v", handled, err)
	}
	view, _ = f.svc.Get(ctx, v.Group.ID, "payer", "")
	if view.Group.Status != StatusCompleted || view.Members[0].Status != StatusCompleted {
		t.Fatalf("expected completed group, got %s / %s", view.Group.Status, view.Members[0].Status)
	}

	handled, err = f.svc.ApplyLegUpdate(ctx, provider.StatusUpdate{OrderRef: "unknown", Status: "successful"})
	if err != nil || handled {
		t.Fatalf("unknown reference should not be handled: handled=%v err=%v", handled, err)
	}
}
