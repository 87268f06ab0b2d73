package wallet

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/bridge-pay/bridge_pay/internal/ledger"
	"github.com/bridge-pay/bridge_pay/internal/logging"
)

func TestServiceGetOrCreateAndBalance(t *testing.T) {
	store := ledger.NewInMemory()
	svc := NewService(store, NewMemoryRepository(), logging.Discard())
	ctx := context.Background()

	w, err := svc.GetOrCreate(ctx, "user-1", "KES")
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	again, err := svc.GetOrCreate(ctx, "user-1", "KES")
	if err != nil {
		t.Fatalf("get or create again: %v", err)
	}
	if again.ID != w.ID {
		t.Fatalf("expected wallet %s, got %s", w.ID, again.ID)
	}

	if _, err := store.Post(ctx, ledger.Posting{
		WalletID: w.ID, Direction: ledger.Credit, Amount: decimal.NewFromInt(2500), Currency: "KES", Ref: "seed",
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	balance, err := svc.Balance(ctx, w.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !balance.Amount.Equal(decimal.NewFromInt(2500)) {
		t.Fatalf("expected balance 2500, got %s", balance.Amount)
	}
}

func TestServiceRecordTransactionDedupesByRef(t *testing.T) {
	svc := NewService(ledger.NewInMemory(), NewMemoryRepository(), logging.Discard())
	ctx := context.Background()

	tx := Transaction{WalletID: "w1", Type: TypeDebit, Direction: DirectionOut, Amount: decimal.NewFromInt(10), Currency: "KES", ExternalRef: "pi-1-wallet-0"}
	svc.RecordTransaction(ctx, tx)
	svc.RecordTransaction(ctx, tx)

	rows, err := svc.History(ctx, "w1", 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].Status != TransactionSuccess {
		t.Fatalf("expected default status SUCCESS, got %s", rows[0].Status)
	}
}

func TestBootstrapPlatform(t *testing.T) {
	store := ledger.NewInMemory()
	ctx := context.Background()

	p, err := BootstrapPlatform(ctx, store, "platform", []string{"KES", "usd"})
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	kes, err := p.Wallet(ctx, "kes")
	if err != nil {
		t.Fatalf("platform wallet: %v", err)
	}
	direct, _ := store.EnsureWallet(ctx, "platform", "KES")
	if kes.ID != direct.ID {
		t.Fatalf("expected bootstrapped wallet %s, got %s", direct.ID, kes.ID)
	}

	eur, err := p.Wallet(ctx, "EUR")
	if err != nil {
		t.Fatalf("lazy platform wallet: %v", err)
	}
	if eur.UserID != "platform" || eur.Currency != "EUR" {
		t.Fatalf("unexpected lazy wallet %+v", eur)
	}

	if _, err := BootstrapPlatform(ctx, store, "", nil); err == nil {
		t.Fatal("expected error without platform user id")
	}
}
