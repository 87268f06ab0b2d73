package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
)

func amt(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func credit(walletID, ref, amount string) Posting {
	return Posting{WalletID: walletID, Direction: Credit, Amount: amt(amount), Currency: "KES", Ref: ref}
}

func debit(walletID, ref, amount string) Posting {
	return Posting{WalletID: walletID, Direction: Debit, Amount: amt(amount), Currency: "KES", Ref: ref}
}

// assertBalanced checks the cached balance against the sum of posted entries.
func assertBalanced(t *testing.T, s Store, walletID string) decimal.Decimal {
	t.Helper()
	ctx := context.Background()
	w, err := s.Wallet(ctx, walletID)
	if err != nil {
		t.Fatalf("wallet: %v", err)
	}
	entries, err := s.Entries(ctx, walletID)
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	sum := decimal.Zero
	for _, e := range entries {
		if e.Direction == Credit {
			sum = sum.Add(e.Amount)
		} else {
			sum = sum.Sub(e.Amount)
		}
	}
	if !sum.Equal(w.Balance) {
		t.Fatalf("balance %s does not match entries %s", w.Balance, sum)
	}
	return w.Balance
}

func TestInMemoryStore_EnsureWalletIsIdempotent(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	a, err := s.EnsureWallet(ctx, "user-1", "kes")
	if err != nil {
		t.Fatalf("ensure wallet: %v", err)
	}
	b, err := s.EnsureWallet(ctx, "user-1", "KES")
	if err != nil {
		t.Fatalf("ensure wallet again: %v", err)
	}
	if a.ID != b.ID {
		t.Fatalf("expected same wallet, got %s and %s", a.ID, b.ID)
	}
	if a.Currency != "KES" {
		t.Fatalf("expected upper-cased currency, got %s", a.Currency)
	}
	usd, _ := s.EnsureWallet(ctx, "user-1", "USD")
	if usd.ID == a.ID {
		t.Fatal("expected a separate wallet per currency")
	}
}

func TestInMemoryStore_PostDuplicateRefIsNoop(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	w, _ := s.EnsureWallet(ctx, "user-1", "KES")

	first, err := s.Post(ctx, credit(w.ID, "topup-1", "100.00"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if first.Duplicate {
		t.Fatal("first post should not be a duplicate")
	}
	second, err := s.Post(ctx, credit(w.ID, "topup-1", "100.00"))
	if err != nil {
		t.Fatalf("replayed post: %v", err)
	}
	if !second.Duplicate || second.EntryID != first.EntryID {
		t.Fatalf("expected replay of %s, got %+v", first.EntryID, second)
	}
	if !second.BalanceAfter.Equal(amt("100")) {
		t.Fatalf("expected balance_after 100, got %s", second.BalanceAfter)
	}

	entries, _ := s.Entries(ctx, w.ID)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if bal := assertBalanced(t, s, w.ID); !bal.Equal(amt("100")) {
		t.Fatalf("expected balance 100, got %s", bal)
	}
}

func TestInMemoryStore_PostValidation(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	w, _ := s.EnsureWallet(ctx, "user-1", "KES")

	if _, err := s.Post(ctx, credit(w.ID, "zero", "0")); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	if _, err := s.Post(ctx, credit(w.ID, "neg", "-5")); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	usd := credit(w.ID, "usd", "5")
	usd.Currency = "USD"
	if _, err := s.Post(ctx, usd); !errors.Is(err, ErrCurrencyMismatch) {
		t.Fatalf("expected currency mismatch, got %v", err)
	}
	if _, err := s.Post(ctx, credit("missing", "missing", "5")); !errors.Is(err, ErrWalletNotFound) {
		t.Fatalf("expected wallet not found, got %v", err)
	}
	if _, err := s.Post(ctx, credit(w.ID, "", "5")); !errors.Is(err, ErrMissingRef) {
		t.Fatalf("expected missing ref, got %v", err)
	}
}

func TestInMemoryStore_DebitMayOverdraftUnlessGuarded(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	w, _ := s.EnsureWallet(ctx, "user-1", "KES")

	guarded := debit(w.ID, "guarded", "10")
	guarded.NoOverdraft = true
	if _, err := s.Post(ctx, guarded); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}

	res, err := s.Post(ctx, debit(w.ID, "unguarded", "10"))
	if err != nil {
		t.Fatalf("unguarded debit: %v", err)
	}
	if !res.BalanceAfter.Equal(amt("-10")) {
		t.Fatalf("expected -10, got %s", res.BalanceAfter)
	}
	assertBalanced(t, s, w.ID)
}

func TestInMemoryStore_PostAtomicIsAllOrNothing(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	a, _ := s.EnsureWallet(ctx, "user-a", "KES")
	if _, err := s.Post(ctx, credit(a.ID, "seed", "500")); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// Credit leg targets an unknown wallet, so the debit must not apply.
	_, err := s.PostAtomic(ctx, debit(a.ID, "pair-cust", "50"), credit("nope", "pair-plat", "50"))
	if !errors.Is(err, ErrWalletNotFound) {
		t.Fatalf("expected wallet not found, got %v", err)
	}
	if bal := assertBalanced(t, s, a.ID); !bal.Equal(amt("500")) {
		t.Fatalf("expected untouched balance 500, got %s", bal)
	}

	b, _ := s.EnsureWallet(ctx, "user-b", "KES")
	results, err := s.PostAtomic(ctx, debit(a.ID, "pair-cust", "50"), credit(b.ID, "pair-plat", "50"))
	if err != nil {
		t.Fatalf("post pair: %v", err)
	}
	if !results[0].BalanceAfter.Equal(amt("450")) || !results[1].BalanceAfter.Equal(amt("50")) {
		t.Fatalf("unexpected balances: %+v", results)
	}

	// Replaying the pair is a no-op.
	replay, err := s.PostAtomic(ctx, debit(a.ID, "pair-cust", "50"), credit(b.ID, "pair-plat", "50"))
	if err != nil {
		t.Fatalf("replay pair: %v", err)
	}
	if !replay[0].Duplicate || !replay[1].Duplicate {
		t.Fatalf("expected duplicates, got %+v", replay)
	}
	if bal := assertBalanced(t, s, a.ID); !bal.Equal(amt("450")) {
		t.Fatalf("expected 450, got %s", bal)
	}
}

func TestInMemoryStore_RoundsToTwoDecimals(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	w, _ := s.EnsureWallet(ctx, "user-1", "KES")

	res, err := s.Post(ctx, credit(w.ID, "r", "10.005"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if !res.BalanceAfter.Equal(amt("10.01")) {
		t.Fatalf("expected 10.01, got %s", res.BalanceAfter)
	}
}

func TestInMemoryStore_ConcurrentPosts(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	a, _ := s.EnsureWallet(ctx, "user-a", "KES")
	b, _ := s.EnsureWallet(ctx, "user-b", "KES")
	if _, err := s.Post(ctx, credit(a.ID, "seed", "100000")); err != nil {
		t.Fatalf("seed: %v", err)
	}

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Every transfer is attempted twice to exercise ref dedupe under contention.
			for attempt := 0; attempt < 2; attempt++ {
				_, err := s.PostAtomic(ctx,
					debit(a.ID, fmt.Sprintf("tx-%d-out", i), "500"),
					credit(b.ID, fmt.Sprintf("tx-%d-in", i), "500"),
				)
				if err != nil {
					t.Errorf("transfer %d failed: %v", i, err)
				}
			}
		}(i)
	}
	wg.Wait()

	balA := assertBalanced(t, s, a.ID)
	balB := assertBalanced(t, s, b.ID)
	if !balA.Equal(amt("90000")) || !balB.Equal(amt("10000")) {
		t.Fatalf("unexpected balances a=%s b=%s", balA, balB)
	}
}
