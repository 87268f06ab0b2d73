package ledger

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type inMemoryStore struct {
	mu      sync.RWMutex
	wallets map[string]*Wallet
	owners  map[string]string
	entries map[string][]Entry
	refs    map[string]Entry
}

// NewInMemory creates a concurrency-safe in-memory ledger useful for unit tests
// and local runs without Postgres.
func NewInMemory() Store {
	return &inMemoryStore{
		wallets: make(map[string]*Wallet),
		owners:  make(map[string]string),
		entries: make(map[string][]Entry),
		refs:    make(map[string]Entry),
	}
}

func ownerKey(userID, currency string) string {
	return userID + "|" + currency
}

func (s *inMemoryStore) EnsureWallet(_ context.Context, userID, currency string) (Wallet, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if userID == "" || currency == "" {
		return Wallet{}, ErrWalletNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.owners[ownerKey(userID, currency)]; ok {
		return *s.wallets[id], nil
	}
	w := &Wallet{
		ID:        uuid.NewString(),
		UserID:    userID,
		Currency:  currency,
		Balance:   decimal.Zero,
		CreatedAt: time.Now().UTC(),
	}
	s.wallets[w.ID] = w
	s.owners[ownerKey(userID, currency)] = w.ID
	return *w, nil
}

func (s *inMemoryStore) Wallet(_ context.Context, id string) (Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.wallets[id]
	if !ok {
		return Wallet{}, ErrWalletNotFound
	}
	return *w, nil
}

func (s *inMemoryStore) Post(ctx context.Context, p Posting) (Result, error) {
	results, err := s.PostAtomic(ctx, p)
	if err != nil {
		return Result{}, err
	}
	return results[0], nil
}

// PostAtomic stages every posting against a copy of the affected balances and
// only writes once all of them validate.
func (s *inMemoryStore) PostAtomic(_ context.Context, postings ...Posting) ([]Result, error) {
	normalized := make([]Posting, 0, len(postings))
	for _, p := range postings {
		np, err := normalize(p)
		if err != nil {
			return nil, err
		}
		normalized = append(normalized, np)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	staged := make(map[string]decimal.Decimal)
	seen := make(map[string]Result)
	results := make([]Result, len(normalized))
	fresh := make([]int, 0, len(normalized))

	for i, p := range normalized {
		if prior, ok := s.refs[p.Ref]; ok {
			results[i] = Result{EntryID: prior.ID, WalletID: prior.WalletID, Ref: prior.Ref, BalanceAfter: prior.BalanceAfter, Duplicate: true}
			continue
		}
		if prior, ok := seen[p.Ref]; ok {
			prior.Duplicate = true
			results[i] = prior
			continue
		}
		w, ok := s.wallets[p.WalletID]
		if !ok {
			return nil, ErrWalletNotFound
		}
		if w.Currency != p.Currency {
			return nil, ErrCurrencyMismatch
		}
		balance, ok := staged[w.ID]
		if !ok {
			balance = w.Balance
		}
		balance = balance.Add(signed(p))
		if p.NoOverdraft && balance.Sign() < 0 {
			return nil, ErrInsufficientFunds
		}
		staged[w.ID] = balance
		results[i] = Result{EntryID: uuid.NewString(), WalletID: w.ID, Ref: p.Ref, BalanceAfter: balance}
		seen[p.Ref] = results[i]
		fresh = append(fresh, i)
	}

	now := time.Now().UTC()
	for _, i := range fresh {
		p := normalized[i]
		res := results[i]
		entry := Entry{
			ID:           res.EntryID,
			WalletID:     p.WalletID,
			Direction:    p.Direction,
			Amount:       p.Amount,
			Currency:     p.Currency,
			Ref:          p.Ref,
			ExternalRef:  p.ExternalRef,
			Narration:    p.Narration,
			Metadata:     p.Metadata,
			Status:       StatusPosted,
			BalanceAfter: res.BalanceAfter,
			CreatedAt:    now,
		}
		s.entries[p.WalletID] = append(s.entries[p.WalletID], entry)
		s.refs[p.Ref] = entry
		s.wallets[p.WalletID].Balance = res.BalanceAfter
	}
	return results, nil
}

func (s *inMemoryStore) Entries(_ context.Context, walletID string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.wallets[walletID]; !ok {
		return nil, ErrWalletNotFound
	}
	out := make([]Entry, len(s.entries[walletID]))
	copy(out, s.entries[walletID])
	return out, nil
}
