package ledger

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bridge-pay/bridge_pay/internal/apperr"
	"github.com/bridge-pay/bridge_pay/internal/money"
)

var (
	// ErrInvalidAmount is returned for postings whose amount is not strictly positive.
	ErrInvalidAmount = apperr.New(apperr.KindValidation, "invalid_amount", "amount must be positive")

	// ErrCurrencyMismatch is returned when a posting currency differs from the wallet currency.
	ErrCurrencyMismatch = apperr.New(apperr.KindValidation, "currency_mismatch", "posting currency does not match wallet currency")

	// ErrWalletNotFound is returned when a posting references an unknown wallet.
	ErrWalletNotFound = apperr.New(apperr.KindNotFound, "wallet_not_found", "wallet not found")

	// ErrInsufficientFunds is returned only for postings that opted into NoOverdraft.
	ErrInsufficientFunds = apperr.New(apperr.KindValidation, "insufficient_funds", "insufficient funds")

	// ErrMissingRef is returned for postings without an idempotency reference.
	ErrMissingRef = apperr.New(apperr.KindValidation, "missing_ref", "posting ref is required")

	// ErrInvalidDirection is returned for postings whose direction is neither credit nor debit.
	ErrInvalidDirection = apperr.New(apperr.KindValidation, "invalid_direction", "direction must be credit or debit")
)

// Direction is the side of a ledger entry.
type Direction string

const (
	Credit Direction = "credit"
	Debit  Direction = "debit"
)

// StatusPosted is the only entry status written by this store.
const StatusPosted = "posted"

// Wallet is a per-user, per-currency balance holder. Balance is a cache of
// the sum of its posted entries and only changes through Post/PostAtomic.
type Wallet struct {
	ID        string
	UserID    string
	Currency  string
	Balance   decimal.Decimal
	CreatedAt time.Time
}

// Entry is an immutable ledger line.
type Entry struct {
	ID           string
	WalletID     string
	Direction    Direction
	Amount       decimal.Decimal
	Currency     string
	Ref          string
	ExternalRef  string
	Narration    string
	Metadata     map[string]any
	Status       string
	BalanceAfter decimal.Decimal
	CreatedAt    time.Time
}

// Posting is a request to write one entry.
type Posting struct {
	WalletID    string
	Direction   Direction
	Amount      decimal.Decimal
	Currency    string
	Ref         string
	ExternalRef string
	Narration   string
	Metadata    map[string]any
	// NoOverdraft rejects a debit that would take the balance below zero.
	NoOverdraft bool
}

// Result is the outcome of a posting. Duplicate is set when the ref already
// existed; EntryID and BalanceAfter then describe the original entry.
type Result struct {
	EntryID      string
	WalletID     string
	Ref          string
	BalanceAfter decimal.Decimal
	Duplicate    bool
}

// Store is the ledger contract implemented by the Postgres and in-memory backends.
type Store interface {
	// EnsureWallet returns the wallet for (userID, currency), creating it on first use.
	EnsureWallet(ctx context.Context, userID, currency string) (Wallet, error)
	Wallet(ctx context.Context, id string) (Wallet, error)
	// Post writes a single entry and adjusts the wallet balance atomically.
	Post(ctx context.Context, p Posting) (Result, error)
	// PostAtomic writes every posting or none of them.
	PostAtomic(ctx context.Context, postings ...Posting) ([]Result, error)
	Entries(ctx context.Context, walletID string) ([]Entry, error)
}

// normalize rounds the amount to 2dp and rejects malformed postings.
func normalize(p Posting) (Posting, error) {
	if p.Ref == "" {
		return p, ErrMissingRef
	}
	if !money.Positive(p.Amount) {
		return p, ErrInvalidAmount
	}
	if p.Direction != Credit && p.Direction != Debit {
		return p, ErrInvalidDirection
	}
	p.Amount = money.Round2(p.Amount)
	p.Currency = strings.ToUpper(strings.TrimSpace(p.Currency))
	if p.Metadata == nil {
		p.Metadata = map[string]any{}
	}
	return p, nil
}

// signed returns the balance delta of a posting.
func signed(p Posting) decimal.Decimal {
	if p.Direction == Debit {
		return p.Amount.Neg()
	}
	return p.Amount
}
