package funding

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bridge-pay/bridge_pay/internal/apperr"
)

// Kind distinguishes money entering and leaving a wallet.
type Kind string

const (
	KindTopUp      Kind = "topup"
	KindWithdrawal Kind = "withdrawal"
)

// Request is a provider-backed wallet funding movement. Status uses the
// provider status vocabulary.
type Request struct {
	ID           string
	Kind         Kind
	WalletID     string
	UserID       string
	Amount       decimal.Decimal
	Currency     string
	Account      string
	Reference    string
	ProviderTxID string
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Repository persists funding requests. Reference is unique.
type Repository interface {
	// Create stores r unless its reference exists and returns the stored row.
	Create(ctx context.Context, r Request) (Request, error)
	Find(ctx context.Context, reference, providerTxID string) (Request, error)
	// Settle moves a pending request to status and reports false when it was
	// no longer pending.
	Settle(ctx context.Context, id, status, providerTxID string) (bool, error)
	Pending(ctx context.Context, updatedBefore time.Time, limit int) ([]Request, error)
}

var (
	ErrRequestNotFound = apperr.New(apperr.KindNotFound, "funding_not_found", "funding request not found")
	ErrInvalidAmount   = apperr.New(apperr.KindValidation, "invalid_amount", "amount must be positive")
	ErrAccountRequired = apperr.New(apperr.KindValidation, "account_required", "phone_number or wallet_number is required")
	ErrForbidden       = apperr.New(apperr.KindForbidden, "forbidden", "wallet belongs to another user")
	ErrProvider        = apperr.New(apperr.KindProvider, "provider_error", "payment provider rejected the request")
)
