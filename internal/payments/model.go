package payments

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bridge-pay/bridge_pay/internal/apperr"
	"github.com/bridge-pay/bridge_pay/internal/money"
	"github.com/bridge-pay/bridge_pay/internal/provider"
)

// Status is the lifecycle state of a payment intent.
type Status string

const (
	StatusPending                 Status = "PENDING"
	StatusFundedPendingSettlement Status = "FUNDED_PENDING_SETTLEMENT"
	StatusSettled                 Status = "SETTLED"
	StatusFailed                  Status = "FAILED"
)

// SourceType is the kind of a funding source.
type SourceType string

const (
	SourceBridgeWallet   SourceType = "BRIDGE_WALLET"
	SourceMpesa          SourceType = "LEMONADE_MPESA"
	SourceExternalWallet SourceType = "LEMONADE_WALLET"
	SourceBank           SourceType = "LEMONADE_BANK"
	SourceCard           SourceType = "LEMONADE_CARD"
)

// Valid reports whether t is a supported source type.
func (t SourceType) Valid() bool {
	switch t {
	case SourceBridgeWallet, SourceMpesa, SourceExternalWallet, SourceBank, SourceCard:
		return true
	}
	return false
}

// External reports whether the source is funded outside the ledger.
func (t SourceType) External() bool {
	return t.Valid() && t != SourceBridgeWallet
}

// Action returns the provider action that starts the leg. Bank and card legs
// have none; they are initiated out of band.
func (t SourceType) Action() (provider.Action, bool) {
	switch t {
	case SourceMpesa:
		return provider.ActionSTKPush, true
	case SourceExternalWallet:
		return provider.ActionWalletPayment, true
	}
	return "", false
}

// FundingSource is one leg of a funding plan. ID is the wallet id for
// BRIDGE_WALLET legs and an optional source label otherwise.
type FundingSource struct {
	ID       string          `json:"id,omitempty"`
	Type     SourceType      `json:"type"`
	Amount   decimal.Decimal `json:"amount"`
	Priority int             `json:"priority"`
}

// Plan is an ordered funding plan.
type Plan []FundingSource

// Sum is the total planned amount.
func (p Plan) Sum() decimal.Decimal {
	total := decimal.Zero
	for _, fs := range p {
		total = total.Add(fs.Amount)
	}
	return total
}

// HasExternal reports whether any leg with a positive amount is external.
func (p Plan) HasExternal() bool {
	for _, fs := range p {
		if fs.Type.External() && money.Positive(fs.Amount) {
			return true
		}
	}
	return false
}

// SourceMeta carries the payer details an external leg needs.
type SourceMeta struct {
	PhoneNumber  string `json:"phone_number"`
	MSISDN       string `json:"msisdn"`
	WalletNumber string `json:"wallet_number"`
	AccountName  string `json:"account_name"`
}

// Phone returns the phone number, accepting either field.
func (m SourceMeta) Phone() string {
	if p := strings.TrimSpace(m.PhoneNumber); p != "" {
		return p
	}
	return strings.TrimSpace(m.MSISDN)
}

// Intent is a purchase funded by a plan of wallet and external legs.
type Intent struct {
	ID          string
	UserID      string
	MerchantID  string
	AmountDue   decimal.Decimal
	Currency    string
	Status      Status
	FundingPlan Plan
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Leg is an external payment leg of a confirmed intent.
type Leg struct {
	ID           string
	IntentID     string
	Index        int
	Type         SourceType
	Amount       decimal.Decimal
	Currency     string
	ProviderTxID string
	OrderRef     string
	Status       string
	Metadata     map[string]any
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// WalletDebit describes a wallet leg debited at confirm time.
type WalletDebit struct {
	Index    int             `json:"index"`
	WalletID string          `json:"wallet_id"`
	Amount   decimal.Decimal `json:"amount"`
	Ref      string          `json:"ref"`
}

// ExternalStart describes an external leg started at confirm time.
type ExternalStart struct {
	Index        int        `json:"index"`
	Type         SourceType `json:"type"`
	OrderRef     string     `json:"order_reference"`
	ProviderTxID string     `json:"provider_tx_id,omitempty"`
	Status       string     `json:"status"`
}

// ConfirmResult is returned by Confirm.
type ConfirmResult struct {
	IntentID     string          `json:"intent_id"`
	Status       Status          `json:"status"`
	WalletDebits []WalletDebit   `json:"wallet_debits"`
	External     []ExternalStart `json:"external"`
}

var (
	ErrIntentNotFound       = apperr.New(apperr.KindNotFound, "not_found", "payment intent not found")
	ErrLegNotFound          = apperr.New(apperr.KindNotFound, "leg_not_found", "external payment leg not found")
	ErrForbidden            = apperr.New(apperr.KindForbidden, "forbidden", "payment intent belongs to another user")
	ErrInvalidState         = apperr.New(apperr.KindInvalidState, "invalid_status", "payment intent is not pending")
	ErrFundingPlanMismatch  = apperr.New(apperr.KindValidation, "funding_plan_sum_mismatch", "funding plan does not sum to the amount due")
	ErrMpesaPhoneRequired   = apperr.New(apperr.KindValidation, "mpesa_phone_required", "an M-Pesa leg needs a phone number")
	ErrWalletNumberRequired = apperr.New(apperr.KindValidation, "wallet_number_required", "an external wallet leg needs a wallet number")
	ErrInvalidAmount        = apperr.New(apperr.KindValidation, "invalid_amount", "amount must be positive")
	ErrInvalidFundingType   = apperr.New(apperr.KindValidation, "invalid_funding_type", "unsupported funding source type")
	ErrInvalidFundingAmount = apperr.New(apperr.KindValidation, "invalid_funding_amount", "funding source amount must be positive")
	ErrWalletNotOwned       = apperr.New(apperr.KindForbidden, "wallet_not_owned", "funding wallet belongs to another user")
)
