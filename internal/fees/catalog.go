package fees

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category is the transaction class a fee applies to.
type Category string

const (
	CategoryTopUp           Category = "TOPUP"
	CategoryWithdrawal      Category = "WITHDRAWAL"
	CategoryMerchantPayment Category = "MERCHANT_PAYMENT"
	CategorySplit           Category = "SPLIT"
	CategoryProject         Category = "PROJECT"
	CategoryScheduled       Category = "SCHEDULED"
	CategoryFX              Category = "FX"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryTopUp, CategoryWithdrawal, CategoryMerchantPayment, CategorySplit,
		CategoryProject, CategoryScheduled, CategoryFX:
		return true
	}
	return false
}

// Payer is the party charged a fee.
type Payer string

const (
	PayerCustomer Payer = "customer"
	PayerMerchant Payer = "merchant"
	PayerPlatform Payer = "platform"
)

// Kind names the fee computation.
type Kind string

const (
	KindFlat       Kind = "flat"
	KindPercentage Kind = "percentage"
	KindTiered     Kind = "tiered"
)

// Status values shared by catalog items and merchant profiles.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Tier is one band of a tiered fee. Rate applies to amounts up to UpTo.
type Tier struct {
	UpTo decimal.Decimal `json:"upto"`
	Rate decimal.Decimal `json:"rate"`
}

// CatalogItem is a platform default fee rule. Only the fields relevant to
// Kind are populated.
type CatalogItem struct {
	Code          string
	Name          string
	Kind          Kind
	AppliesTo     Category
	Payer         Payer
	Rate          decimal.NullDecimal
	Amount        decimal.NullDecimal
	Tiers         []Tier
	Status        string
	EffectiveFrom *time.Time
	EffectiveTo   *time.Time
}

// Effective reports whether the item is active at t.
func (i CatalogItem) Effective(t time.Time) bool {
	if i.Status != StatusActive {
		return false
	}
	if i.EffectiveFrom != nil && t.Before(*i.EffectiveFrom) {
		return false
	}
	if i.EffectiveTo != nil && t.After(*i.EffectiveTo) {
		return false
	}
	return true
}

// Override is a merchant fee profile layered over a catalog item. Unset
// fields fall back to the catalog.
type Override struct {
	MerchantID string
	Code       string
	Status     string
	Kind       *Kind
	Rate       decimal.NullDecimal
	Amount     decimal.NullDecimal
	// Tiers is nil when the override does not replace the tier table.
	Tiers []Tier
}

// Line is one resolved fee.
type Line struct {
	Code     string          `json:"fee_code"`
	Name     string          `json:"name"`
	Kind     Kind            `json:"fee_type"`
	Payer    Payer           `json:"payer"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// Quote is the resolver output.
type Quote struct {
	Items []Line          `json:"items"`
	Total decimal.Decimal `json:"total"`
}
