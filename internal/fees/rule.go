package fees

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/bridge-pay/bridge_pay/internal/money"
)

// Rule is a fee computation. The concrete variants are Flat, Percentage and
// Tiered; Compute switches over them exhaustively.
type Rule interface {
	kind() Kind
}

// Flat charges a fixed amount.
type Flat struct {
	Amount decimal.Decimal
}

// Percentage charges base × Rate.
type Percentage struct {
	Rate decimal.Decimal
}

// Tiered charges base × the rate of the first tier whose UpTo covers base,
// falling back to the last tier.
type Tiered struct {
	Tiers []Tier
}

func (Flat) kind() Kind       { return KindFlat }
func (Percentage) kind() Kind { return KindPercentage }
func (Tiered) kind() Kind     { return KindTiered }

// Compute returns the fee for base, rounded half-up to 2dp.
func Compute(r Rule, base decimal.Decimal) decimal.Decimal {
	switch rule := r.(type) {
	case Flat:
		return money.Round2(rule.Amount)
	case Percentage:
		return money.Round2(base.Mul(rule.Rate))
	case Tiered:
		if len(rule.Tiers) == 0 {
			return decimal.Zero
		}
		tiers := make([]Tier, len(rule.Tiers))
		copy(tiers, rule.Tiers)
		sort.SliceStable(tiers, func(i, j int) bool { return tiers[i].UpTo.LessThan(tiers[j].UpTo) })
		rate := tiers[len(tiers)-1].Rate
		for _, t := range tiers {
			if t.UpTo.GreaterThanOrEqual(base) {
				rate = t.Rate
				break
			}
		}
		return money.Round2(base.Mul(rate))
	default:
		return decimal.Zero
	}
}

// ruleFor builds the rule of kind from the provided fields. A missing rate or
// amount resolves to zero, which the resolver then drops.
func ruleFor(kind Kind, rate, amount decimal.NullDecimal, tiers []Tier) Rule {
	switch kind {
	case KindFlat:
		return Flat{Amount: amount.Decimal}
	case KindPercentage:
		return Percentage{Rate: rate.Decimal}
	case KindTiered:
		return Tiered{Tiers: tiers}
	default:
		return nil
	}
}

// Merge layers an override over a catalog item field by field and returns the
// effective rule. A nil override yields the catalog rule.
func Merge(item CatalogItem, override *Override) Rule {
	kind := item.Kind
	rate := item.Rate
	amount := item.Amount
	tiers := item.Tiers
	if override != nil {
		if override.Kind != nil {
			kind = *override.Kind
		}
		if override.Rate.Valid {
			rate = override.Rate
		}
		if override.Amount.Valid {
			amount = override.Amount
		}
		if override.Tiers != nil {
			tiers = override.Tiers
		}
	}
	return ruleFor(kind, rate, amount, tiers)
}
