package fees

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Catalog is the read-only view of fee configuration used by the resolver.
type Catalog interface {
	// ActiveItems returns catalog items for a category. Implementations may
	// pre-filter on status; the resolver re-checks the effective window.
	ActiveItems(ctx context.Context, appliesTo Category) ([]CatalogItem, error)
	// Overrides returns the active merchant profiles keyed by fee code.
	Overrides(ctx context.Context, merchantID string, codes []string) (map[string]Override, error)
}

// Request is the input of Resolve.
type Request struct {
	AppliesTo  Category
	Amount     decimal.Decimal
	Currency   string
	MerchantID string
}

// Resolver merges platform defaults with merchant overrides and computes fees.
type Resolver struct {
	catalog Catalog
	now     func() time.Time
}

// NewResolver builds a resolver over the catalog.
func NewResolver(catalog Catalog) *Resolver {
	return &Resolver{catalog: catalog, now: time.Now}
}

// WithClock overrides the clock used for effective windows.
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	r.now = now
	return r
}

// Resolve returns the non-zero fee lines for the request. No matching catalog
// item yields an empty quote.
func (r *Resolver) Resolve(ctx context.Context, req Request) (Quote, error) {
	quote := Quote{Items: []Line{}, Total: decimal.Zero}
	items, err := r.catalog.ActiveItems(ctx, req.AppliesTo)
	if err != nil {
		return Quote{}, fmt.Errorf("load fee catalog: %w", err)
	}

	now := r.now().UTC()
	effective := items[:0:0]
	codes := make([]string, 0, len(items))
	for _, item := range items {
		if item.AppliesTo != req.AppliesTo || !item.Effective(now) {
			continue
		}
		effective = append(effective, item)
		codes = append(codes, item.Code)
	}
	if len(effective) == 0 {
		return quote, nil
	}

	overrides := map[string]Override{}
	if req.MerchantID != "" {
		overrides, err = r.catalog.Overrides(ctx, req.MerchantID, codes)
		if err != nil {
			return Quote{}, fmt.Errorf("load merchant fee profiles: %w", err)
		}
	}

	currency := strings.ToUpper(req.Currency)
	for _, item := range effective {
		var override *Override
		if o, ok := overrides[item.Code]; ok && o.Status == StatusActive {
			override = &o
		}
		rule := Merge(item, override)
		amount := Compute(rule, req.Amount)
		if amount.Sign() <= 0 {
			continue
		}
		kind := item.Kind
		if rule != nil {
			kind = rule.kind()
		}
		payer := item.Payer
		if payer == "" {
			payer = PayerCustomer
		}
		quote.Items = append(quote.Items, Line{
			Code:     item.Code,
			Name:     item.Name,
			Kind:     kind,
			Payer:    payer,
			Amount:   amount,
			Currency: currency,
		})
		quote.Total = quote.Total.Add(amount)
	}
	return quote, nil
}
