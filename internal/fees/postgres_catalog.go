package fees

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresCatalog reads fee_catalog and merchant_fee_profiles.
type PostgresCatalog struct {
	db *pgxpool.Pool
}

// NewPostgresCatalog builds a catalog backed by PostgreSQL.
func NewPostgresCatalog(db *pgxpool.Pool) *PostgresCatalog {
	return &PostgresCatalog{db: db}
}

func (c *PostgresCatalog) ActiveItems(ctx context.Context, appliesTo Category) ([]CatalogItem, error) {
	rows, err := c.db.Query(ctx, `SELECT code, name, fee_type, applies_to, payer, rate, amount, tiers,
            status, effective_from, effective_to
        FROM fee_catalog
        WHERE applies_to = $1 AND status = 'active'
        ORDER BY code`, string(appliesTo))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CatalogItem
	for rows.Next() {
		var item CatalogItem
		var kind, category, payer string
		var tiers []byte
		var from, to *time.Time
		if err := rows.Scan(&item.Code, &item.Name, &kind, &category, &payer, &item.Rate, &item.Amount,
			&tiers, &item.Status, &from, &to); err != nil {
			return nil, err
		}
		item.Kind = Kind(kind)
		item.AppliesTo = Category(category)
		item.Payer = Payer(payer)
		item.EffectiveFrom = from
		item.EffectiveTo = to
		if item.Tiers, err = decodeTiers(tiers); err != nil {
			return nil, fmt.Errorf("fee %s tiers: %w", item.Code, err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (c *PostgresCatalog) Overrides(ctx context.Context, merchantID string, codes []string) (map[string]Override, error) {
	out := make(map[string]Override)
	if len(codes) == 0 {
		return out, nil
	}
	rows, err := c.db.Query(ctx, `SELECT merchant_id, fee_code, status, fee_type, rate, amount, tiers
        FROM merchant_fee_profiles
        WHERE merchant_id = $1 AND fee_code = ANY($2) AND status = 'active'`, merchantID, codes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var o Override
		var kind *string
		var rate, amount decimal.NullDecimal
		var tiers []byte
		if err := rows.Scan(&o.MerchantID, &o.Code, &o.Status, &kind, &rate, &amount, &tiers); err != nil {
			return nil, err
		}
		if kind != nil && *kind != "" {
			k := Kind(*kind)
			o.Kind = &k
		}
		o.Rate = rate
		o.Amount = amount
		if o.Tiers, err = decodeTiers(tiers); err != nil {
			return nil, fmt.Errorf("merchant %s fee %s tiers: %w", merchantID, o.Code, err)
		}
		out[o.Code] = o
	}
	return out, rows.Err()
}

func decodeTiers(raw []byte) ([]Tier, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var tiers []Tier
	if err := json.Unmarshal(raw, &tiers); err != nil {
		return nil, err
	}
	return tiers, nil
}
