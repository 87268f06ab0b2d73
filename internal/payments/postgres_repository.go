package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bridge-pay/bridge_pay/internal/provider"
)

// PostgresRepository stores intents in payment_intents and legs in
// external_payments.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) CreateIntent(ctx context.Context, in Intent) error {
	id, err := uuid.Parse(in.ID)
	if err != nil {
		return err
	}
	plan, err := json.Marshal(planOrEmpty(in.FundingPlan))
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO payment_intents
        (id, user_id, merchant_id, amount_due, currency, status, funding_plan, created_at, updated_at)
        VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9)`,
		id, in.UserID, in.MerchantID, in.AmountDue, in.Currency, string(in.Status), plan, in.CreatedAt, in.UpdatedAt)
	return err
}

func (r *PostgresRepository) Intent(ctx context.Context, id string) (Intent, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return Intent{}, ErrIntentNotFound
	}
	var in Intent
	var rowID uuid.UUID
	var status string
	var plan []byte
	err = r.db.QueryRow(ctx, `SELECT id, user_id, COALESCE(merchant_id, ''), amount_due, currency, status,
            funding_plan, created_at, updated_at
        FROM payment_intents WHERE id = $1`, uid).Scan(
		&rowID, &in.UserID, &in.MerchantID, &in.AmountDue, &in.Currency, &status, &plan, &in.CreatedAt, &in.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Intent{}, ErrIntentNotFound
	}
	if err != nil {
		return Intent{}, err
	}
	if len(plan) > 0 {
		if err := json.Unmarshal(plan, &in.FundingPlan); err != nil {
			return Intent{}, fmt.Errorf("decode funding plan: %w", err)
		}
	}
	in.ID = rowID.String()
	in.Status = Status(status)
	return in, nil
}

func (r *PostgresRepository) ConfirmIntent(ctx context.Context, id string, plan Plan, status Status) (bool, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return false, ErrIntentNotFound
	}
	raw, err := json.Marshal(planOrEmpty(plan))
	if err != nil {
		return false, err
	}
	tag, err := r.db.Exec(ctx, `UPDATE payment_intents
        SET status = $2, funding_plan = $3, updated_at = NOW()
        WHERE id = $1 AND status = 'PENDING'`, uid, string(status), raw)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PostgresRepository) TransitionIntent(ctx context.Context, id string, from, to Status) (bool, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return false, ErrIntentNotFound
	}
	tag, err := r.db.Exec(ctx, `UPDATE payment_intents SET status = $3, updated_at = NOW()
        WHERE id = $1 AND status = $2`, uid, string(from), string(to))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PostgresRepository) CreateLeg(ctx context.Context, leg Leg) error {
	intentID, err := uuid.Parse(leg.IntentID)
	if err != nil {
		return err
	}
	id := uuid.New()
	if leg.ID != "" {
		if id, err = uuid.Parse(leg.ID); err != nil {
			return err
		}
	}
	if leg.Metadata == nil {
		leg.Metadata = map[string]any{}
	}
	_, err = r.db.Exec(ctx, `INSERT INTO external_payments
        (id, payment_intent_id, source_index, type, amount, currency, provider_tx_id, order_ref, status, metadata, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, $10, NOW(), NOW())
        ON CONFLICT (order_ref) DO NOTHING`,
		id, intentID, leg.Index, string(leg.Type), leg.Amount, leg.Currency, leg.ProviderTxID, leg.OrderRef, leg.Status, leg.Metadata)
	return err
}

const legColumns = `id, payment_intent_id, source_index, type, amount, currency, COALESCE(provider_tx_id, ''),
            order_ref, status, metadata, created_at, updated_at`

func scanLeg(row pgx.Row) (Leg, error) {
	var l Leg
	var id, intentID uuid.UUID
	var legType string
	if err := row.Scan(&id, &intentID, &l.Index, &legType, &l.Amount, &l.Currency, &l.ProviderTxID,
		&l.OrderRef, &l.Status, &l.Metadata, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return Leg{}, err
	}
	l.ID = id.String()
	l.IntentID = intentID.String()
	l.Type = SourceType(legType)
	return l, nil
}

func (r *PostgresRepository) Legs(ctx context.Context, intentID string) ([]Leg, error) {
	uid, err := uuid.Parse(intentID)
	if err != nil {
		return nil, ErrIntentNotFound
	}
	rows, err := r.db.Query(ctx, `SELECT `+legColumns+`
        FROM external_payments WHERE payment_intent_id = $1 ORDER BY source_index`, uid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Leg
	for rows.Next() {
		l, err := scanLeg(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) FindLeg(ctx context.Context, orderRef, providerTxID string) (Leg, error) {
	l, err := scanLeg(r.db.QueryRow(ctx, `SELECT `+legColumns+`
        FROM external_payments
        WHERE ($1 <> '' AND order_ref = $1) OR ($2 <> '' AND provider_tx_id = $2)
        ORDER BY (order_ref = $1) DESC LIMIT 1`, orderRef, providerTxID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Leg{}, ErrLegNotFound
	}
	return l, err
}

func (r *PostgresRepository) SettleLeg(ctx context.Context, legID, status, providerTxID string) (bool, error) {
	uid, err := uuid.Parse(legID)
	if err != nil {
		return false, ErrLegNotFound
	}
	tag, err := r.db.Exec(ctx, `UPDATE external_payments
        SET status = $2, provider_tx_id = COALESCE(NULLIF($3, ''), provider_tx_id), updated_at = NOW()
        WHERE id = $1 AND status = $4`, uid, status, providerTxID, provider.StatusPending)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PostgresRepository) PendingLegs(ctx context.Context, createdBefore time.Time, limit int) ([]Leg, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(ctx, `SELECT `+legColumns+`
        FROM external_payments WHERE status = $1 AND created_at < $2
        ORDER BY created_at LIMIT $3`, provider.StatusPending, createdBefore, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Leg
	for rows.Next() {
		l, err := scanLeg(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) StalledIntents(ctx context.Context, updatedBefore time.Time, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(ctx, `SELECT i.id FROM payment_intents i
        WHERE i.status = $1 AND i.updated_at < $2
          AND NOT EXISTS (
            SELECT 1 FROM external_payments l
            WHERE l.payment_intent_id = i.id AND l.status = $3)
        ORDER BY i.updated_at LIMIT $4`,
		string(StatusFundedPendingSettlement), updatedBefore, provider.StatusPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id.String())
	}
	return out, rows.Err()
}

func planOrEmpty(p Plan) Plan {
	if p == nil {
		return Plan{}
	}
	return p
}
