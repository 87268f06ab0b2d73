package funding

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository stores funding requests in wallet_funding.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const fundingColumns = `id, kind, wallet_id, user_id, amount, currency, account, reference,
            COALESCE(provider_tx_id, ''), status, created_at, updated_at`

func scanRequest(row pgx.Row) (Request, error) {
	var r Request
	var id, walletID uuid.UUID
	var kind string
	if err := row.Scan(&id, &kind, &walletID, &r.UserID, &r.Amount, &r.Currency, &r.Account, &r.Reference,
		&r.ProviderTxID, &r.Status, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return Request{}, err
	}
	r.ID = id.String()
	r.WalletID = walletID.String()
	r.Kind = Kind(kind)
	return r, nil
}

func (p *PostgresRepository) Create(ctx context.Context, r Request) (Request, error) {
	_, err := p.db.Exec(ctx, `INSERT INTO wallet_funding
        (id, kind, wallet_id, user_id, amount, currency, account, reference, provider_tx_id, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10, $11, $12)
        ON CONFLICT (reference) DO NOTHING`,
		r.ID, string(r.Kind), r.WalletID, r.UserID, r.Amount, r.Currency, r.Account, r.Reference,
		r.ProviderTxID, r.Status, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return Request{}, err
	}
	return p.Find(ctx, r.Reference, "")
}

func (p *PostgresRepository) Find(ctx context.Context, reference, providerTxID string) (Request, error) {
	r, err := scanRequest(p.db.QueryRow(ctx, `SELECT `+fundingColumns+`
        FROM wallet_funding
        WHERE ($1 <> '' AND reference = $1) OR ($2 <> '' AND provider_tx_id = $2)
        ORDER BY (reference = $1) DESC LIMIT 1`, reference, providerTxID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Request{}, ErrRequestNotFound
	}
	return r, err
}

func (p *PostgresRepository) Settle(ctx context.Context, id, status, providerTxID string) (bool, error) {
	tag, err := p.db.Exec(ctx, `UPDATE wallet_funding
        SET status = $2, provider_tx_id = COALESCE(NULLIF($3, ''), provider_tx_id), updated_at = NOW()
        WHERE id = $1 AND status = 'PENDING'`, id, status, providerTxID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (p *PostgresRepository) Pending(ctx context.Context, updatedBefore time.Time, limit int) ([]Request, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.db.Query(ctx, `SELECT `+fundingColumns+`
        FROM wallet_funding WHERE status = 'PENDING' AND updated_at < $1
        ORDER BY updated_at LIMIT $2`, updatedBefore, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
