package wallet

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists user-visible wallet transaction rows.
type Repository interface {
	Record(ctx context.Context, tx Transaction) error
	List(ctx context.Context, walletID string, limit int) ([]Transaction, error)
}

// PostgresRepository stores wallet transactions in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Record inserts a transaction row. Rows are keyed by external_ref so replays
// of the same posting do not duplicate history.
func (r *PostgresRepository) Record(ctx context.Context, tx Transaction) error {
	walletID, err := uuid.Parse(tx.WalletID)
	if err != nil {
		return err
	}
	if tx.Metadata == nil {
		tx.Metadata = map[string]any{}
	}
	_, err = r.db.Exec(ctx, `INSERT INTO wallet_transactions
        (id, wallet_id, type, direction, amount, currency, external_ref, status, metadata, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        ON CONFLICT (external_ref) DO NOTHING`,
		uuid.New(), walletID, tx.Type, tx.Direction, tx.Amount, tx.Currency, tx.ExternalRef, tx.Status, tx.Metadata, time.Now().UTC())
	return err
}

// List returns the most recent transactions of a wallet.
func (r *PostgresRepository) List(ctx context.Context, walletID string, limit int) ([]Transaction, error) {
	id, err := uuid.Parse(walletID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `SELECT id, wallet_id, type, direction, amount, currency, external_ref, status, metadata, created_at
        FROM wallet_transactions WHERE wallet_id = $1 ORDER BY created_at DESC LIMIT $2`, id, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var tx Transaction
		var txID, wID uuid.UUID
		if err := rows.Scan(&txID, &wID, &tx.Type, &tx.Direction, &tx.Amount, &tx.Currency,
			&tx.ExternalRef, &tx.Status, &tx.Metadata, &tx.CreatedAt); err != nil {
			return nil, err
		}
		tx.ID = txID.String()
		tx.WalletID = wID.String()
		tx.CreatedAt = tx.CreatedAt.UTC()
		out = append(out, tx)
	}
	return out, rows.Err()
}
