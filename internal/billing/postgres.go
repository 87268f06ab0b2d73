package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bridge-pay/bridge_pay/internal/fees"
)

// PostgresRepository stores billing lines in the billing_ledger table.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a billing line repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// UpsertPosted inserts a posted line or promotes an existing one, merging metadata.
func (r *PostgresRepository) UpsertPosted(ctx context.Context, line Line) (bool, error) {
	var inserted bool
	var previous string
	err := r.db.QueryRow(ctx, `WITH prior AS (
            SELECT status FROM billing_ledger WHERE ref = $9
        )
        INSERT INTO billing_ledger
            (id, transaction_type, transaction_id, fee_code, amount, currency, payer_account,
             platform_account, direction, status, ref, metadata, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'CREDIT', 'posted', $9, $10, NOW(), NOW())
        ON CONFLICT (ref) DO UPDATE
            SET status = 'posted',
                metadata = COALESCE(billing_ledger.metadata, '{}'::jsonb) || EXCLUDED.metadata,
                updated_at = NOW()
        RETURNING (xmax = 0), COALESCE((SELECT status FROM prior), '')`,
		uuid.New(), string(line.TxType), line.TxID, line.FeeCode, line.Amount, line.Currency,
		string(line.PayerAccount), PlatformAccount, line.Ref, metadataOrEmpty(line.Metadata),
	).Scan(&inserted, &previous)
	if err != nil {
		return false, fmt.Errorf("upsert billing line: %w", err)
	}
	return !inserted && previous == StatusPosted, nil
}

// InsertPending records a frozen line unless the ref already exists.
func (r *PostgresRepository) InsertPending(ctx context.Context, line Line) (bool, error) {
	tag, err := r.db.Exec(ctx, `INSERT INTO billing_ledger
            (id, transaction_type, transaction_id, fee_code, amount, currency, payer_account,
             platform_account, direction, status, ref, metadata, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'CREDIT', 'pending', $9, $10, NOW(), NOW())
        ON CONFLICT (ref) DO NOTHING`,
		uuid.New(), string(line.TxType), line.TxID, line.FeeCode, line.Amount, line.Currency,
		string(line.PayerAccount), PlatformAccount, line.Ref, metadataOrEmpty(line.Metadata))
	if err != nil {
		return false, fmt.Errorf("insert pending billing line: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// PromotePending flips pending lines of a transaction to posted.
func (r *PostgresRepository) PromotePending(ctx context.Context, txType fees.Category, txID string) (int64, error) {
	tag, err := r.db.Exec(ctx, `UPDATE billing_ledger SET status = 'posted', updated_at = NOW()
        WHERE transaction_type = $1 AND transaction_id = $2 AND status = 'pending'`, string(txType), txID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// VoidPending marks pending lines of a transaction void.
func (r *PostgresRepository) VoidPending(ctx context.Context, txType fees.Category, txID string) (int64, error) {
	tag, err := r.db.Exec(ctx, `UPDATE billing_ledger SET status = 'void', updated_at = NOW()
        WHERE transaction_type = $1 AND transaction_id = $2 AND status = 'pending'`, string(txType), txID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ByTransaction lists the lines of a transaction.
func (r *PostgresRepository) ByTransaction(ctx context.Context, txType fees.Category, txID string) ([]Line, error) {
	rows, err := r.db.Query(ctx, `SELECT id, transaction_type, transaction_id, fee_code, amount, currency,
            payer_account, platform_account, direction, status, ref, metadata, created_at, updated_at
        FROM billing_ledger WHERE transaction_type = $1 AND transaction_id = $2
        ORDER BY fee_code`, string(txType), txID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Line
	for rows.Next() {
		var l Line
		var id uuid.UUID
		var category, payer string
		if err := rows.Scan(&id, &category, &l.TxID, &l.FeeCode, &l.Amount, &l.Currency, &payer,
			&l.PlatformAccount, &l.Direction, &l.Status, &l.Ref, &l.Metadata, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		l.ID = id.String()
		l.TxType = fees.Category(category)
		l.PayerAccount = fees.Payer(payer)
		out = append(out, l)
	}
	return out, rows.Err()
}

// PostgresOutbox stores deferred fee applications in fee_outbox.
type PostgresOutbox struct {
	db *pgxpool.Pool
}

// NewPostgresOutbox builds an outbox backed by PostgreSQL.
func NewPostgresOutbox(db *pgxpool.Pool) *PostgresOutbox {
	return &PostgresOutbox{db: db}
}

// Enqueue inserts or re-arms the task of a transaction.
func (o *PostgresOutbox) Enqueue(ctx context.Context, req ApplyRequest, lastErr string) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}
	_, err = o.db.Exec(ctx, `INSERT INTO fee_outbox
            (id, transaction_type, transaction_id, payload, attempts, last_error, status, next_attempt_at, created_at)
        VALUES ($1, $2, $3, $4, 0, $5, 'pending', NOW(), NOW())
        ON CONFLICT (transaction_type, transaction_id) DO UPDATE
            SET payload = EXCLUDED.payload, last_error = EXCLUDED.last_error,
                status = 'pending', next_attempt_at = NOW()`,
		uuid.New(), string(req.TxType), req.TxID, payload, lastErr)
	return err
}

// Due returns pending tasks whose next attempt is at or before now.
func (o *PostgresOutbox) Due(ctx context.Context, now time.Time, limit int) ([]Task, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := o.db.Query(ctx, `SELECT id, payload, attempts, COALESCE(last_error, ''), status, next_attempt_at, created_at
        FROM fee_outbox WHERE status = 'pending' AND next_attempt_at <= $1
        ORDER BY next_attempt_at LIMIT $2`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		var t Task
		var id uuid.UUID
		var payload []byte
		if err := rows.Scan(&id, &payload, &t.Attempts, &t.LastError, &t.Status, &t.NextAttemptAt, &t.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(payload, &t.Request); err != nil {
			return nil, fmt.Errorf("decode outbox task %s: %w", id, err)
		}
		t.ID = id.String()
		out = append(out, t)
	}
	return out, rows.Err()
}

// Complete marks a task done.
func (o *PostgresOutbox) Complete(ctx context.Context, id string) error {
	_, err := o.db.Exec(ctx, `UPDATE fee_outbox SET status = 'completed' WHERE id = $1`, id)
	return err
}

// Reschedule records a failed attempt.
func (o *PostgresOutbox) Reschedule(ctx context.Context, id, lastErr string, next time.Time, abandon bool) error {
	status := TaskPending
	if abandon {
		status = TaskAbandoned
	}
	_, err := o.db.Exec(ctx, `UPDATE fee_outbox
        SET attempts = attempts + 1, last_error = $2, next_attempt_at = $3, status = $4
        WHERE id = $1`, id, lastErr, next, status)
	return err
}

func metadataOrEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
