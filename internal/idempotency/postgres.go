package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps records in the payment_idempotency table.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Find(ctx context.Context, key string) (Record, bool, error) {
	var rec Record
	var response []byte
	err := s.db.QueryRow(ctx, `SELECT key, COALESCE(resource_id, ''), response, created_at
        FROM payment_idempotency WHERE key = $1`, key).Scan(&rec.Key, &rec.ResourceID, &response, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	rec.Response = response
	return rec, true, nil
}

func (s *PostgresStore) Save(ctx context.Context, rec Record) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(ctx, `INSERT INTO payment_idempotency (key, resource_id, response, created_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (key) DO NOTHING`, rec.Key, rec.ResourceID, []byte(rec.Response), rec.CreatedAt)
	return err
}

func (s *PostgresStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM payment_idempotency WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
