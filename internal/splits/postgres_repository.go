package splits

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository stores groups in split_groups and members in
// split_group_members.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) CreateGroup(ctx context.Context, g Group, members []Member) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if g.Metadata == nil {
		g.Metadata = map[string]any{}
	}
	if _, err := tx.Exec(ctx, `INSERT INTO split_groups
        (id, user_id, total_amount, currency, split_type, status, metadata, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		g.ID, g.UserID, g.TotalAmount, g.Currency, g.SplitType, g.Status, g.Metadata, g.CreatedAt, g.UpdatedAt); err != nil {
		return fmt.Errorf("insert split group: %w", err)
	}
	for _, m := range members {
		if m.Metadata == nil {
			m.Metadata = map[string]any{}
		}
		if _, err := tx.Exec(ctx, `INSERT INTO split_group_members
            (id, group_id, position, recipient_user_id, payee, method, amount, status,
             phone_number, wallet_number, metadata, created_at, updated_at)
            VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7, $8, NULLIF($9, ''), NULLIF($10, ''), $11, $12, $13)`,
			m.ID, m.GroupID, m.Position, m.RecipientUserID, m.Payee, string(m.Method), m.Amount, m.Status,
			m.PhoneNumber, m.WalletNumber, m.Metadata, m.CreatedAt, m.UpdatedAt); err != nil {
			return fmt.Errorf("insert split member: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (r *PostgresRepository) Group(ctx context.Context, id string) (Group, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return Group{}, ErrGroupNotFound
	}
	var g Group
	var rowID uuid.UUID
	err = r.db.QueryRow(ctx, `SELECT id, user_id, total_amount, currency, split_type, status, metadata, created_at, updated_at
        FROM split_groups WHERE id = $1`, uid).Scan(
		&rowID, &g.UserID, &g.TotalAmount, &g.Currency, &g.SplitType, &g.Status, &g.Metadata, &g.CreatedAt, &g.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Group{}, ErrGroupNotFound
	}
	if err != nil {
		return Group{}, err
	}
	g.ID = rowID.String()
	return g, nil
}

const memberColumns = `id, group_id, position, COALESCE(recipient_user_id, ''), COALESCE(payee, ''), method, amount,
            status, COALESCE(phone_number, ''), COALESCE(wallet_number, ''), COALESCE(order_ref, ''),
            COALESCE(provider_tx_id, ''), metadata, created_at, updated_at`

func scanMember(row pgx.Row) (Member, error) {
	var m Member
	var id, groupID uuid.UUID
	var method string
	if err := row.Scan(&id, &groupID, &m.Position, &m.RecipientUserID, &m.Payee, &method, &m.Amount,
		&m.Status, &m.PhoneNumber, &m.WalletNumber, &m.OrderRef, &m.ProviderTxID, &m.Metadata, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return Member{}, err
	}
	m.ID = id.String()
	m.GroupID = groupID.String()
	m.Method = Method(method)
	return m, nil
}

func (r *PostgresRepository) collect(rows pgx.Rows) ([]Member, error) {
	defer rows.Close()
	var out []Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Members(ctx context.Context, groupID string) ([]Member, error) {
	uid, err := uuid.Parse(groupID)
	if err != nil {
		return nil, ErrGroupNotFound
	}
	rows, err := r.db.Query(ctx, `SELECT `+memberColumns+`
        FROM split_group_members WHERE group_id = $1 ORDER BY position`, uid)
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}

func (r *PostgresRepository) SetGroupStatus(ctx context.Context, id, status string) error {
	_, err := r.db.Exec(ctx, `UPDATE split_groups SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	return err
}

func (r *PostgresRepository) UpdateMember(ctx context.Context, m Member) error {
	if m.Metadata == nil {
		m.Metadata = map[string]any{}
	}
	_, err := r.db.Exec(ctx, `UPDATE split_group_members
        SET status = $2, order_ref = NULLIF($3, ''), provider_tx_id = NULLIF($4, ''),
            metadata = metadata || $5, updated_at = NOW()
        WHERE id = $1`, m.ID, m.Status, m.OrderRef, m.ProviderTxID, m.Metadata)
	return err
}

func (r *PostgresRepository) FindMember(ctx context.Context, orderRef, providerTxID string) (Member, error) {
	m, err := scanMember(r.db.QueryRow(ctx, `SELECT `+memberColumns+`
        FROM split_group_members
        WHERE ($1 <> '' AND order_ref = $1) OR ($2 <> '' AND provider_tx_id = $2)
        ORDER BY (order_ref = $1) DESC LIMIT 1`, orderRef, providerTxID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Member{}, ErrMemberNotFound
	}
	return m, err
}

func (r *PostgresRepository) SettleMember(ctx context.Context, memberID, status, providerTxID string) (bool, error) {
	tag, err := r.db.Exec(ctx, `UPDATE split_group_members
        SET status = $2, provider_tx_id = COALESCE(NULLIF($3, ''), provider_tx_id), updated_at = NOW()
        WHERE id = $1 AND status = 'pending'`, memberID, status, providerTxID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PostgresRepository) PendingMembers(ctx context.Context, updatedBefore time.Time, limit int) ([]Member, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(ctx, `SELECT `+memberColumns+`
        FROM split_group_members
        WHERE status = 'pending' AND order_ref IS NOT NULL AND updated_at < $1
        ORDER BY updated_at LIMIT $2`, updatedBefore, limit)
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}
