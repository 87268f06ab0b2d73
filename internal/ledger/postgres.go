package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresStore persists wallets and ledger entries in PostgreSQL. The wallet
// row is locked for the duration of a posting so concurrent writers to the
// same wallet serialize.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed ledger store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureWallet returns the wallet for (userID, currency), inserting it if needed.
func (s *PostgresStore) EnsureWallet(ctx context.Context, userID, currency string) (Wallet, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if userID == "" || currency == "" {
		return Wallet{}, ErrWalletNotFound
	}
	if _, err := s.db.Exec(ctx, `INSERT INTO wallets (id, user_id, currency, balance, created_at)
        VALUES ($1, $2, $3, 0, NOW())
        ON CONFLICT (user_id, currency) DO NOTHING`, uuid.New(), userID, currency); err != nil {
		return Wallet{}, fmt.Errorf("ensure wallet: %w", err)
	}
	row := s.db.QueryRow(ctx, `SELECT id, user_id, currency, balance, created_at
        FROM wallets WHERE user_id = $1 AND currency = $2`, userID, currency)
	return scanWallet(row)
}

// Wallet fetches a wallet by identifier.
func (s *PostgresStore) Wallet(ctx context.Context, id string) (Wallet, error) {
	walletID, err := uuid.Parse(id)
	if err != nil {
		return Wallet{}, ErrWalletNotFound
	}
	row := s.db.QueryRow(ctx, `SELECT id, user_id, currency, balance, created_at
        FROM wallets WHERE id = $1`, walletID)
	return scanWallet(row)
}

// Post writes a single entry.
func (s *PostgresStore) Post(ctx context.Context, p Posting) (Result, error) {
	results, err := s.PostAtomic(ctx, p)
	if err != nil {
		return Result{}, err
	}
	return results[0], nil
}

// PostAtomic writes all postings in one transaction. Wallet rows are locked in
// ascending id order so two batches touching the same wallets cannot deadlock.
func (s *PostgresStore) PostAtomic(ctx context.Context, postings ...Posting) ([]Result, error) {
	normalized := make([]Posting, 0, len(postings))
	parsed := make([]uuid.UUID, 0, len(postings))
	walletIDs := make(map[string]uuid.UUID)
	for _, p := range postings {
		np, err := normalize(p)
		if err != nil {
			return nil, err
		}
		id, err := uuid.Parse(np.WalletID)
		if err != nil {
			return nil, ErrWalletNotFound
		}
		normalized = append(normalized, np)
		parsed = append(parsed, id)
		walletIDs[id.String()] = id
	}

	ordered := make([]string, 0, len(walletIDs))
	for id := range walletIDs {
		ordered = append(ordered, id)
	}
	sort.Strings(ordered)

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	type lockedWallet struct {
		currency string
		balance  decimal.Decimal
	}
	locked := make(map[string]*lockedWallet, len(ordered))
	for _, id := range ordered {
		var lw lockedWallet
		err := tx.QueryRow(ctx, `SELECT currency, balance FROM wallets WHERE id = $1 FOR UPDATE`, walletIDs[id]).
			Scan(&lw.currency, &lw.balance)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrWalletNotFound
			}
			return nil, fmt.Errorf("lock wallet %s: %w", id, err)
		}
		locked[id] = &lw
	}

	results := make([]Result, len(normalized))
	for i, p := range normalized {
		walletKey := parsed[i].String()
		if prior, found, err := entryByRef(ctx, tx, p.Ref); err != nil {
			return nil, err
		} else if found {
			results[i] = prior
			continue
		}

		lw := locked[walletKey]
		if lw.currency != p.Currency {
			return nil, ErrCurrencyMismatch
		}
		next := lw.balance.Add(signed(p))
		if p.NoOverdraft && next.Sign() < 0 {
			return nil, ErrInsufficientFunds
		}

		var entryID uuid.UUID
		err := tx.QueryRow(ctx, `INSERT INTO ledger_entries
            (id, wallet_id, direction, amount, currency, ref, external_ref, narration, metadata, status, balance_after, created_at)
            VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, $10, $11, NOW())
            ON CONFLICT (ref) DO NOTHING
            RETURNING id`,
			uuid.New(), parsed[i], string(p.Direction), p.Amount, p.Currency, p.Ref,
			p.ExternalRef, p.Narration, p.Metadata, StatusPosted, next).Scan(&entryID)
		if err != nil {
			if !errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("insert ledger entry: %w", err)
			}
			// A concurrent writer committed the same ref first.
			prior, found, lookupErr := entryByRef(ctx, tx, p.Ref)
			if lookupErr != nil {
				return nil, lookupErr
			}
			if !found {
				return nil, fmt.Errorf("ledger entry %s vanished after conflict", p.Ref)
			}
			results[i] = prior
			continue
		}

		if _, err := tx.Exec(ctx, `UPDATE wallets SET balance = $2 WHERE id = $1`, parsed[i], next); err != nil {
			return nil, fmt.Errorf("update wallet balance: %w", err)
		}
		lw.balance = next
		results[i] = Result{EntryID: entryID.String(), WalletID: walletKey, Ref: p.Ref, BalanceAfter: next}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return results, nil
}

// Entries lists the ledger entries of a wallet in posting order.
func (s *PostgresStore) Entries(ctx context.Context, walletID string) ([]Entry, error) {
	id, err := uuid.Parse(walletID)
	if err != nil {
		return nil, ErrWalletNotFound
	}
	rows, err := s.db.Query(ctx, `SELECT id, wallet_id, direction, amount, currency, ref,
            COALESCE(external_ref, ''), narration, metadata, status, balance_after, created_at
        FROM ledger_entries WHERE wallet_id = $1 ORDER BY created_at, id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var entryID, wID uuid.UUID
		var direction string
		if err := rows.Scan(&entryID, &wID, &direction, &e.Amount, &e.Currency, &e.Ref,
			&e.ExternalRef, &e.Narration, &e.Metadata, &e.Status, &e.BalanceAfter, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.ID = entryID.String()
		e.WalletID = wID.String()
		e.Direction = Direction(direction)
		e.CreatedAt = e.CreatedAt.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

func entryByRef(ctx context.Context, tx pgx.Tx, ref string) (Result, bool, error) {
	var entryID, walletID uuid.UUID
	var balanceAfter decimal.Decimal
	err := tx.QueryRow(ctx, `SELECT id, wallet_id, balance_after FROM ledger_entries WHERE ref = $1`, ref).
		Scan(&entryID, &walletID, &balanceAfter)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Result{}, false, nil
		}
		return Result{}, false, fmt.Errorf("lookup ledger ref: %w", err)
	}
	return Result{EntryID: entryID.String(), WalletID: walletID.String(), Ref: ref, BalanceAfter: balanceAfter, Duplicate: true}, true, nil
}

func scanWallet(row pgx.Row) (Wallet, error) {
	var w Wallet
	var id uuid.UUID
	if err := row.Scan(&id, &w.UserID, &w.Currency, &w.Balance, &w.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, ErrWalletNotFound
		}
		return Wallet{}, err
	}
	w.ID = id.String()
	w.CreatedAt = w.CreatedAt.UTC()
	return w, nil
}
