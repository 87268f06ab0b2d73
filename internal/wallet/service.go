package wallet

import (
	"context"
	"log/slog"
	"time"

	"github.com/bridge-pay/bridge_pay/internal/ledger"
)

// Service exposes wallet operations backed by the ledger.
type Service struct {
	ledger ledger.Store
	repo   Repository
	logger *slog.Logger
}

// NewService builds a wallet service instance.
func NewService(store ledger.Store, repo Repository, logger *slog.Logger) *Service {
	return &Service{ledger: store, repo: repo, logger: logger}
}

// GetOrCreate returns the wallet of userID in currency, creating it lazily.
func (s *Service) GetOrCreate(ctx context.Context, userID, currency string) (ledger.Wallet, error) {
	return s.ledger.EnsureWallet(ctx, userID, currency)
}

// Get retrieves wallet metadata.
func (s *Service) Get(ctx context.Context, id string) (ledger.Wallet, error) {
	return s.ledger.Wallet(ctx, id)
}

// Balance returns the cached ledger balance for the wallet.
func (s *Service) Balance(ctx context.Context, id string) (Balance, error) {
	w, err := s.ledger.Wallet(ctx, id)
	if err != nil {
		return Balance{}, err
	}
	return Balance{WalletID: w.ID, Currency: w.Currency, Amount: w.Balance, AsOf: time.Now().UTC()}, nil
}

// Entries lists the ledger entries of the wallet.
func (s *Service) Entries(ctx context.Context, id string) ([]ledger.Entry, error) {
	return s.ledger.Entries(ctx, id)
}

// History lists user-visible transaction rows.
func (s *Service) History(ctx context.Context, id string, limit int) ([]Transaction, error) {
	return s.repo.List(ctx, id, limit)
}

// RecordTransaction writes a user-visible history row. Failures are logged
// and swallowed; the ledger posting has already committed.
func (s *Service) RecordTransaction(ctx context.Context, tx Transaction) {
	if s.repo == nil {
		return
	}
	if tx.Status == "" {
		tx.Status = TransactionSuccess
	}
	if err := s.repo.Record(ctx, tx); err != nil && s.logger != nil {
		s.logger.Warn("wallet transaction record failed",
			slog.String("wallet_id", tx.WalletID),
			slog.String("external_ref", tx.ExternalRef),
			slog.Any("error", err),
		)
	}
}

// Ledger exposes the underlying ledger store for services that post directly.
func (s *Service) Ledger() ledger.Store {
	return s.ledger
}
