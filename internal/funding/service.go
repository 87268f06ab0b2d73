package funding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bridge-pay/bridge_pay/internal/billing"
	"github.com/bridge-pay/bridge_pay/internal/events"
	"github.com/bridge-pay/bridge_pay/internal/fees"
	"github.com/bridge-pay/bridge_pay/internal/ledger"
	"github.com/bridge-pay/bridge_pay/internal/money"
	"github.com/bridge-pay/bridge_pay/internal/notification"
	"github.com/bridge-pay/bridge_pay/internal/provider"
	"github.com/bridge-pay/bridge_pay/internal/refs"
	"github.com/bridge-pay/bridge_pay/internal/wallet"
)

// Dependencies are the collaborators of the funding service. Fees,
// Publisher and Notifier may be nil.
type Dependencies struct {
	Repo      Repository
	Wallets   *wallet.Service
	Fees      *billing.Engine
	Provider  provider.Client
	Publisher events.Publisher
	Notifier  notification.Notifier
	Logger    *slog.Logger
}

// Service moves money between wallets and the payment provider. Top-ups are
// credited once the provider confirms collection; withdrawals hold funds
// up front and release them if the payout fails.
type Service struct {
	repo      Repository
	wallets   *wallet.Service
	fees      *billing.Engine
	provider  provider.Client
	publisher events.Publisher
	notifier  notification.Notifier
	logger    *slog.Logger
}

// NewService constructs a funding service.
func NewService(deps Dependencies) (*Service, error) {
	if deps.Wallets == nil {
		return nil, fmt.Errorf("wallet service is required")
	}
	if deps.Provider == nil {
		deps.Provider = provider.StaticClient{}
	}
	return &Service{
		repo:      deps.Repo,
		wallets:   deps.Wallets,
		fees:      deps.Fees,
		provider:  deps.Provider,
		publisher: deps.Publisher,
		notifier:  deps.Notifier,
		logger:    deps.Logger,
	}, nil
}

// Input describes a top-up or withdrawal. Reference is the client reference;
// one is generated when empty. Account is the phone number for top-ups and
// the payout wallet or phone number for withdrawals.
type Input struct {
	WalletID  string
	UserID    string
	Amount    decimal.Decimal
	Account   string
	Reference string
}

// TopUp starts an STK collection into the wallet. The wallet is credited
// when the provider reports success, immediately or through ApplyLegUpdate.
func (s *Service) TopUp(ctx context.Context, in Input) (Request, error) {
	req, err := s.begin(ctx, KindTopUp, in)
	if err != nil || req.Status != provider.StatusPending || req.ProviderTxID != "" {
		return req, err
	}

	resp, err := s.call(ctx, provider.ActionSTKPush, req, "Bridge wallet top-up")
	if err != nil {
		s.logger.Warn("top-up provider call failed", slog.String("reference", req.Reference), slog.Any("error", err))
		return req, nil
	}
	if !resp.OK {
		if _, serr := s.repo.Settle(ctx, req.ID, provider.StatusFailed, ""); serr != nil {
			return req, serr
		}
		return req, ErrProvider.WithDetails(map[string]any{"message": resp.Message()})
	}
	return s.resolve(ctx, req, provider.MapStatus(resp.DataStatus()), resp.TransactionID())
}

// Withdraw debits the wallet and requests a payout. A rejected payout
// credits the funds back.
func (s *Service) Withdraw(ctx context.Context, in Input) (Request, error) {
	req, err := s.begin(ctx, KindWithdrawal, in)
	if err != nil || req.Status != provider.StatusPending || req.ProviderTxID != "" {
		return req, err
	}

	ref := refs.Withdrawal(req.Reference)
	if _, err := s.wallets.Ledger().Post(ctx, ledger.Posting{
		WalletID:    req.WalletID,
		Direction:   ledger.Debit,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Ref:         ref,
		ExternalRef: req.Reference,
		Narration:   "Wallet withdrawal",
		Metadata:    map[string]any{"funding_id": req.ID},
		NoOverdraft: true,
	}); err != nil {
		if _, serr := s.repo.Settle(ctx, req.ID, provider.StatusFailed, ""); serr != nil {
			s.logger.Error("withdrawal status update failed", slog.String("reference", req.Reference), slog.Any("error", serr))
		}
		return req, err
	}
	s.wallets.RecordTransaction(ctx, wallet.Transaction{
		WalletID:    req.WalletID,
		Type:        wallet.TypeDebit,
		Direction:   wallet.DirectionOut,
		Amount:      req.Amount,
		Currency:    req.Currency,
		ExternalRef: ref,
		Metadata:    map[string]any{"funding_id": req.ID},
	})

	resp, err := s.call(ctx, provider.ActionWalletPayment, req, "Bridge wallet withdrawal")
	if err != nil {
		s.logger.Warn("withdrawal provider call failed", slog.String("reference", req.Reference), slog.Any("error", err))
		return req, nil
	}
	if !resp.OK {
		if _, err := s.resolve(ctx, req, provider.StatusFailed, resp.TransactionID()); err != nil {
			return req, err
		}
		return req, ErrProvider.WithDetails(map[string]any{"message": resp.Message()})
	}
	return s.resolve(ctx, req, provider.MapStatus(resp.DataStatus()), resp.TransactionID())
}

// begin validates the input and records the request. A reused reference
// returns the stored request.
func (s *Service) begin(ctx context.Context, kind Kind, in Input) (Request, error) {
	amount := money.Round2(in.Amount)
	if !money.Positive(amount) {
		return Request{}, ErrInvalidAmount
	}
	account := strings.TrimSpace(in.Account)
	if account == "" {
		return Request{}, ErrAccountRequired
	}
	w, err := s.wallets.Get(ctx, in.WalletID)
	if err != nil {
		return Request{}, err
	}
	if w.UserID != in.UserID {
		return Request{}, ErrForbidden
	}
	reference := strings.TrimSpace(in.Reference)
	if reference == "" {
		reference = uuid.NewString()
	}
	now := time.Now().UTC()
	return s.repo.Create(ctx, Request{
		ID:        uuid.NewString(),
		Kind:      kind,
		WalletID:  w.ID,
		UserID:    w.UserID,
		Amount:    amount,
		Currency:  w.Currency,
		Account:   account,
		Reference: reference,
		Status:    provider.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (s *Service) call(ctx context.Context, action provider.Action, req Request, description string) (provider.Response, error) {
	return s.provider.Call(ctx, provider.Request{
		Action: action,
		Payload: provider.Payment{
			Action:      action,
			Account:     req.Account,
			Amount:      req.Amount,
			Currency:    req.Currency,
			Reference:   req.Reference,
			Description: description,
		}.Payload(),
		IdempotencyKey: string(req.Kind) + "-" + req.Reference,
	})
}

// ApplyLegUpdate resolves a pending funding request from a provider status.
// It reports false when the reference is not a funding request.
func (s *Service) ApplyLegUpdate(ctx context.Context, u provider.StatusUpdate) (bool, error) {
	req, err := s.repo.Find(ctx, u.OrderRef, u.ProviderTxID)
	if errors.Is(err, ErrRequestNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	_, err = s.resolve(ctx, req, provider.MapStatus(u.Status), u.ProviderTxID)
	return true, err
}

// Pending lists requests still waiting for a provider outcome.
func (s *Service) Pending(ctx context.Context, olderThan time.Duration, limit int) ([]Request, error) {
	return s.repo.Pending(ctx, time.Now().UTC().Add(-olderThan), limit)
}

// resolve applies a provider outcome. Only the caller that moves the
// request out of PENDING posts money; replays are no-ops.
func (s *Service) resolve(ctx context.Context, req Request, status, providerTxID string) (Request, error) {
	if !provider.Terminal(status) {
		return req, nil
	}
	changed, err := s.repo.Settle(ctx, req.ID, status, providerTxID)
	if err != nil {
		return req, err
	}
	if !changed {
		return s.repo.Find(ctx, req.Reference, "")
	}
	req.Status = status
	if providerTxID != "" {
		req.ProviderTxID = providerTxID
	}

	switch {
	case req.Kind == KindTopUp && status == provider.StatusSuccess:
		err = s.creditTopUp(ctx, req)
	case req.Kind == KindWithdrawal && status == provider.StatusFailed:
		err = s.releaseWithdrawal(ctx, req)
	case req.Kind == KindWithdrawal && status == provider.StatusSuccess:
		s.posted(ctx, req, fees.CategoryWithdrawal)
	}
	return req, err
}

func (s *Service) creditTopUp(ctx context.Context, req Request) error {
	ref := refs.TopUp(req.Reference)
	if _, err := s.wallets.Ledger().Post(ctx, ledger.Posting{
		WalletID:    req.WalletID,
		Direction:   ledger.Credit,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Ref:         ref,
		ExternalRef: req.ProviderTxID,
		Narration:   "Wallet top-up",
		Metadata:    map[string]any{"funding_id": req.ID, "reference": req.Reference},
	}); err != nil {
		return fmt.Errorf("credit top-up: %w", err)
	}
	s.wallets.RecordTransaction(ctx, wallet.Transaction{
		WalletID:    req.WalletID,
		Type:        wallet.TypeCredit,
		Direction:   wallet.DirectionIn,
		Amount:      req.Amount,
		Currency:    req.Currency,
		ExternalRef: ref,
		Metadata:    map[string]any{"funding_id": req.ID},
	})
	s.posted(ctx, req, fees.CategoryTopUp)
	return nil
}

func (s *Service) releaseWithdrawal(ctx context.Context, req Request) error {
	ref := refs.Sub(refs.Withdrawal(req.Reference), "refund")
	if _, err := s.wallets.Ledger().Post(ctx, ledger.Posting{
		WalletID:  req.WalletID,
		Direction: ledger.Credit,
		Amount:    req.Amount,
		Currency:  req.Currency,
		Ref:       ref,
		Narration: "Withdrawal reversal",
		Metadata:  map[string]any{"funding_id": req.ID},
	}); err != nil {
		return fmt.Errorf("release withdrawal: %w", err)
	}
	s.wallets.RecordTransaction(ctx, wallet.Transaction{
		WalletID:    req.WalletID,
		Type:        wallet.TypeCredit,
		Direction:   wallet.DirectionIn,
		Amount:      req.Amount,
		Currency:    req.Currency,
		ExternalRef: ref,
		Metadata:    map[string]any{"funding_id": req.ID},
	})
	return nil
}

// posted charges the funding fee to the wallet owner and announces it.
func (s *Service) posted(ctx context.Context, req Request, category fees.Category) {
	if s.fees != nil {
		s.fees.ApplyBestEffort(ctx, billing.ApplyRequest{
			TxType:           category,
			TxID:             req.ID,
			Base:             req.Amount,
			Currency:         req.Currency,
			CustomerWalletID: req.WalletID,
		})
	}
	events.Emit(ctx, s.publisher, s.logger, events.New(events.FundingPosted, req.WalletID, map[string]any{
		"kind":      string(req.Kind),
		"reference": req.Reference,
		"amount":    req.Amount.StringFixed(2),
		"currency":  req.Currency,
	}))
	notification.Deliver(ctx, s.notifier, s.logger, notification.Message{
		Kind:        notification.KindFundingPosted,
		Destination: req.UserID,
		Body:        fmt.Sprintf("Your %s of %s %s is complete", req.Kind, req.Amount.StringFixed(2), req.Currency),
	})
}
