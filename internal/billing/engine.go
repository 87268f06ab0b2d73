package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bridge-pay/bridge_pay/internal/fees"
	"github.com/bridge-pay/bridge_pay/internal/ledger"
	"github.com/bridge-pay/bridge_pay/internal/metrics"
	"github.com/bridge-pay/bridge_pay/internal/refs"
)

// MaxAttempts bounds outbox retries before a task is abandoned.
const MaxAttempts = 10

// PlatformWallets resolves the platform revenue wallet per currency.
type PlatformWallets interface {
	Wallet(ctx context.Context, currency string) (ledger.Wallet, error)
}

// ApplyRequest identifies the transaction fees are charged on.
type ApplyRequest struct {
	TxType           fees.Category   `json:"tx_type"`
	TxID             string          `json:"tx_id"`
	Base             decimal.Decimal `json:"base"`
	Currency         string          `json:"currency"`
	MerchantID       string          `json:"merchant_id,omitempty"`
	CustomerWalletID string          `json:"customer_wallet_id,omitempty"`
	MerchantWalletID string          `json:"merchant_wallet_id,omitempty"`
}

// Result reports the fee lines recorded and the codes whose fund movement failed.
type Result struct {
	Applied []fees.Line
	Total   decimal.Decimal
	Failed  []string
}

// Engine turns resolved fees into billing lines and ledger postings.
type Engine struct {
	resolver *fees.Resolver
	lines    Repository
	ledger   ledger.Store
	platform PlatformWallets
	outbox   Outbox
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewEngine wires the fee engine. outbox and m may be nil.
func NewEngine(resolver *fees.Resolver, lines Repository, store ledger.Store, platform PlatformWallets, outbox Outbox, m *metrics.Metrics, logger *slog.Logger) *Engine {
	return &Engine{
		resolver: resolver,
		lines:    lines,
		ledger:   store,
		platform: platform,
		outbox:   outbox,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// Quote resolves the fees for a request without side effects.
func (e *Engine) Quote(ctx context.Context, req ApplyRequest) (fees.Quote, error) {
	return e.resolver.Resolve(ctx, fees.Request{
		AppliesTo:  req.TxType,
		Amount:     req.Base,
		Currency:   req.Currency,
		MerchantID: req.MerchantID,
	})
}

// Apply resolves fees and records each as a posted billing line, moving funds
// from the payer wallet to the platform wallet where a payer wallet is known.
// Per-line failures are logged and reported in Result.Failed; they do not stop
// the remaining lines.
func (e *Engine) Apply(ctx context.Context, req ApplyRequest) (Result, error) {
	quote, err := e.Quote(ctx, req)
	if err != nil {
		return Result{}, err
	}
	return e.applyLines(ctx, req, quote.Items)
}

// Freeze records the resolved fees as pending billing lines so settlement
// can post them later without recomputing.
func (e *Engine) Freeze(ctx context.Context, req ApplyRequest, metadata map[string]any) ([]fees.Line, error) {
	quote, err := e.Quote(ctx, req)
	if err != nil {
		return nil, err
	}
	for _, item := range quote.Items {
		meta := map[string]any{"frozen_at": e.now().UTC().Format(time.RFC3339Nano)}
		for k, v := range metadata {
			meta[k] = v
		}
		line := e.lineFor(req, item, StatusPending, meta)
		if _, err := e.lines.InsertPending(ctx, line); err != nil {
			return nil, fmt.Errorf("freeze fee %s: %w", item.Code, err)
		}
	}
	return quote.Items, nil
}

// Settle promotes the transaction's pending lines and moves funds for them.
// Frozen amounts are used as-is; a transaction with no recorded lines is
// resolved afresh.
func (e *Engine) Settle(ctx context.Context, req ApplyRequest) (Result, error) {
	existing, err := e.lines.ByTransaction(ctx, req.TxType, req.TxID)
	if err != nil {
		return Result{}, fmt.Errorf("load billing lines: %w", err)
	}
	if len(existing) == 0 {
		return e.Apply(ctx, req)
	}
	if _, err := e.lines.PromotePending(ctx, req.TxType, req.TxID); err != nil {
		return Result{}, fmt.Errorf("promote billing lines: %w", err)
	}
	items := make([]fees.Line, 0, len(existing))
	for _, l := range existing {
		items = append(items, fees.Line{
			Code:     l.FeeCode,
			Payer:    l.PayerAccount,
			Amount:   l.Amount,
			Currency: l.Currency,
		})
	}
	return e.applyLines(ctx, req, items)
}

// Release voids the frozen lines of a transaction that will never settle.
// Posted lines are left untouched.
func (e *Engine) Release(ctx context.Context, txType fees.Category, txID string) (int64, error) {
	n, err := e.lines.VoidPending(ctx, txType, txID)
	if err != nil {
		return 0, fmt.Errorf("void billing lines: %w", err)
	}
	return n, nil
}

// ApplyBestEffort runs Apply and records an outbox task when anything failed.
// It never returns an error; billing must not fail the primary flow.
func (e *Engine) ApplyBestEffort(ctx context.Context, req ApplyRequest) Result {
	res, err := e.Apply(ctx, req)
	e.deferOnFailure(ctx, req, res, err)
	return res
}

// SettleBestEffort is the best-effort form of Settle.
func (e *Engine) SettleBestEffort(ctx context.Context, req ApplyRequest) Result {
	res, err := e.Settle(ctx, req)
	e.deferOnFailure(ctx, req, res, err)
	return res
}

// RetryOutbox re-runs due deferred applications. Refs make re-running safe.
func (e *Engine) RetryOutbox(ctx context.Context, limit int) (int, error) {
	if e.outbox == nil {
		return 0, nil
	}
	tasks, err := e.outbox.Due(ctx, e.now().UTC(), limit)
	if err != nil {
		return 0, err
	}
	completed := 0
	for _, task := range tasks {
		res, err := e.Settle(ctx, task.Request)
		if err == nil && len(res.Failed) > 0 {
			err = fmt.Errorf("fee movement failed for %v", res.Failed)
		}
		if err == nil {
			if cerr := e.outbox.Complete(ctx, task.ID); cerr != nil {
				e.logger.Error("fee outbox complete failed", slog.String("task_id", task.ID), slog.Any("error", cerr))
				continue
			}
			completed++
			continue
		}

		attempts := task.Attempts + 1
		backoff := time.Duration(attempts*attempts) * time.Minute
		abandon := attempts >= MaxAttempts
		if rerr := e.outbox.Reschedule(ctx, task.ID, err.Error(), e.now().UTC().Add(backoff), abandon); rerr != nil {
			e.logger.Error("fee outbox reschedule failed", slog.String("task_id", task.ID), slog.Any("error", rerr))
		}
		e.logger.Warn("fee outbox retry failed",
			slog.String("task_id", task.ID),
			slog.String("tx_type", string(task.Request.TxType)),
			slog.String("tx_id", task.Request.TxID),
			slog.Int("attempts", attempts),
			slog.Bool("abandoned", abandon),
			slog.Any("error", err),
		)
	}
	return completed, nil
}

func (e *Engine) deferOnFailure(ctx context.Context, req ApplyRequest, res Result, err error) {
	if err == nil && len(res.Failed) == 0 {
		return
	}
	msg := ""
	if err != nil {
		msg = err.Error()
	} else {
		msg = fmt.Sprintf("fee movement failed for %v", res.Failed)
	}
	e.logger.Error("fee application incomplete",
		slog.String("tx_type", string(req.TxType)),
		slog.String("tx_id", req.TxID),
		slog.String("error", msg),
	)
	if e.outbox == nil {
		return
	}
	if oerr := e.outbox.Enqueue(ctx, req, msg); oerr != nil {
		e.logger.Error("fee outbox enqueue failed",
			slog.String("tx_type", string(req.TxType)),
			slog.String("tx_id", req.TxID),
			slog.Any("error", oerr),
		)
	}
}

func (e *Engine) applyLines(ctx context.Context, req ApplyRequest, items []fees.Line) (Result, error) {
	res := Result{Applied: []fees.Line{}, Total: decimal.Zero}
	if len(items) == 0 {
		return res, nil
	}
	platform, err := e.platform.Wallet(ctx, req.Currency)
	if err != nil {
		return res, fmt.Errorf("platform wallet: %w", err)
	}

	for _, item := range items {
		line := e.lineFor(req, item, StatusPosted, map[string]any{
			"base_amount": req.Base.StringFixed(2),
			"merchant_id": req.MerchantID,
			"posted_at":   e.now().UTC().Format(time.RFC3339Nano),
		})
		if _, err := e.lines.UpsertPosted(ctx, line); err != nil {
			e.logger.Error("billing line upsert failed", slog.String("ref", line.Ref), slog.Any("error", err))
			res.Failed = append(res.Failed, item.Code)
			e.metrics.FeeFailed(string(req.TxType))
			continue
		}
		res.Applied = append(res.Applied, item)
		res.Total = res.Total.Add(item.Amount)

		if err := e.move(ctx, req, item, line.Ref, platform); err != nil {
			e.logger.Error("fee fund movement failed",
				slog.String("ref", line.Ref),
				slog.String("payer", string(item.Payer)),
				slog.Any("error", err),
			)
			res.Failed = append(res.Failed, item.Code)
			e.metrics.FeeFailed(string(req.TxType))
			continue
		}
		e.metrics.FeeApplied(string(req.TxType), string(item.Payer), item.Amount)
	}
	return res, nil
}

// move debits the payer wallet and credits the platform wallet as one atomic
// pair. Platform-paid fees and fees without a payer wallet are accounting only.
func (e *Engine) move(ctx context.Context, req ApplyRequest, item fees.Line, ref string, platform ledger.Wallet) error {
	var payerWallet, side string
	switch item.Payer {
	case fees.PayerCustomer:
		payerWallet, side = req.CustomerWalletID, refs.SideCustomer
	case fees.PayerMerchant:
		payerWallet, side = req.MerchantWalletID, refs.SideMerchant
	}
	if payerWallet == "" {
		return nil
	}
	if payerWallet == platform.ID {
		return errors.New("payer wallet is the platform wallet")
	}
	meta := map[string]any{
		"fee_code":         item.Code,
		"transaction_type": string(req.TxType),
		"transaction_id":   req.TxID,
	}
	_, err := e.ledger.PostAtomic(ctx,
		ledger.Posting{
			WalletID:  payerWallet,
			Direction: ledger.Debit,
			Amount:    item.Amount,
			Currency:  req.Currency,
			Ref:       refs.Sub(ref, side),
			Narration: fmt.Sprintf("Fee %s", item.Code),
			Metadata:  meta,
		},
		ledger.Posting{
			WalletID:  platform.ID,
			Direction: ledger.Credit,
			Amount:    item.Amount,
			Currency:  req.Currency,
			Ref:       refs.Sub(ref, refs.SidePlatform),
			Narration: fmt.Sprintf("Fee revenue %s", item.Code),
			Metadata:  meta,
		},
	)
	return err
}

func (e *Engine) lineFor(req ApplyRequest, item fees.Line, status string, metadata map[string]any) Line {
	payer := item.Payer
	if payer == "" {
		payer = fees.PayerCustomer
	}
	currency := req.Currency
	if item.Currency != "" {
		currency = item.Currency
	}
	return Line{
		TxType:          req.TxType,
		TxID:            req.TxID,
		FeeCode:         item.Code,
		Amount:          item.Amount,
		Currency:        currency,
		PayerAccount:    payer,
		PlatformAccount: PlatformAccount,
		Direction:       DirectionCredit,
		Status:          status,
		Ref:             refs.Fee(string(req.TxType), req.TxID, item.Code),
		Metadata:        metadata,
	}
}
