package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bridge-pay/bridge_pay/internal/billing"
	"github.com/bridge-pay/bridge_pay/internal/events"
	"github.com/bridge-pay/bridge_pay/internal/fees"
	"github.com/bridge-pay/bridge_pay/internal/ledger"
	"github.com/bridge-pay/bridge_pay/internal/metrics"
	"github.com/bridge-pay/bridge_pay/internal/money"
	"github.com/bridge-pay/bridge_pay/internal/notification"
	"github.com/bridge-pay/bridge_pay/internal/provider"
	"github.com/bridge-pay/bridge_pay/internal/refs"
	"github.com/bridge-pay/bridge_pay/internal/wallet"
)

// Dependencies are the collaborators of the payment service. Publisher,
// Notifier and Metrics may be nil.
type Dependencies struct {
	Repo      Repository
	Wallets   *wallet.Service
	Fees      *billing.Engine
	Provider  provider.Client
	Publisher events.Publisher
	Notifier  notification.Notifier
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// Service orchestrates payment intents: funding plan validation, wallet
// debits, external legs, fee freezing and settlement.
type Service struct {
	repo      Repository
	wallets   *wallet.Service
	fees      *billing.Engine
	provider  provider.Client
	publisher events.Publisher
	notifier  notification.Notifier
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewService constructs a payment service.
func NewService(deps Dependencies) *Service {
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
		metrics:   deps.Metrics,
		logger:    deps.Logger,
	}
}

// CreateInput describes a new intent. A nil Plan with Autopilot builds a
// wallet-first plan that puts any remainder on M-Pesa.
type CreateInput struct {
	UserID     string
	MerchantID string
	Amount     decimal.Decimal
	Currency   string
	Plan       Plan
	Autopilot  bool
}

// CreateIntent validates and stores a PENDING intent.
func (s *Service) CreateIntent(ctx context.Context, in CreateInput) (Intent, error) {
	amount := money.Round2(in.Amount)
	if !money.Positive(amount) {
		return Intent{}, ErrInvalidAmount
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))

	var plan Plan
	switch {
	case len(in.Plan) > 0:
		var err error
		if plan, err = normalizePlan(in.Plan); err != nil {
			return Intent{}, err
		}
		if !money.EqualCents(plan.Sum(), amount) {
			return Intent{}, mismatch(amount, plan)
		}
	case in.Autopilot:
		var err error
		if plan, err = s.autopilot(ctx, in.UserID, amount, currency); err != nil {
			return Intent{}, err
		}
	}

	now := time.Now().UTC()
	intent := Intent{
		ID:          uuid.NewString(),
		UserID:      in.UserID,
		MerchantID:  in.MerchantID,
		AmountDue:   amount,
		Currency:    currency,
		Status:      StatusPending,
		FundingPlan: plan,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.CreateIntent(ctx, intent); err != nil {
		return Intent{}, fmt.Errorf("create payment intent: %w", err)
	}
	events.Emit(ctx, s.publisher, s.logger, events.New(events.IntentCreated, intent.ID, map[string]any{
		"user_id":     intent.UserID,
		"merchant_id": intent.MerchantID,
		"amount_due":  intent.AmountDue.StringFixed(2),
		"currency":    intent.Currency,
	}))
	return intent, nil
}

func (s *Service) autopilot(ctx context.Context, userID string, amount decimal.Decimal, currency string) (Plan, error) {
	w, err := s.wallets.GetOrCreate(ctx, userID, currency)
	if err != nil {
		return nil, err
	}
	remaining := amount
	var plan Plan
	if available := decimal.Max(decimal.Zero, w.Balance); money.Positive(available) {
		take := decimal.Min(remaining, available)
		plan = append(plan, FundingSource{ID: w.ID, Type: SourceBridgeWallet, Amount: take})
		remaining = remaining.Sub(take)
	}
	if money.Positive(remaining) {
		plan = append(plan, FundingSource{ID: "mpesa", Type: SourceMpesa, Amount: remaining})
	}
	for i := range plan {
		plan[i].Priority = i + 1
	}
	return plan, nil
}

// View is an intent with its external legs.
type View struct {
	Intent Intent
	Legs   []Leg
}

// Get returns an intent visible to the caller.
func (s *Service) Get(ctx context.Context, id, userID string, admin bool) (View, error) {
	intent, err := s.repo.Intent(ctx, id)
	if err != nil {
		return View{}, err
	}
	if intent.UserID != userID && !admin {
		return View{}, ErrForbidden
	}
	legs, err := s.repo.Legs(ctx, id)
	if err != nil {
		return View{}, err
	}
	return View{Intent: intent, Legs: legs}, nil
}

// ConfirmInput carries the caller, an optional plan override and the payer
// details external legs need, keyed by source type or by "mpesa"/"wallet".
type ConfirmInput struct {
	IntentID       string
	UserID         string
	Plan           Plan
	Sources        map[string]SourceMeta
	IdempotencyKey string
}

// Confirm executes the funding plan of a PENDING intent. Every check runs
// before money moves: ownership, state, plan sum in cents, leg metadata and
// wallet ownership. Wallet legs are debited in one atomic posting; external
// legs are then started and recorded PENDING. An intent without external legs
// settles before Confirm returns.
func (s *Service) Confirm(ctx context.Context, in ConfirmInput) (ConfirmResult, error) {
	intent, err := s.repo.Intent(ctx, in.IntentID)
	if err != nil {
		return ConfirmResult{}, err
	}
	if intent.UserID != in.UserID {
		return ConfirmResult{}, ErrForbidden
	}
	if intent.Status != StatusPending {
		return ConfirmResult{}, ErrInvalidState.WithDetails(map[string]any{"status": intent.Status})
	}

	plan := intent.FundingPlan
	if len(in.Plan) > 0 {
		if plan, err = normalizePlan(in.Plan); err != nil {
			return ConfirmResult{}, err
		}
	}
	if !money.EqualCents(plan.Sum(), intent.AmountDue) {
		return ConfirmResult{}, mismatch(intent.AmountDue, plan)
	}
	plan, err = s.prepare(ctx, intent, plan, in.Sources)
	if err != nil {
		return ConfirmResult{}, err
	}

	ok, err := s.repo.ConfirmIntent(ctx, intent.ID, plan, StatusFundedPendingSettlement)
	if err != nil {
		return ConfirmResult{}, fmt.Errorf("confirm payment intent: %w", err)
	}
	if !ok {
		return ConfirmResult{}, ErrInvalidState
	}
	intent.FundingPlan = plan
	intent.Status = StatusFundedPendingSettlement

	debits, err := s.debitWallets(ctx, intent)
	if err != nil {
		if _, rerr := s.repo.TransitionIntent(ctx, intent.ID, StatusFundedPendingSettlement, StatusPending); rerr != nil {
			s.logger.Error("payment intent revert failed", slog.String("intent_id", intent.ID), slog.Any("error", rerr))
		}
		return ConfirmResult{}, err
	}

	starts := s.startExternal(ctx, intent, in.Sources)
	s.freezeFees(ctx, intent)
	events.Emit(ctx, s.publisher, s.logger, events.New(events.IntentConfirmed, intent.ID, map[string]any{
		"wallet_legs":     len(debits),
		"external_legs":   len(starts),
		"idempotency_key": in.IdempotencyKey,
	}))
	s.metrics.IntentStatus(string(StatusFundedPendingSettlement))

	status, err := s.evaluate(ctx, intent.ID)
	if err != nil {
		// Money already moved. ResumeStalled picks the intent up once it is
		// older than the poller's minimum age.
		s.logger.Error("payment intent settlement failed", slog.String("intent_id", intent.ID), slog.Any("error", err))
		status = StatusFundedPendingSettlement
	}
	return ConfirmResult{IntentID: intent.ID, Status: status, WalletDebits: debits, External: starts}, nil
}

// prepare validates leg metadata and resolves the wallet of every wallet leg.
func (s *Service) prepare(ctx context.Context, intent Intent, plan Plan, sources map[string]SourceMeta) (Plan, error) {
	out := make(Plan, len(plan))
	copy(out, plan)
	for i, fs := range out {
		if !money.Positive(fs.Amount) {
			continue
		}
		detail := map[string]any{"source_index": i}
		switch fs.Type {
		case SourceBridgeWallet:
			w, err := s.resolveWallet(ctx, intent, fs.ID)
			if err != nil {
				return nil, err
			}
			out[i].ID = w.ID
		case SourceMpesa:
			if metaFor(sources, fs.Type).Phone() == "" {
				return nil, ErrMpesaPhoneRequired.WithDetails(detail)
			}
		case SourceExternalWallet:
			if strings.TrimSpace(metaFor(sources, fs.Type).WalletNumber) == "" {
				return nil, ErrWalletNumberRequired.WithDetails(detail)
			}
		}
	}
	return out, nil
}

func (s *Service) resolveWallet(ctx context.Context, intent Intent, id string) (ledger.Wallet, error) {
	if id == "" {
		return s.wallets.GetOrCreate(ctx, intent.UserID, intent.Currency)
	}
	w, err := s.wallets.Get(ctx, id)
	if err != nil {
		return ledger.Wallet{}, err
	}
	if w.UserID != intent.UserID {
		return ledger.Wallet{}, ErrWalletNotOwned
	}
	if w.Currency != intent.Currency {
		return ledger.Wallet{}, ledger.ErrCurrencyMismatch
	}
	return w, nil
}

func (s *Service) debitWallets(ctx context.Context, intent Intent) ([]WalletDebit, error) {
	var postings []ledger.Posting
	debits := []WalletDebit{}
	for i, fs := range intent.FundingPlan {
		if fs.Type != SourceBridgeWallet || !money.Positive(fs.Amount) {
			continue
		}
		ref := refs.IntentWalletLeg(intent.ID, i)
		postings = append(postings, ledger.Posting{
			WalletID:    fs.ID,
			Direction:   ledger.Debit,
			Amount:      fs.Amount,
			Currency:    intent.Currency,
			Ref:         ref,
			Narration:   "Checkout debit",
			Metadata:    map[string]any{"payment_intent_id": intent.ID, "source_index": i},
			NoOverdraft: true,
		})
		debits = append(debits, WalletDebit{Index: i, WalletID: fs.ID, Amount: money.Round2(fs.Amount), Ref: ref})
	}
	if len(postings) == 0 {
		return debits, nil
	}
	if _, err := s.wallets.Ledger().PostAtomic(ctx, postings...); err != nil {
		return nil, err
	}
	for _, d := range debits {
		s.wallets.RecordTransaction(ctx, wallet.Transaction{
			WalletID:    d.WalletID,
			Type:        wallet.TypeDebit,
			Direction:   wallet.DirectionOut,
			Amount:      d.Amount,
			Currency:    intent.Currency,
			ExternalRef: d.Ref,
			Metadata:    map[string]any{"payment_intent_id": intent.ID, "source_index": d.Index},
		})
	}
	return debits, nil
}

// startExternal records every external leg and calls the provider for the
// legs that have a provider action. A transport failure leaves the leg
// PENDING for the status poller; an explicit rejection fails it.
func (s *Service) startExternal(ctx context.Context, intent Intent, sources map[string]SourceMeta) []ExternalStart {
	starts := []ExternalStart{}
	for i, fs := range intent.FundingPlan {
		if !fs.Type.External() || !money.Positive(fs.Amount) {
			continue
		}
		orderRef := refs.OrderRef(intent.ID, i)
		leg := Leg{
			ID:       uuid.NewString(),
			IntentID: intent.ID,
			Index:    i,
			Type:     fs.Type,
			Amount:   money.Round2(fs.Amount),
			Currency: intent.Currency,
			OrderRef: orderRef,
			Status:   provider.StatusPending,
			Metadata: map[string]any{"order_reference": orderRef},
		}

		if action, ok := fs.Type.Action(); ok {
			meta := metaFor(sources, fs.Type)
			account := meta.Phone()
			if action == provider.ActionWalletPayment {
				account = strings.TrimSpace(meta.WalletNumber)
			}
			resp, err := s.provider.Call(ctx, provider.Request{
				Action: action,
				Payload: provider.Payment{
					Action:      action,
					Account:     account,
					AccountName: meta.AccountName,
					Amount:      leg.Amount,
					Currency:    intent.Currency,
					Reference:   orderRef,
					Description: "Bridge Checkout",
				}.Payload(),
				IdempotencyKey: orderRef,
			})
			switch {
			case err != nil:
				leg.Metadata["provider_error"] = err.Error()
				s.logger.Warn("provider call failed", slog.String("intent_id", intent.ID), slog.String("order_ref", orderRef), slog.Any("error", err))
			case !resp.OK:
				leg.Status = provider.StatusFailed
				leg.Metadata["provider_response"] = resp.Data
			default:
				leg.ProviderTxID = resp.TransactionID()
				leg.Metadata["provider_response"] = resp.Data
				if mapped := provider.MapStatus(resp.DataStatus()); provider.Terminal(mapped) {
					leg.Status = mapped
				}
			}
		} else {
			leg.Metadata["note"] = "awaiting_out_of_band_initiation"
		}

		if err := s.repo.CreateLeg(ctx, leg); err != nil {
			s.logger.Error("external leg record failed", slog.String("intent_id", intent.ID), slog.String("order_ref", orderRef), slog.Any("error", err))
		}
		starts = append(starts, ExternalStart{
			Index:        i,
			Type:         fs.Type,
			OrderRef:     orderRef,
			ProviderTxID: leg.ProviderTxID,
			Status:       leg.Status,
		})
	}
	return starts
}

// feeRequest describes the fee application of an intent. Plans with more
// than one leg are billed as SPLIT.
func (s *Service) feeRequest(ctx context.Context, intent Intent) billing.ApplyRequest {
	req := billing.ApplyRequest{
		TxType:     feeCategory(intent),
		TxID:       intent.ID,
		Base:       intent.AmountDue,
		Currency:   intent.Currency,
		MerchantID: intent.MerchantID,
	}
	for _, fs := range intent.FundingPlan {
		if fs.Type == SourceBridgeWallet && fs.ID != "" {
			req.CustomerWalletID = fs.ID
			break
		}
	}
	if intent.MerchantID != "" {
		if w, err := s.wallets.GetOrCreate(ctx, intent.MerchantID, intent.Currency); err == nil {
			req.MerchantWalletID = w.ID
		} else {
			s.logger.Warn("merchant wallet lookup failed", slog.String("intent_id", intent.ID), slog.Any("error", err))
		}
	}
	return req
}

func feeCategory(intent Intent) fees.Category {
	if len(intent.FundingPlan) > 1 {
		return fees.CategorySplit
	}
	return fees.CategoryMerchantPayment
}

func (s *Service) freezeFees(ctx context.Context, intent Intent) {
	if s.fees == nil {
		return
	}
	meta := map[string]any{"payment_intent_id": intent.ID, "legs": len(intent.FundingPlan)}
	if _, err := s.fees.Freeze(ctx, s.feeRequest(ctx, intent), meta); err != nil {
		s.logger.Error("fee freeze failed", slog.String("intent_id", intent.ID), slog.Any("error", err))
	}
}

// ApplyLegUpdate applies a provider status to the leg it references. It
// reports false when no leg matches so the caller can try other owners of
// the reference. Non-terminal statuses and replays are no-ops.
func (s *Service) ApplyLegUpdate(ctx context.Context, u provider.StatusUpdate) (bool, error) {
	leg, err := s.repo.FindLeg(ctx, u.OrderRef, u.ProviderTxID)
	if errors.Is(err, ErrLegNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	status := provider.MapStatus(u.Status)
	if !provider.Terminal(status) {
		return true, nil
	}
	changed, err := s.repo.SettleLeg(ctx, leg.ID, status, u.ProviderTxID)
	if err != nil {
		return true, err
	}
	if changed {
		s.logger.Info("external leg resolved",
			slog.String("intent_id", leg.IntentID),
			slog.String("order_ref", leg.OrderRef),
			slog.String("status", status),
		)
	}
	_, err = s.evaluate(ctx, leg.IntentID)
	return true, err
}

// PendingLegs lists legs still waiting for a provider outcome.
func (s *Service) PendingLegs(ctx context.Context, olderThan time.Duration, limit int) ([]Leg, error) {
	return s.repo.PendingLegs(ctx, time.Now().UTC().Add(-olderThan), limit)
}

// evaluate finalizes a funded intent once every external leg is terminal.
// ResumeStalled finalizes funded intents whose legs are all terminal but
// whose settlement or failure never completed, such as a wallet-only intent
// whose merchant credit failed inside Confirm. It returns the number of
// intents that reached SETTLED or FAILED.
func (s *Service) ResumeStalled(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	ids, err := s.repo.StalledIntents(ctx, time.Now().UTC().Add(-olderThan), limit)
	if err != nil {
		return 0, fmt.Errorf("list stalled intents: %w", err)
	}
	done := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		status, err := s.evaluate(ctx, id)
		if err != nil {
			s.logger.Warn("stalled intent still unsettled", slog.String("intent_id", id), slog.Any("error", err))
			continue
		}
		if status == StatusSettled || status == StatusFailed {
			done++
		}
	}
	return done, nil
}

func (s *Service) evaluate(ctx context.Context, intentID string) (Status, error) {
	intent, err := s.repo.Intent(ctx, intentID)
	if err != nil {
		return "", err
	}
	if intent.Status != StatusFundedPendingSettlement {
		return intent.Status, nil
	}
	legs, err := s.repo.Legs(ctx, intentID)
	if err != nil {
		return intent.Status, err
	}
	failed := false
	for _, l := range legs {
		switch l.Status {
		case provider.StatusPending:
			return intent.Status, nil
		case provider.StatusFailed:
			failed = true
		}
	}
	if failed {
		return s.fail(ctx, intent, legs)
	}
	return s.settle(ctx, intent)
}

// settle credits the merchant, moves the intent to SETTLED and posts the
// frozen fees.
func (s *Service) settle(ctx context.Context, intent Intent) (Status, error) {
	req := s.feeRequest(ctx, intent)
	if intent.MerchantID != "" {
		if req.MerchantWalletID == "" {
			return intent.Status, fmt.Errorf("merchant wallet unavailable for intent %s", intent.ID)
		}
		ref := refs.IntentMerchantCredit(intent.ID)
		if _, err := s.wallets.Ledger().Post(ctx, ledger.Posting{
			WalletID:  req.MerchantWalletID,
			Direction: ledger.Credit,
			Amount:    intent.AmountDue,
			Currency:  intent.Currency,
			Ref:       ref,
			Narration: "Checkout settlement",
			Metadata:  map[string]any{"payment_intent_id": intent.ID},
		}); err != nil {
			return intent.Status, fmt.Errorf("credit merchant: %w", err)
		}
		s.wallets.RecordTransaction(ctx, wallet.Transaction{
			WalletID:    req.MerchantWalletID,
			Type:        wallet.TypeCredit,
			Direction:   wallet.DirectionIn,
			Amount:      intent.AmountDue,
			Currency:    intent.Currency,
			ExternalRef: ref,
			Metadata:    map[string]any{"payment_intent_id": intent.ID},
		})
	}

	ok, err := s.repo.TransitionIntent(ctx, intent.ID, StatusFundedPendingSettlement, StatusSettled)
	if err != nil {
		return intent.Status, err
	}
	if !ok {
		current, err := s.repo.Intent(ctx, intent.ID)
		if err != nil {
			return intent.Status, err
		}
		return current.Status, nil
	}

	if s.fees != nil {
		s.fees.SettleBestEffort(ctx, req)
	}
	s.metrics.IntentStatus(string(StatusSettled))
	events.Emit(ctx, s.publisher, s.logger, events.New(events.IntentSettled, intent.ID, map[string]any{
		"merchant_id": intent.MerchantID,
		"amount_due":  intent.AmountDue.StringFixed(2),
		"currency":    intent.Currency,
	}))
	notification.Deliver(ctx, s.notifier, s.logger, notification.Message{
		Kind:        notification.KindIntentSettled,
		Destination: intent.UserID,
		Body:        fmt.Sprintf("Payment of %s %s completed", intent.AmountDue.StringFixed(2), intent.Currency),
	})
	return StatusSettled, nil
}

// fail refunds every wallet debit, asks the provider to refund collected
// external legs and moves the intent to FAILED.
func (s *Service) fail(ctx context.Context, intent Intent, legs []Leg) (Status, error) {
	var refunds []ledger.Posting
	for i, fs := range intent.FundingPlan {
		if fs.Type != SourceBridgeWallet || !money.Positive(fs.Amount) {
			continue
		}
		refunds = append(refunds, ledger.Posting{
			WalletID:  fs.ID,
			Direction: ledger.Credit,
			Amount:    fs.Amount,
			Currency:  intent.Currency,
			Ref:       refs.IntentRefund(intent.ID, i),
			Narration: "Checkout refund",
			Metadata:  map[string]any{"payment_intent_id": intent.ID, "source_index": i},
		})
	}
	if len(refunds) > 0 {
		if _, err := s.wallets.Ledger().PostAtomic(ctx, refunds...); err != nil {
			return intent.Status, fmt.Errorf("refund wallet legs: %w", err)
		}
	}

	ok, err := s.repo.TransitionIntent(ctx, intent.ID, StatusFundedPendingSettlement, StatusFailed)
	if err != nil {
		return intent.Status, err
	}
	if !ok {
		return intent.Status, nil
	}
	if s.fees != nil {
		if _, err := s.fees.Release(ctx, feeCategory(intent), intent.ID); err != nil {
			s.logger.Error("fee release failed", slog.String("intent_id", intent.ID), slog.Any("error", err))
		}
	}

	for _, l := range legs {
		if l.Status != provider.StatusSuccess {
			continue
		}
		resp, err := s.provider.Call(ctx, provider.Request{
			Action: provider.ActionRefund,
			Payload: map[string]any{
				"transaction_id": l.ProviderTxID,
				"reference":      l.OrderRef,
				"amount":         l.Amount.StringFixed(2),
				"currency":       l.Currency,
			},
			IdempotencyKey: l.OrderRef + "-refund",
		})
		if err != nil || !resp.OK {
			s.logger.Error("external leg refund failed",
				slog.String("intent_id", intent.ID),
				slog.String("order_ref", l.OrderRef),
				slog.Any("error", err),
			)
		}
	}

	s.metrics.IntentStatus(string(StatusFailed))
	events.Emit(ctx, s.publisher, s.logger, events.New(events.IntentFailed, intent.ID, map[string]any{
		"amount_due": intent.AmountDue.StringFixed(2),
		"currency":   intent.Currency,
	}))
	notification.Deliver(ctx, s.notifier, s.logger, notification.Message{
		Kind:        notification.KindIntentFailed,
		Destination: intent.UserID,
		Body:        fmt.Sprintf("Payment of %s %s failed; wallet debits were refunded", intent.AmountDue.StringFixed(2), intent.Currency),
	})
	return StatusFailed, nil
}

func normalizePlan(in Plan) (Plan, error) {
	out := make(Plan, 0, len(in))
	for i, fs := range in {
		fs.Type = SourceType(strings.ToUpper(strings.TrimSpace(string(fs.Type))))
		if !fs.Type.Valid() {
			return nil, ErrInvalidFundingType.WithDetails(map[string]any{"source_index": i, "type": fs.Type})
		}
		if !money.Positive(fs.Amount) {
			return nil, ErrInvalidFundingAmount.WithDetails(map[string]any{"source_index": i})
		}
		fs.Amount = money.Round2(fs.Amount)
		out = append(out, fs)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out, nil
}

func mismatch(due decimal.Decimal, plan Plan) error {
	return ErrFundingPlanMismatch.WithDetails(map[string]any{
		"amount_due":    due.StringFixed(2),
		"total_planned": money.Round2(plan.Sum()).StringFixed(2),
	})
}

func metaFor(sources map[string]SourceMeta, t SourceType) SourceMeta {
	if m, ok := sources[string(t)]; ok {
		return m
	}
	switch t {
	case SourceMpesa:
		return sources["mpesa"]
	case SourceExternalWallet:
		return sources["wallet"]
	}
	return SourceMeta{}
}
