package splits

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
	"github.com/bridge-pay/bridge_pay/internal/idempotency"
	"github.com/bridge-pay/bridge_pay/internal/ledger"
	"github.com/bridge-pay/bridge_pay/internal/metrics"
	"github.com/bridge-pay/bridge_pay/internal/money"
	"github.com/bridge-pay/bridge_pay/internal/notification"
	"github.com/bridge-pay/bridge_pay/internal/provider"
	"github.com/bridge-pay/bridge_pay/internal/refs"
	"github.com/bridge-pay/bridge_pay/internal/wallet"
)

// Roles allowed to act on groups they do not own.
const (
	RoleAdmin    = "admin"
	RoleMerchant = "merchant"
)

// Dependencies are the collaborators of the split service. Fees,
// Idempotency, Publisher, Notifier and Metrics may be nil.
type Dependencies struct {
	Repo        Repository
	Wallets     *wallet.Service
	Fees        *billing.Engine
	Provider    provider.Client
	Idempotency idempotency.Store
	Publisher   events.Publisher
	Notifier    notification.Notifier
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
}

// Service creates and executes split groups.
type Service struct {
	repo        Repository
	wallets     *wallet.Service
	fees        *billing.Engine
	provider    provider.Client
	idempotency idempotency.Store
	publisher   events.Publisher
	notifier    notification.Notifier
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// NewService constructs a split service.
func NewService(deps Dependencies) *Service {
	if deps.Provider == nil {
		deps.Provider = provider.StaticClient{}
	}
	return &Service{
		repo:        deps.Repo,
		wallets:     deps.Wallets,
		fees:        deps.Fees,
		provider:    deps.Provider,
		idempotency: deps.Idempotency,
		publisher:   deps.Publisher,
		notifier:    deps.Notifier,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
	}
}

// MemberInput describes one payee. Amount is ignored for equal splits.
type MemberInput struct {
	RecipientUserID string
	Payee           string
	Method          Method
	Amount          decimal.Decimal
	PhoneNumber     string
	WalletNumber    string
}

// CreateInput describes a new group. A zero Total with custom shares takes
// the sum of the shares. Method is the default for members without one.
type CreateInput struct {
	UserID    string
	Currency  string
	Total     decimal.Decimal
	SplitType string
	Method    Method
	Members   []MemberInput
	Metadata  map[string]any
}

// View is a group with its members.
type View struct {
	Group   Group
	Members []Member
}

// Create validates the shares and stores a pending group.
func (s *Service) Create(ctx context.Context, in CreateInput) (View, error) {
	if len(in.Members) == 0 {
		return View{}, ErrNoMembers
	}
	splitType := strings.ToLower(strings.TrimSpace(in.SplitType))
	if splitType == "" {
		splitType = TypeEqual
		for _, m := range in.Members {
			if !m.Amount.IsZero() {
				splitType = TypeCustom
				break
			}
		}
	}

	total := money.Round2(in.Total)
	var shares []decimal.Decimal
	switch splitType {
	case TypeEqual:
		if !money.Positive(total) {
			return View{}, ErrInvalidTotal
		}
		shares = EqualShares(total, len(in.Members))
	case TypeCustom:
		shares = make([]decimal.Decimal, len(in.Members))
		for i, m := range in.Members {
			amount := money.Round2(m.Amount)
			if !money.Positive(amount) {
				return View{}, ErrInvalidShare.WithDetails(map[string]any{"member_index": i})
			}
			shares[i] = amount
		}
		sum := money.Sum(shares...)
		if total.IsZero() {
			total = sum
		} else if !money.EqualCents(sum, total) {
			return View{}, ErrSharesMismatch.WithDetails(map[string]any{
				"total_amount": total.StringFixed(2),
				"members_sum":  sum.StringFixed(2),
			})
		}
	default:
		return View{}, ErrInvalidSplitType
	}

	now := time.Now().UTC()
	g := Group{
		ID:          uuid.NewString(),
		UserID:      in.UserID,
		TotalAmount: total,
		Currency:    strings.ToUpper(strings.TrimSpace(in.Currency)),
		SplitType:   splitType,
		Status:      StatusPending,
		Metadata:    in.Metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	members := make([]Member, len(in.Members))
	for i, mi := range in.Members {
		method := mi.Method
		if method == "" {
			method = in.Method
		}
		if method == "" {
			method = MethodBridgeWallet
		}
		if !method.Valid() {
			return View{}, ErrInvalidMethod.WithDetails(map[string]any{"member_index": i, "method": method})
		}
		members[i] = Member{
			ID:              uuid.NewString(),
			GroupID:         g.ID,
			Position:        i,
			RecipientUserID: strings.TrimSpace(mi.RecipientUserID),
			Payee:           strings.TrimSpace(mi.Payee),
			Method:          method,
			Amount:          shares[i],
			Status:          StatusPending,
			PhoneNumber:     strings.TrimSpace(mi.PhoneNumber),
			WalletNumber:    strings.TrimSpace(mi.WalletNumber),
			Metadata:        map[string]any{},
			CreatedAt:       now,
			UpdatedAt:       now,
		}
	}
	if err := s.repo.CreateGroup(ctx, g, members); err != nil {
		return View{}, fmt.Errorf("create split group: %w", err)
	}
	events.Emit(ctx, s.publisher, s.logger, events.New(events.SplitCreated, g.ID, map[string]any{
		"user_id":      g.UserID,
		"total_amount": g.TotalAmount.StringFixed(2),
		"currency":     g.Currency,
		"members":      len(members),
	}))
	return View{Group: g, Members: members}, nil
}

// Get returns a group visible to the caller.
func (s *Service) Get(ctx context.Context, id, userID, role string) (View, error) {
	g, err := s.authorize(ctx, id, userID, role)
	if err != nil {
		return View{}, err
	}
	members, err := s.repo.Members(ctx, id)
	if err != nil {
		return View{}, err
	}
	return View{Group: g, Members: members}, nil
}

func (s *Service) authorize(ctx context.Context, id, userID, role string) (Group, error) {
	g, err := s.repo.Group(ctx, id)
	if err != nil {
		return Group{}, err
	}
	if g.UserID != userID && role != RoleAdmin && role != RoleMerchant {
		return Group{}, ErrForbidden
	}
	return g, nil
}

// ExecuteInput identifies the group and caller. An empty IdempotencyKey uses
// the group's default execution key; a supplied one is scoped to the group
// and the caller.
type ExecuteInput struct {
	GroupID        string
	UserID         string
	Role           string
	IdempotencyKey string
}

// Execute pays every member that has not completed yet. A member failure is
// recorded on that member and never stops the batch. The counts are stored
// under the idempotency key and replayed on retry.
func (s *Service) Execute(ctx context.Context, in ExecuteInput) (Result, bool, error) {
	g, err := s.authorize(ctx, in.GroupID, in.UserID, in.Role)
	if err != nil {
		return Result{}, false, err
	}
	key := refs.SplitExecuteKey(g.ID)
	if k := strings.TrimSpace(in.IdempotencyKey); k != "" {
		key = refs.SplitExecuteCallerKey(g.ID, in.UserID, k)
	}
	return idempotency.Replay(ctx, s.idempotency, s.logger, key, func(ctx context.Context) (string, Result, error) {
		res, err := s.execute(ctx, g)
		return g.ID, res, err
	})
}

func (s *Service) execute(ctx context.Context, g Group) (Result, error) {
	members, err := s.repo.Members(ctx, g.ID)
	if err != nil {
		return Result{}, err
	}
	if len(members) == 0 {
		return Result{}, ErrNoMembers
	}

	for i := range members {
		m := &members[i]
		if m.Status == StatusCompleted {
			continue
		}
		if err := s.pay(ctx, g, m); err != nil {
			s.logger.Warn("split member failed",
				slog.String("group_id", g.ID),
				slog.String("member_id", m.ID),
				slog.String("method", string(m.Method)),
				slog.Any("error", err),
			)
			m.Status = StatusFailed
			m.Metadata = map[string]any{"error": err.Error()}
		}
		if err := s.repo.UpdateMember(ctx, *m); err != nil {
			s.logger.Error("split member update failed", slog.String("member_id", m.ID), slog.Any("error", err))
		}
		s.metrics.SplitMember(string(m.Method), m.Status)
		if m.Status == StatusCompleted {
			s.memberPaid(ctx, g, *m)
		}
	}

	res := Result{}
	for _, m := range members {
		switch m.Status {
		case StatusCompleted:
			res.Completed++
		case StatusPending:
			res.Pending++
		default:
			res.Failed++
		}
	}
	status := DeriveStatus(members)
	if err := s.repo.SetGroupStatus(ctx, g.ID, status); err != nil {
		return res, fmt.Errorf("update split group status: %w", err)
	}
	events.Emit(ctx, s.publisher, s.logger, events.New(events.SplitExecuted, g.ID, map[string]any{
		"status":    status,
		"completed": res.Completed,
		"pending":   res.Pending,
		"failed":    res.Failed,
	}))
	return res, nil
}

// pay moves one member forward and sets its status. A returned error fails
// the member.
func (s *Service) pay(ctx context.Context, g Group, m *Member) error {
	switch m.Method {
	case MethodBridgeWallet:
		return s.payWallet(ctx, g, m)
	case MethodSTK, MethodWallet:
		return s.payExternal(ctx, g, m)
	}
	return ErrInvalidMethod
}

func (s *Service) payWallet(ctx context.Context, g Group, m *Member) error {
	if m.RecipientUserID == "" {
		return errors.New("recipient_user_id is required for bridge_wallet members")
	}
	payer, err := s.wallets.GetOrCreate(ctx, g.UserID, g.Currency)
	if err != nil {
		return err
	}
	recipient, err := s.wallets.GetOrCreate(ctx, m.RecipientUserID, g.Currency)
	if err != nil {
		return err
	}
	meta := map[string]any{"split_group_id": g.ID, "split_member_id": m.ID}
	debitRef := refs.SplitLeg(g.ID, m.ID, refs.SideCustomer)
	creditRef := refs.SplitLeg(g.ID, m.ID, refs.SideRecipient)
	if _, err := s.wallets.Ledger().PostAtomic(ctx,
		ledger.Posting{
			WalletID:    payer.ID,
			Direction:   ledger.Debit,
			Amount:      m.Amount,
			Currency:    g.Currency,
			Ref:         debitRef,
			Narration:   "Split payment",
			Metadata:    meta,
			NoOverdraft: true,
		},
		ledger.Posting{
			WalletID:  recipient.ID,
			Direction: ledger.Credit,
			Amount:    m.Amount,
			Currency:  g.Currency,
			Ref:       creditRef,
			Narration: "Split receipt",
			Metadata:  meta,
		},
	); err != nil {
		return err
	}
	s.wallets.RecordTransaction(ctx, wallet.Transaction{
		WalletID:    payer.ID,
		Type:        wallet.TypeDebit,
		Direction:   wallet.DirectionOut,
		Amount:      m.Amount,
		Currency:    g.Currency,
		ExternalRef: debitRef,
		Metadata:    meta,
	})
	s.wallets.RecordTransaction(ctx, wallet.Transaction{
		WalletID:    recipient.ID,
		Type:        wallet.TypeCredit,
		Direction:   wallet.DirectionIn,
		Amount:      m.Amount,
		Currency:    g.Currency,
		ExternalRef: creditRef,
		Metadata:    meta,
	})
	m.Status = StatusCompleted
	return nil
}

func (s *Service) payExternal(ctx context.Context, g Group, m *Member) error {
	action, account := provider.ActionSTKPush, m.PhoneNumber
	if m.Method == MethodWallet {
		action, account = provider.ActionWalletPayment, m.WalletNumber
	}
	if account == "" {
		if m.Method == MethodWallet {
			return errors.New("wallet_number is required for wallet members")
		}
		return errors.New("phone_number is required for stk members")
	}
	orderRef := refs.SplitMemberOrder(g.ID, m.ID)
	m.OrderRef = orderRef
	resp, err := s.provider.Call(ctx, provider.Request{
		Action: action,
		Payload: provider.Payment{
			Action:      action,
			Account:     account,
			AccountName: m.Payee,
			Amount:      m.Amount,
			Currency:    g.Currency,
			Reference:   orderRef,
			Description: "Bridge Split",
		}.Payload(),
		IdempotencyKey: orderRef,
	})
	if err != nil {
		return fmt.Errorf("provider %s: %w", action, err)
	}
	m.ProviderTxID = resp.TransactionID()
	m.Metadata = map[string]any{"provider_response": resp.Data}
	switch {
	case !resp.OK:
		m.Status = StatusFailed
	case provider.MapStatus(resp.DataStatus()) == provider.StatusSuccess:
		m.Status = StatusCompleted
	default:
		m.Status = StatusPending
	}
	return nil
}

// memberPaid applies SPLIT fees on the member leg and announces it.
func (s *Service) memberPaid(ctx context.Context, g Group, m Member) {
	if s.fees != nil {
		req := billing.ApplyRequest{
			TxType:   fees.CategorySplit,
			TxID:     m.ID,
			Base:     m.Amount,
			Currency: g.Currency,
		}
		if m.Method == MethodBridgeWallet {
			if w, err := s.wallets.GetOrCreate(ctx, g.UserID, g.Currency); err == nil {
				req.CustomerWalletID = w.ID
			}
		}
		s.fees.ApplyBestEffort(ctx, req)
	}
	events.Emit(ctx, s.publisher, s.logger, events.New(events.SplitMemberPaid, g.ID, map[string]any{
		"member_id": m.ID,
		"method":    string(m.Method),
		"amount":    m.Amount.StringFixed(2),
		"currency":  g.Currency,
	}))
	destination := m.RecipientUserID
	if destination == "" {
		destination = m.Payee
	}
	notification.Deliver(ctx, s.notifier, s.logger, notification.Message{
		Kind:        notification.KindSplitMemberPaid,
		Destination: destination,
		Body:        fmt.Sprintf("You received %s %s from a split payment", m.Amount.StringFixed(2), g.Currency),
	})
}

// ApplyLegUpdate settles a pending external member from a provider status.
// It reports false when no member matches the reference.
func (s *Service) ApplyLegUpdate(ctx context.Context, u provider.StatusUpdate) (bool, error) {
	m, err := s.repo.FindMember(ctx, u.OrderRef, u.ProviderTxID)
	if errors.Is(err, ErrMemberNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	var status string
	switch provider.MapStatus(u.Status) {
	case provider.StatusSuccess:
		status = StatusCompleted
	case provider.StatusFailed:
		status = StatusFailed
	default:
		return true, nil
	}
	changed, err := s.repo.SettleMember(ctx, m.ID, status, u.ProviderTxID)
	if err != nil || !changed {
		return true, err
	}
	g, err := s.repo.Group(ctx, m.GroupID)
	if err != nil {
		return true, err
	}
	m.Status = status
	s.metrics.SplitMember(string(m.Method), status)
	if status == StatusCompleted {
		s.memberPaid(ctx, g, m)
	}
	members, err := s.repo.Members(ctx, g.ID)
	if err != nil {
		return true, err
	}
	return true, s.repo.SetGroupStatus(ctx, g.ID, DeriveStatus(members))
}

// PendingMembers lists external members still waiting for a provider outcome.
func (s *Service) PendingMembers(ctx context.Context, olderThan time.Duration, limit int) ([]Member, error) {
	return s.repo.PendingMembers(ctx, time.Now().UTC().Add(-olderThan), limit)
}
