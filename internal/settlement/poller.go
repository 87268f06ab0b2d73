package settlement

import (
	"context"
	"log/slog"
	"time"

	"github.com/bridge-pay/bridge_pay/internal/funding"
	"github.com/bridge-pay/bridge_pay/internal/payments"
	"github.com/bridge-pay/bridge_pay/internal/provider"
	"github.com/bridge-pay/bridge_pay/internal/splits"
)

// Pending is a reference still waiting for a provider outcome.
type Pending struct {
	OrderRef     string
	ProviderTxID string
}

// PendingLister lists references pending for longer than olderThan.
type PendingLister func(ctx context.Context, olderThan time.Duration, limit int) ([]Pending, error)

// PaymentLegs lists pending external legs of payment intents.
func PaymentLegs(s *payments.Service) PendingLister {
	return func(ctx context.Context, olderThan time.Duration, limit int) ([]Pending, error) {
		legs, err := s.PendingLegs(ctx, olderThan, limit)
		if err != nil {
			return nil, err
		}
		out := make([]Pending, 0, len(legs))
		for _, l := range legs {
			out = append(out, Pending{OrderRef: l.OrderRef, ProviderTxID: l.ProviderTxID})
		}
		return out, nil
	}
}

// SplitMembers lists pending external split members.
func SplitMembers(s *splits.Service) PendingLister {
	return func(ctx context.Context, olderThan time.Duration, limit int) ([]Pending, error) {
		members, err := s.PendingMembers(ctx, olderThan, limit)
		if err != nil {
			return nil, err
		}
		out := make([]Pending, 0, len(members))
		for _, m := range members {
			out = append(out, Pending{OrderRef: m.OrderRef, ProviderTxID: m.ProviderTxID})
		}
		return out, nil
	}
}

// FundingRequests lists pending top-ups and withdrawals.
func FundingRequests(s *funding.Service) PendingLister {
	return func(ctx context.Context, olderThan time.Duration, limit int) ([]Pending, error) {
		reqs, err := s.Pending(ctx, olderThan, limit)
		if err != nil {
			return nil, err
		}
		out := make([]Pending, 0, len(reqs))
		for _, r := range reqs {
			out = append(out, Pending{OrderRef: r.Reference, ProviderTxID: r.ProviderTxID})
		}
		return out, nil
	}
}

// Resumer finalizes records whose provider legs are already terminal but
// whose own completion did not finish. It returns the number it completed.
type Resumer func(ctx context.Context, olderThan time.Duration, limit int) (int, error)

// StatusSync polls the provider for references that never got a callback.
type StatusSync struct {
	provider   provider.Client
	reconciler *Reconciler
	listers    []PendingLister
	resumers   []Resumer
	minAge     time.Duration
	batch      int
	logger     *slog.Logger
}

// NewStatusSync builds a poller over listers.
func NewStatusSync(client provider.Client, r *Reconciler, minAge time.Duration, batch int, logger *slog.Logger, listers ...PendingLister) *StatusSync {
	if batch <= 0 {
		batch = 50
	}
	return &StatusSync{provider: client, reconciler: r, listers: listers, minAge: minAge, batch: batch, logger: logger}
}

// WithResumers registers resumers run after every provider pass.
func (s *StatusSync) WithResumers(rs ...Resumer) *StatusSync {
	s.resumers = append(s.resumers, rs...)
	return s
}

// Run queries every pending reference once and applies terminal results,
// then runs the resumers. It returns the number of updates applied.
func (s *StatusSync) Run(ctx context.Context) (int, error) {
	applied := 0
	for _, list := range s.listers {
		pending, err := list(ctx, s.minAge, s.batch)
		if err != nil {
			return applied, err
		}
		for _, p := range pending {
			if err := ctx.Err(); err != nil {
				return applied, err
			}
			status, err := provider.QueryStatus(ctx, s.provider, p.OrderRef, p.ProviderTxID)
			if err != nil {
				s.logger.Warn("status query failed", slog.String("order_ref", p.OrderRef), slog.Any("error", err))
				continue
			}
			if !provider.Terminal(status) {
				continue
			}
			outcome, _ := s.reconciler.Apply(ctx, SourcePoller, provider.StatusUpdate{
				OrderRef:     p.OrderRef,
				ProviderTxID: p.ProviderTxID,
				Status:       status,
			})
			if outcome == OutcomeApplied {
				applied++
			}
		}
	}
	for _, resume := range s.resumers {
		n, err := resume(ctx, s.minAge, s.batch)
		applied += n
		if err != nil {
			return applied, err
		}
	}
	return applied, nil
}
