// Package settlement turns provider status reports into leg updates. Reports
// arrive by webhook, from the provider status queue and from the status
// poller; all three go through the same Reconciler.
package settlement

import (
	"context"
	"errors"
	"log/slog"

	"github.com/bridge-pay/bridge_pay/internal/idempotency"
	"github.com/bridge-pay/bridge_pay/internal/metrics"
	"github.com/bridge-pay/bridge_pay/internal/provider"
	"github.com/bridge-pay/bridge_pay/internal/refs"
)

// Sources of status updates.
const (
	SourceWebhook = "webhook"
	SourceQueue   = "queue"
	SourcePoller  = "poller"
)

// Outcome describes what happened to an update.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeUnmatched Outcome = "unmatched"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeInvalid   Outcome = "invalid"
	OutcomeError     Outcome = "error"
)

// Target owns some of the references the provider reports on.
type Target interface {
	ApplyLegUpdate(ctx context.Context, u provider.StatusUpdate) (handled bool, err error)
}

var errUnmatched = errors.New("no target owns the reference")

// Reconciler offers each update to its targets in order until one handles it.
type Reconciler struct {
	targets []Target
	dedupe  idempotency.Store
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewReconciler builds a reconciler. dedupe may be nil; terminal updates are
// then applied every time they arrive, which the targets tolerate.
func NewReconciler(dedupe idempotency.Store, m *metrics.Metrics, logger *slog.Logger, targets ...Target) *Reconciler {
	return &Reconciler{targets: targets, dedupe: dedupe, metrics: m, logger: logger}
}

// Apply dispatches u and records the outcome.
func (r *Reconciler) Apply(ctx context.Context, source string, u provider.StatusUpdate) (Outcome, error) {
	outcome, err := r.apply(ctx, u)
	r.metrics.Settlement(source, string(outcome))
	attrs := []any{
		slog.String("source", source),
		slog.String("order_ref", u.OrderRef),
		slog.String("provider_tx_id", u.ProviderTxID),
		slog.String("status", u.Status),
		slog.String("outcome", string(outcome)),
	}
	switch outcome {
	case OutcomeError:
		r.logger.Error("status update failed", append(attrs, slog.Any("error", err))...)
	case OutcomeUnmatched, OutcomeInvalid:
		r.logger.Warn("status update ignored", attrs...)
	default:
		r.logger.Info("status update processed", attrs...)
	}
	return outcome, err
}

func (r *Reconciler) apply(ctx context.Context, u provider.StatusUpdate) (Outcome, error) {
	if err := u.Validate(); err != nil {
		return OutcomeInvalid, err
	}
	status := provider.MapStatus(u.Status)
	key := ""
	if provider.Terminal(status) {
		ref := u.OrderRef
		if ref == "" {
			ref = u.ProviderTxID
		}
		key = refs.Webhook(ref, status)
	}

	outcome, replayed, err := idempotency.Replay(ctx, r.dedupe, r.logger, key, func(ctx context.Context) (string, Outcome, error) {
		for _, t := range r.targets {
			handled, err := t.ApplyLegUpdate(ctx, u)
			if err != nil {
				return "", OutcomeError, err
			}
			if handled {
				return u.OrderRef, OutcomeApplied, nil
			}
		}
		return "", OutcomeUnmatched, errUnmatched
	})
	switch {
	case errors.Is(err, errUnmatched):
		return OutcomeUnmatched, nil
	case err != nil:
		return OutcomeError, err
	case replayed:
		return OutcomeDuplicate, nil
	}
	return outcome, nil
}
