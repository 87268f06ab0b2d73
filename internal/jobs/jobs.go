// Package jobs runs the periodic background work of the service.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/bridge-pay/bridge_pay/internal/billing"
	"github.com/bridge-pay/bridge_pay/internal/idempotency"
	"github.com/bridge-pay/bridge_pay/internal/settlement"
)

// Jobs holds the job bodies. Any collaborator may be nil; its job is then a
// no-op.
type Jobs struct {
	fees      *billing.Engine
	sync      *settlement.StatusSync
	cleaner   idempotency.Cleaner
	retention time.Duration
	timeout   time.Duration
	logger    *slog.Logger
}

// NewJobs builds the job set. Idempotency records older than retention are
// removed by the cleanup job.
func NewJobs(fees *billing.Engine, sync *settlement.StatusSync, cleaner idempotency.Cleaner, retention time.Duration, logger *slog.Logger) *Jobs {
	return &Jobs{
		fees:      fees,
		sync:      sync,
		cleaner:   cleaner,
		retention: retention,
		timeout:   5 * time.Minute,
		logger:    logger,
	}
}

// RetryFeeOutbox re-applies deferred fee movements.
func (j *Jobs) RetryFeeOutbox() {
	if j.fees == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	completed, err := j.fees.RetryOutbox(ctx, 100)
	if err != nil {
		j.logger.Error("fee outbox retry failed", slog.Any("error", err))
		return
	}
	if completed > 0 {
		j.logger.Info("fee outbox retried", slog.Int("completed", completed))
	}
}

// SyncProviderStatus polls the provider for stale pending references.
func (j *Jobs) SyncProviderStatus() {
	if j.sync == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	applied, err := j.sync.Run(ctx)
	if err != nil {
		j.logger.Error("provider status sync failed", slog.Int("applied", applied), slog.Any("error", err))
		return
	}
	if applied > 0 {
		j.logger.Info("provider status synced", slog.Int("applied", applied))
	}
}

// CleanIdempotency removes expired idempotency records.
func (j *Jobs) CleanIdempotency() {
	if j.cleaner == nil || j.retention <= 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	removed, err := j.cleaner.DeleteBefore(ctx, time.Now().UTC().Add(-j.retention))
	if err != nil {
		j.logger.Error("idempotency cleanup failed", slog.Any("error", err))
		return
	}
	j.logger.Info("idempotency records cleaned", slog.Int64("removed", removed))
}
