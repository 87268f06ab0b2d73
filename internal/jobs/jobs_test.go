package jobs

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/bridge-pay/bridge_pay/internal/idempotency"
	"github.com/bridge-pay/bridge_pay/internal/logging"
)

func TestRegisterSkipsEmptyAndInvalidSpecs(t *testing.T) {
	j := NewJobs(nil, nil, nil, time.Hour, logging.Discard())
	s := NewScheduler(j, Schedules{FeeOutbox: "@every 1m", StatusSync: "every so often"}, logging.Discard())
	if got := s.Register(); got != 1 {
		t.Fatalf("expected 1 registered job, got %d", got)
	}
}

func TestNilCollaboratorsAreNoops(t *testing.T) {
	j := NewJobs(nil, nil, nil, time.Hour, logging.Discard())
	j.RetryFeeOutbox()
	j.SyncProviderStatus()
	j.CleanIdempotency()
}

func TestCleanIdempotencyRemovesExpiredRecords(t *testing.T) {
	store := idempotency.NewMemoryStore()
	ctx := context.Background()
	old := idempotency.Record{Key: "old", Response: json.RawMessage(`{}`), CreatedAt: time.Now().UTC().Add(-48 * time.Hour)}
	fresh := idempotency.Record{Key: "fresh", Response: json.RawMessage(`{}`), CreatedAt: time.Now().UTC()}
	for _, rec := range []idempotency.Record{old, fresh} {
		if err := store.Save(ctx, rec); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	NewJobs(nil, nil, store, 24*time.Hour, logging.Discard()).CleanIdempotency()

	if _, ok, _ := store.Find(ctx, "old"); ok {
		t.Fatalf("expected old record removed")
	}
	if _, ok, _ := store.Find(ctx, "fresh"); !ok {
		t.Fatalf("expected fresh record kept")
	}
}
