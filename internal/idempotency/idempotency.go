// Package idempotency stores the result of a side-effecting request under a
// caller-supplied or derived key so retries replay the stored result instead
// of executing again.
package idempotency

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// Record is a stored result. Records are write-once.
type Record struct {
	Key        string          `json:"key"`
	ResourceID string          `json:"resource_id"`
	Response   json.RawMessage `json:"response"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Store is the idempotency record store.
type Store interface {
	// Find returns the record for key; ok is false when none exists.
	Find(ctx context.Context, key string) (rec Record, ok bool, err error)
	// Save stores rec unless a record already exists for its key.
	Save(ctx context.Context, rec Record) error
}

// Cleaner is implemented by stores whose records do not expire by themselves.
type Cleaner interface {
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Replay runs fn at most once per key. When a record exists its response is
// decoded into T and replayed is true. An empty key always runs fn. A failure
// to save the result is logged and does not fail the call; the side effects
// already happened and ref-level idempotency guards a second run.
func Replay[T any](ctx context.Context, store Store, logger *slog.Logger, key string, fn func(context.Context) (string, T, error)) (result T, replayed bool, err error) {
	if key == "" || store == nil {
		_, result, err = fn(ctx)
		return result, false, err
	}

	rec, ok, err := store.Find(ctx, key)
	if err != nil {
		return result, false, fmt.Errorf("idempotency lookup: %w", err)
	}
	if ok {
		if err := json.Unmarshal(rec.Response, &result); err != nil {
			return result, false, fmt.Errorf("decode stored response for %s: %w", key, err)
		}
		return result, true, nil
	}

	resourceID, result, err := fn(ctx)
	if err != nil {
		return result, false, err
	}
	payload, merr := json.Marshal(result)
	if merr != nil {
		logger.Error("idempotency encode failed", slog.String("key", key), slog.Any("error", merr))
		return result, false, nil
	}
	if serr := store.Save(ctx, Record{Key: key, ResourceID: resourceID, Response: payload, CreatedAt: time.Now().UTC()}); serr != nil {
		logger.Error("idempotency save failed", slog.String("key", key), slog.Any("error", serr))
	}
	return result, false, nil
}
