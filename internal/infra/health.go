package infra

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Component states reported by Check.
const (
	StateOK       = "ok"
	StateMemory   = "memory"
	StateDisabled = "disabled"
)

// Health is the per-dependency state of the running process.
type Health struct {
	Postgres string `json:"postgres"`
	Redis    string `json:"redis"`
}

// Healthy reports whether no configured dependency failed its ping.
func (h Health) Healthy() bool {
	return (h.Postgres == StateOK || h.Postgres == StateMemory) &&
		(h.Redis == StateOK || h.Redis == StateDisabled)
}

// Check pings db and cache. A nil db means in-memory storage and a nil cache
// means Redis is not configured; neither counts as a failure.
func Check(ctx context.Context, db *pgxpool.Pool, cache *redis.Client) Health {
	h := Health{Postgres: StateMemory, Redis: StateDisabled}
	if db != nil {
		h.Postgres = StateOK
		if err := db.Ping(ctx); err != nil {
			h.Postgres = err.Error()
		}
	}
	if cache != nil {
		h.Redis = StateOK
		if err := cache.Ping(ctx).Err(); err != nil {
			h.Redis = err.Error()
		}
	}
	return h
}
