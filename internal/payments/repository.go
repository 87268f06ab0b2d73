package payments

import (
	"context"
	"time"
)

// Repository persists intents and their external legs.
type Repository interface {
	CreateIntent(ctx context.Context, intent Intent) error
	Intent(ctx context.Context, id string) (Intent, error)
	// ConfirmIntent moves a PENDING intent to status and stores the effective
	// plan. It reports false when the intent was no longer PENDING.
	ConfirmIntent(ctx context.Context, id string, plan Plan, status Status) (bool, error)
	// TransitionIntent moves the intent from one status to another and
	// reports false when it was not in from.
	TransitionIntent(ctx context.Context, id string, from, to Status) (bool, error)

	// CreateLeg inserts a leg unless its order reference exists.
	CreateLeg(ctx context.Context, leg Leg) error
	Legs(ctx context.Context, intentID string) ([]Leg, error)
	// FindLeg looks a leg up by order reference, falling back to the provider
	// transaction id.
	FindLeg(ctx context.Context, orderRef, providerTxID string) (Leg, error)
	// SettleLeg moves a PENDING leg to a terminal status and reports false
	// when it was already terminal.
	SettleLeg(ctx context.Context, legID, status, providerTxID string) (bool, error)
	PendingLegs(ctx context.Context, createdBefore time.Time, limit int) ([]Leg, error)
	// StalledIntents returns ids of FUNDED_PENDING_SETTLEMENT intents last
	// updated before the cutoff that have no PENDING leg left.
	StalledIntents(ctx context.Context, updatedBefore time.Time, limit int) ([]string, error)
}
