package payments

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bridge-pay/bridge_pay/internal/provider"
)

type memoryRepository struct {
	mu      sync.RWMutex
	intents map[string]Intent
	legs    map[string]*Leg
	byOrder map[string]string
}

// NewMemoryRepository constructs an in-memory repository for tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		intents: make(map[string]Intent),
		legs:    make(map[string]*Leg),
		byOrder: make(map[string]string),
	}
}

func (r *memoryRepository) CreateIntent(_ context.Context, intent Intent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	intent.FundingPlan = append(Plan(nil), intent.FundingPlan...)
	r.intents[intent.ID] = intent
	return nil
}

func (r *memoryRepository) Intent(_ context.Context, id string) (Intent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	intent, ok := r.intents[id]
	if !ok {
		return Intent{}, ErrIntentNotFound
	}
	intent.FundingPlan = append(Plan(nil), intent.FundingPlan...)
	return intent, nil
}

func (r *memoryRepository) ConfirmIntent(_ context.Context, id string, plan Plan, status Status) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	intent, ok := r.intents[id]
	if !ok {
		return false, ErrIntentNotFound
	}
	if intent.Status != StatusPending {
		return false, nil
	}
	intent.Status = status
	intent.FundingPlan = append(Plan(nil), plan...)
	intent.UpdatedAt = time.Now().UTC()
	r.intents[id] = intent
	return true, nil
}

func (r *memoryRepository) TransitionIntent(_ context.Context, id string, from, to Status) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	intent, ok := r.intents[id]
	if !ok {
		return false, ErrIntentNotFound
	}
	if intent.Status != from {
		return false, nil
	}
	intent.Status = to
	intent.UpdatedAt = time.Now().UTC()
	r.intents[id] = intent
	return true, nil
}

func (r *memoryRepository) CreateLeg(_ context.Context, leg Leg) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byOrder[leg.OrderRef]; exists {
		return nil
	}
	if leg.ID == "" {
		leg.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if leg.CreatedAt.IsZero() {
		leg.CreatedAt = now
	}
	leg.UpdatedAt = now
	r.legs[leg.ID] = &leg
	r.byOrder[leg.OrderRef] = leg.ID
	return nil
}

func (r *memoryRepository) Legs(_ context.Context, intentID string) ([]Leg, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Leg
	for _, l := range r.legs {
		if l.IntentID == intentID {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

func (r *memoryRepository) FindLeg(_ context.Context, orderRef, providerTxID string) (Leg, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id, ok := r.byOrder[orderRef]; ok && orderRef != "" {
		return *r.legs[id], nil
	}
	if providerTxID != "" {
		for _, l := range r.legs {
			if l.ProviderTxID == providerTxID {
				return *l, nil
			}
		}
	}
	return Leg{}, ErrLegNotFound
}

func (r *memoryRepository) SettleLeg(_ context.Context, legID, status, providerTxID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.legs[legID]
	if !ok {
		return false, ErrLegNotFound
	}
	if l.Status != provider.StatusPending {
		return false, nil
	}
	l.Status = status
	if providerTxID != "" {
		l.ProviderTxID = providerTxID
	}
	l.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *memoryRepository) PendingLegs(_ context.Context, createdBefore time.Time, limit int) ([]Leg, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Leg
	for _, l := range r.legs {
		if l.Status == provider.StatusPending && l.CreatedAt.Before(createdBefore) {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryRepository) StalledIntents(_ context.Context, updatedBefore time.Time, limit int) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	waiting := make(map[string]bool)
	for _, l := range r.legs {
		if l.Status == provider.StatusPending {
			waiting[l.IntentID] = true
		}
	}
	var stalled []Intent
	for _, in := range r.intents {
		if in.Status == StatusFundedPendingSettlement && in.UpdatedAt.Before(updatedBefore) && !waiting[in.ID] {
			stalled = append(stalled, in)
		}
	}
	sort.Slice(stalled, func(i, j int) bool { return stalled[i].UpdatedAt.Before(stalled[j].UpdatedAt) })
	if limit > 0 && len(stalled) > limit {
		stalled = stalled[:limit]
	}
	out := make([]string, 0, len(stalled))
	for _, in := range stalled {
		out = append(out, in.ID)
	}
	return out, nil
}
