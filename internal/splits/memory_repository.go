package splits

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryRepository struct {
	mu      sync.RWMutex
	groups  map[string]Group
	members map[string]*Member
}

// NewMemoryRepository constructs an in-memory repository for tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{groups: make(map[string]Group), members: make(map[string]*Member)}
}

func (r *memoryRepository) CreateGroup(_ context.Context, g Group, members []Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.groups[g.ID] = g
	for _, m := range members {
		m := m
		r.members[m.ID] = &m
	}
	return nil
}

func (r *memoryRepository) Group(_ context.Context, id string) (Group, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.groups[id]
	if !ok {
		return Group{}, ErrGroupNotFound
	}
	return g, nil
}

func (r *memoryRepository) Members(_ context.Context, groupID string) ([]Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Member
	for _, m := range r.members {
		if m.GroupID == groupID {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (r *memoryRepository) SetGroupStatus(_ context.Context, id, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.groups[id]
	if !ok {
		return ErrGroupNotFound
	}
	g.Status = status
	g.UpdatedAt = time.Now().UTC()
	r.groups[id] = g
	return nil
}

func (r *memoryRepository) UpdateMember(_ context.Context, m Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.members[m.ID]
	if !ok {
		return ErrMemberNotFound
	}
	cur.Status = m.Status
	cur.OrderRef = m.OrderRef
	cur.ProviderTxID = m.ProviderTxID
	if m.Metadata != nil {
		cur.Metadata = m.Metadata
	}
	cur.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *memoryRepository) FindMember(_ context.Context, orderRef, providerTxID string) (Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if orderRef != "" {
		for _, m := range r.members {
			if m.OrderRef == orderRef {
				return *m, nil
			}
		}
	}
	if providerTxID != "" {
		for _, m := range r.members {
			if m.ProviderTxID == providerTxID {
				return *m, nil
			}
		}
	}
	return Member{}, ErrMemberNotFound
}

func (r *memoryRepository) SettleMember(_ context.Context, memberID, status, providerTxID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[memberID]
	if !ok {
		return false, ErrMemberNotFound
	}
	if m.Status != StatusPending {
		return false, nil
	}
	m.Status = status
	if providerTxID != "" {
		m.ProviderTxID = providerTxID
	}
	m.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *memoryRepository) PendingMembers(_ context.Context, updatedBefore time.Time, limit int) ([]Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Member
	for _, m := range r.members {
		if m.Status == StatusPending && m.OrderRef != "" && m.UpdatedAt.Before(updatedBefore) {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
