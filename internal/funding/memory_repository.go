package funding

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bridge-pay/bridge_pay/internal/provider"
)

type memoryRepository struct {
	mu   sync.Mutex
	rows map[string]*Request
}

// NewMemoryRepository constructs an in-memory repository for tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{rows: make(map[string]*Request)}
}

func (r *memoryRepository) Create(_ context.Context, req Request) (Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.rows[req.Reference]; ok {
		return *existing, nil
	}
	r.rows[req.Reference] = &req
	return req, nil
}

func (r *memoryRepository) Find(_ context.Context, reference, providerTxID string) (Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row, ok := r.rows[reference]; ok && reference != "" {
		return *row, nil
	}
	if providerTxID != "" {
		for _, row := range r.rows {
			if row.ProviderTxID == providerTxID {
				return *row, nil
			}
		}
	}
	return Request{}, ErrRequestNotFound
}

func (r *memoryRepository) Settle(_ context.Context, id, status, providerTxID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.ID != id {
			continue
		}
		if row.Status != provider.StatusPending {
			return false, nil
		}
		row.Status = status
		if providerTxID != "" {
			row.ProviderTxID = providerTxID
		}
		row.UpdatedAt = time.Now().UTC()
		return true, nil
	}
	return false, ErrRequestNotFound
}

func (r *memoryRepository) Pending(_ context.Context, updatedBefore time.Time, limit int) ([]Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Request
	for _, row := range r.rows {
		if row.Status == provider.StatusPending && row.UpdatedAt.Before(updatedBefore) {
			out = append(out, *row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
