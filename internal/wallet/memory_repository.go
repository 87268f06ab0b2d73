package wallet

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryRepository struct {
	mu    sync.RWMutex
	rows  []Transaction
	byRef map[string]struct{}
}

// NewMemoryRepository constructs an in-memory repository for tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{byRef: make(map[string]struct{})}
}

func (r *memoryRepository) Record(_ context.Context, tx Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tx.ExternalRef != "" {
		if _, exists := r.byRef[tx.ExternalRef]; exists {
			return nil
		}
		r.byRef[tx.ExternalRef] = struct{}{}
	}
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	r.rows = append(r.rows, tx)
	return nil
}

func (r *memoryRepository) List(_ context.Context, walletID string, limit int) ([]Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if limit <= 0 {
		limit = 50
	}
	var out []Transaction
	for i := len(r.rows) - 1; i >= 0 && len(out) < limit; i-- {
		if r.rows[i].WalletID == walletID {
			out = append(out, r.rows[i])
		}
	}
	return out, nil
}
