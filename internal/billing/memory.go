package billing

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bridge-pay/bridge_pay/internal/fees"
)

type memoryRepository struct {
	mu    sync.RWMutex
	lines map[string]*Line
}

// NewMemoryRepository constructs an in-memory billing line store.
func NewMemoryRepository() Repository {
	return &memoryRepository{lines: make(map[string]*Line)}
}

func (r *memoryRepository) UpsertPosted(_ context.Context, line Line) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	if existing, ok := r.lines[line.Ref]; ok {
		already := existing.Status == StatusPosted
		existing.Status = StatusPosted
		existing.UpdatedAt = now
		if existing.Metadata == nil {
			existing.Metadata = map[string]any{}
		}
		for k, v := range line.Metadata {
			existing.Metadata[k] = v
		}
		return already, nil
	}
	line.ID = uuid.NewString()
	line.Status = StatusPosted
	line.CreatedAt = now
	line.UpdatedAt = now
	r.lines[line.Ref] = &line
	return false, nil
}

func (r *memoryRepository) InsertPending(_ context.Context, line Line) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.lines[line.Ref]; ok {
		return false, nil
	}
	now := time.Now().UTC()
	line.ID = uuid.NewString()
	line.Status = StatusPending
	line.CreatedAt = now
	line.UpdatedAt = now
	r.lines[line.Ref] = &line
	return true, nil
}

func (r *memoryRepository) PromotePending(_ context.Context, txType fees.Category, txID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, l := range r.lines {
		if l.TxType == txType && l.TxID == txID && l.Status == StatusPending {
			l.Status = StatusPosted
			l.UpdatedAt = time.Now().UTC()
			n++
		}
	}
	return n, nil
}

func (r *memoryRepository) VoidPending(_ context.Context, txType fees.Category, txID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, l := range r.lines {
		if l.TxType == txType && l.TxID == txID && l.Status == StatusPending {
			l.Status = StatusVoid
			l.UpdatedAt = time.Now().UTC()
			n++
		}
	}
	return n, nil
}

func (r *memoryRepository) ByTransaction(_ context.Context, txType fees.Category, txID string) ([]Line, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Line
	for _, l := range r.lines {
		if l.TxType == txType && l.TxID == txID {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FeeCode < out[j].FeeCode })
	return out, nil
}

type memoryOutbox struct {
	mu    sync.Mutex
	tasks map[string]*Task
}

// NewMemoryOutbox constructs an in-memory fee outbox.
func NewMemoryOutbox() Outbox {
	return &memoryOutbox{tasks: make(map[string]*Task)}
}

func outboxKey(req ApplyRequest) string {
	return string(req.TxType) + "|" + req.TxID
}

func (o *memoryOutbox) Enqueue(_ context.Context, req ApplyRequest, lastErr string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	now := time.Now().UTC()
	if t, ok := o.tasks[outboxKey(req)]; ok {
		t.Request = req
		t.LastError = lastErr
		t.Status = TaskPending
		t.NextAttemptAt = now
		return nil
	}
	o.tasks[outboxKey(req)] = &Task{
		ID:            uuid.NewString(),
		Request:       req,
		LastError:     lastErr,
		Status:        TaskPending,
		NextAttemptAt: now,
		CreatedAt:     now,
	}
	return nil
}

func (o *memoryOutbox) Due(_ context.Context, now time.Time, limit int) ([]Task, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []Task
	for _, t := range o.tasks {
		if t.Status == TaskPending && !t.NextAttemptAt.After(now) {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextAttemptAt.Before(out[j].NextAttemptAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (o *memoryOutbox) find(id string) *Task {
	for _, t := range o.tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

func (o *memoryOutbox) Complete(_ context.Context, id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if t := o.find(id); t != nil {
		t.Status = TaskCompleted
	}
	return nil
}

func (o *memoryOutbox) Reschedule(_ context.Context, id, lastErr string, next time.Time, abandon bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if t := o.find(id); t != nil {
		t.Attempts++
		t.LastError = lastErr
		t.NextAttemptAt = next
		if abandon {
			t.Status = TaskAbandoned
		}
	}
	return nil
}
