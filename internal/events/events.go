// Package events publishes domain events about payment intents, split groups
// and fees.
package events

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Event types.
const (
	IntentCreated   = "payment_intent.created"
	IntentConfirmed = "payment_intent.confirmed"
	IntentSettled   = "payment_intent.settled"
	IntentFailed    = "payment_intent.failed"
	SplitCreated    = "split_group.created"
	SplitExecuted   = "split_group.executed"
	SplitMemberPaid = "split_member.completed"
	FundingPosted   = "wallet.funding_posted"
)

// Event is one published fact. Key orders events of the same aggregate.
type Event struct {
	Type       string         `json:"type"`
	Key        string         `json:"key"`
	OccurredAt time.Time      `json:"occurred_at"`
	Data       map[string]any `json:"data"`
}

// New stamps an event with the current time.
func New(eventType, key string, data map[string]any) Event {
	return Event{Type: eventType, Key: key, OccurredAt: time.Now().UTC(), Data: data}
}

// Publisher delivers events. Callers treat publishing as best-effort.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// LogPublisher writes events to the log. It is used when no broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, e Event) error {
	p.logger.Info("domain event", slog.String("type", e.Type), slog.String("key", e.Key), slog.Any("data", e.Data))
	return nil
}

func (p *LogPublisher) Close() error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Types returns the published event types in order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

// Emit publishes e and logs a failure instead of returning it.
func Emit(ctx context.Context, p Publisher, logger *slog.Logger, e Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, e); err != nil {
		logger.Warn("event publish failed", slog.String("type", e.Type), slog.String("key", e.Key), slog.Any("error", err))
	}
}
