package notification

import (
	"context"
	"log/slog"
	"sync"
)

const (
	KindIntentSettled   = "payment_intent_settled"
	KindIntentFailed    = "payment_intent_failed"
	KindSplitMemberPaid = "split_member_paid"
	KindFundingPosted   = "wallet_funding_posted"
)

// Message describes a notification payload.
type Message struct {
	Kind        string
	Destination string
	Body        string
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification", "kind", message.Kind, "destination", message.Destination, "body", message.Body)
	return nil
}

// Inbox keeps sent messages in memory.
type Inbox struct {
	mu       sync.Mutex
	Messages []Message
}

func (i *Inbox) Send(_ context.Context, message Message) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.Messages = append(i.Messages, message)
	return nil
}

// Kinds returns the kinds of sent messages in order.
func (i *Inbox) Kinds() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]string, len(i.Messages))
	for n, m := range i.Messages {
		out[n] = m.Kind
	}
	return out
}

// Deliver sends message and logs a failure instead of returning it.
func Deliver(ctx context.Context, n Notifier, logger *slog.Logger, message Message) {
	if n == nil {
		return
	}
	if err := n.Send(ctx, message); err != nil {
		logger.Warn("notification failed", slog.String("kind", message.Kind), slog.String("destination", message.Destination), slog.Any("error", err))
	}
}
