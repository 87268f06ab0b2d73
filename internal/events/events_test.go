package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"

	"github.com/bridge-pay/bridge_pay/internal/logging"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestKafkaPublisherEncodesEvent(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w}

	if err := p.Publish(context.Background(), New(IntentSettled, "pi-1", map[string]any{"amount": "10.00"})); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != "pi-1" || string(msg.Headers[0].Value) != IntentSettled {
		t.Fatalf("unexpected message key=%s headers=%v", msg.Key, msg.Headers)
	}
	var decoded Event
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Type != IntentSettled || decoded.Data["amount"] != "10.00" {
		t.Fatalf("unexpected event %+v", decoded)
	}
}

func TestEmitSwallowsFailures(t *testing.T) {
	p := &KafkaPublisher{writer: &fakeWriter{err: errors.New("broker down")}}
	Emit(context.Background(), p, logging.Discard(), New(SplitExecuted, "g1", nil))

	r := &Recorder{}
	Emit(context.Background(), r, logging.Discard(), New(SplitExecuted, "g1", nil))
	if got := r.Types(); len(got) != 1 || got[0] != SplitExecuted {
		t.Fatalf("unexpected recorded events %v", got)
	}
}
