package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/segmentio/kafka-go"

	"carsa.local/complaints/internal/events"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestHandleWritesKeyedMessage(t *testing.T) {
	writer := &fakeWriter{}
	sub := newWithWriter(writer, "carsa.conversation-events", nil)

	event := events.Envelope{
		EventID:        "evt_1",
		EventType:      events.TypeTurnCompleted,
		ConversationID: "conv_1",
		Payload:        json.RawMessage(`{}`),
	}
	if err := sub.Handle(context.Background(), event); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(writer.msgs) != 1 {
		t.Fatalf("expected one message, got %d", len(writer.msgs))
	}
	msg := writer.msgs[0]
	if string(msg.Key) != "conv_1" {
		t.Fatalf("unexpected key %q", msg.Key)
	}
	if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != string(events.TypeTurnCompleted) {
		t.Fatalf("unexpected headers %+v", msg.Headers)
	}
	var decoded events.Envelope
	if err := json.Unmarshal(msg.Value, &decoded); err != nil || decoded.EventID != "evt_1" {
		t.Fatalf("unexpected value %s (%v)", msg.Value, err)
	}

	if err := sub.Close(); err != nil || !writer.closed {
		t.Fatalf("expected writer to be closed")
	}
}

func TestHandleWrapsWriteError(t *testing.T) {
	sub := newWithWriter(&fakeWriter{err: errors.New("broker down")}, "topic", nil)
	err := sub.Handle(context.Background(), events.Envelope{EventID: "evt_1", Payload: json.RawMessage(`{}`)})
	if err == nil || !strings.Contains(err.Error(), "broker down") {
		t.Fatalf("expected wrapped write error, got %v", err)
	}
}

func TestNewConfiguresWriter(t *testing.T) {
	sub := New([]string{"localhost:9092"}, "carsa.conversation-events", nil)
	writer, ok := sub.writer.(*kafka.Writer)
	if !ok {
		t.Fatalf("expected kafka writer, got %T", sub.writer)
	}
	if writer.Topic != "carsa.conversation-events" {
		t.Fatalf("unexpected topic %q", writer.Topic)
	}
	if _, ok := writer.Balancer.(*kafka.LeastBytes); !ok {
		t.Fatalf("expected least-bytes balancer")
	}
	if sub.Name() != "kafka" {
		t.Fatalf("unexpected name %q", sub.Name())
	}
}
