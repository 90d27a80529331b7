package events

import (
	"testing"
	"time"
)

func TestNewEnvelope(t *testing.T) {
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.FixedZone("BST", 3600))
	env, err := New(TypeTurnCompleted, "", "conv-1", TurnCompletedPayload{Outcome: "generated", Intent: "GREETING"}, at)
	if err != nil {
		t.Fatalf("new envelope: %v", err)
	}
	if env.Version != VersionV1 || env.EventID == "" || env.TraceID == "" {
		t.Fatalf("expected generated ids, got %+v", env)
	}
	if !env.OccurredAt.Equal(at) || env.OccurredAt.Location() != time.UTC {
		t.Fatalf("expected utc timestamp, got %v", env.OccurredAt)
	}
	if env.Key() != "conv-1" {
		t.Fatalf("expected conversation key, got %q", env.Key())
	}

	var payload TurnCompletedPayload
	if err := env.DecodePayload(&payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Outcome != "generated" || payload.Intent != "GREETING" {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestNewEnvelopeRejectsUnencodablePayload(t *testing.T) {
	if _, err := New(TypeTurnFailed, "trace", "", make(chan int), time.Now()); err == nil {
		t.Fatalf("expected marshal error")
	}
}

func TestKeyFallsBackToEventID(t *testing.T) {
	env, err := New(TypeRunCompleted, "trace", "", RunCompletedPayload{RunID: "run-1"}, time.Now())
	if err != nil {
		t.Fatalf("new envelope: %v", err)
	}
	if env.Key() != env.EventID || env.TraceID != "trace" {
		t.Fatalf("unexpected key %q / trace %q", env.Key(), env.TraceID)
	}
}

func TestParseType(t *testing.T) {
	got, err := ParseType(" Guardrail.Injection.Detected ")
	if err != nil || got != TypeInjectionDetected {
		t.Fatalf("ParseType = %q, %v", got, err)
	}
	if _, err := ParseType("conversation.turn"); err == nil {
		t.Fatalf("expected error for partial type")
	}
}
