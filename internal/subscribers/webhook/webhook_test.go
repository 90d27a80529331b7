package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"carsa.local/complaints/internal/events"
)

func TestHandlePostsEnvelopeWithHeaders(t *testing.T) {
	var (
		got     http.Header
		gotBody []byte
		gotPath string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		got = r.Header.Clone()
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	event := newTestEvent(events.TypeTurnCompleted)
	sub := New(Config{Name: "crm", URL: server.URL + "/events"}, nil)
	if err := sub.Handle(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotPath != "/events" {
		t.Fatalf("unexpected path %s", gotPath)
	}
	for header, want := range map[string]string{
		"Content-Type":     "application/json",
		HeaderEvent:        "conversation.turn.completed",
		HeaderEventID:      "evt_1",
		HeaderTrace:        "trace_1",
		HeaderConversation: "conv_1",
	} {
		if got.Get(header) != want {
			t.Fatalf("header %s = %q, want %q", header, got.Get(header), want)
		}
	}
	if got.Get(HeaderSignature) != "" || got.Get(HeaderTimestamp) != "" {
		t.Fatalf("expected unsigned request without a secret")
	}
	var decoded events.Envelope
	if err := json.Unmarshal(gotBody, &decoded); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if decoded.EventID != event.EventID || decoded.EventType != event.EventType {
		t.Fatalf("unexpected body %s", gotBody)
	}
}

func TestHandleSignsBody(t *testing.T) {
	var ts, sig string
	var body []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts = r.Header.Get(HeaderTimestamp)
		sig = r.Header.Get(HeaderSignature)
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	sub := New(Config{URL: server.URL, Secret: "s3cret"}, nil)
	if err := sub.Handle(context.Background(), newTestEvent(events.TypeInjectionDetected)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts != "1700000000" {
		t.Fatalf("unexpected timestamp %q", ts)
	}
	if want := "sha256=" + Sign([]byte("s3cret"), ts, body); sig != want {
		t.Fatalf("signature = %q, want %q", sig, want)
	}
	if sig == "sha256="+Sign([]byte("other"), ts, body) {
		t.Fatalf("signature should depend on the secret")
	}
}

func TestSignKnownVector(t *testing.T) {
	const want = "1ba6b8171186efc613e8bcc0cbdab2748f24984d7c5a84faa2637afa0e40d224"
	if got := Sign([]byte("key"), "1", []byte("{}")); got != want {
		t.Fatalf("Sign = %s, want %s", got, want)
	}
	if Sign([]byte("key"), "2", []byte("{}")) == want {
		t.Fatalf("signature should cover the timestamp")
	}
}

func TestHandleSkipsUnselectedEvents(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	selected, err := ParseEvents([]string{"guardrail.injection.detected", "simulation.run.completed"})
	if err != nil {
		t.Fatalf("parse events: %v", err)
	}
	sub := New(Config{URL: server.URL, Events: selected}, nil)

	for _, eventType := range []events.EventType{events.TypeTurnStarted, events.TypeTurnCompleted, events.TypeSimulationCompleted} {
		if err := sub.Handle(context.Background(), newTestEvent(eventType)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if n := atomic.LoadInt32(&calls); n != 0 {
		t.Fatalf("expected no deliveries, got %d", n)
	}
	for _, eventType := range []events.EventType{events.TypeInjectionDetected, events.TypeRunCompleted} {
		if err := sub.Handle(context.Background(), newTestEvent(eventType)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Fatalf("expected two deliveries, got %d", n)
	}
}

func TestParseEventsRejectsUnknown(t *testing.T) {
	if _, err := ParseEvents([]string{"simulation.completed", "turn.done"}); err == nil {
		t.Fatalf("expected unknown event type error")
	}
	got, err := ParseEvents(nil)
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty filter, got %v %v", got, err)
	}
	if !New(Config{URL: "http://example.invalid", Events: got}, nil).Wants(events.TypeTurnFailed) {
		t.Fatalf("empty filter should forward everything")
	}
}

func TestHandleErrorStatusIncludesSnippet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream failed\n" + strings.Repeat("x", 4096)))
	}))
	defer server.Close()

	err := New(Config{URL: server.URL}, nil).Handle(context.Background(), newTestEvent(events.TypeTurnFailed))
	if err == nil {
		t.Fatalf("expected error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "status 502") || !strings.Contains(msg, "upstream failed") || !strings.Contains(msg, "conversation.turn.failed") {
		t.Fatalf("unexpected error %v", err)
	}
	if len(msg) > errorSnippetBytes+100 {
		t.Fatalf("expected error body to be capped, got %d bytes", len(msg))
	}
}

func TestHandleTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(250 * time.Millisecond)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	sub := New(Config{URL: server.URL}, nil, WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond}))
	if err := sub.Handle(context.Background(), newTestEvent(events.TypeTurnCompleted)); err == nil {
		t.Fatalf("expected timeout error")
	}
}

func TestDefaultName(t *testing.T) {
	if got := New(Config{Name: "  ", URL: "http://example.invalid"}, nil).Name(); got != "webhook" {
		t.Fatalf("unexpected default name %q", got)
	}
}

func newTestEvent(eventType events.EventType) events.Envelope {
	return events.Envelope{
		Version:        events.VersionV1,
		EventID:        "evt_1",
		TraceID:        "trace_1",
		OccurredAt:     time.Unix(1_700_000_000, 0).UTC(),
		EventType:      eventType,
		ConversationID: "conv_1",
		Payload:        json.RawMessage(`{"outcome":"generated"}`),
	}
}
