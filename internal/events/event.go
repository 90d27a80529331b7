package events

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"carsa.local/complaints/internal/ids"
)

const VersionV1 = "v1"

type EventType string

const (
	TypeTurnStarted         EventType = "conversation.turn.started"
	TypeTurnCompleted       EventType = "conversation.turn.completed"
	TypeTurnFailed          EventType = "conversation.turn.failed"
	TypeInjectionDetected   EventType = "guardrail.injection.detected"
	TypeSimulationCompleted EventType = "simulation.completed"
	TypeRunCompleted        EventType = "simulation.run.completed"
)

var knownTypes = []EventType{
	TypeTurnStarted,
	TypeTurnCompleted,
	TypeTurnFailed,
	TypeInjectionDetected,
	TypeSimulationCompleted,
	TypeRunCompleted,
}

// ParseType accepts a full event type name.
func ParseType(value string) (EventType, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	for _, t := range knownTypes {
		if string(t) == value {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown event type %q", value)
}

type Envelope struct {
	Version        string          `json:"version"`
	EventID        string          `json:"event_id"`
	TraceID        string          `json:"trace_id"`
	OccurredAt     time.Time       `json:"occurred_at"`
	EventType      EventType       `json:"event_type"`
	ConversationID string          `json:"conversation_id,omitempty"`
	Payload        json.RawMessage `json:"payload"`
}

func (e Envelope) DecodePayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// Key is the partitioning key used by ordered transports.
func (e Envelope) Key() string {
	if e.ConversationID != "" {
		return e.ConversationID
	}
	return e.EventID
}

func New(eventType EventType, traceID, conversationID string, payload any, occurredAt time.Time) (Envelope, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	if traceID == "" {
		traceID = ids.New()
	}
	return Envelope{
		Version:        VersionV1,
		EventID:        ids.New(),
		TraceID:        traceID,
		OccurredAt:     occurredAt.UTC(),
		EventType:      eventType,
		ConversationID: conversationID,
		Payload:        encoded,
	}, nil
}

type TurnStartedPayload struct {
	Channel string `json:"channel"`
}

type TurnCompletedPayload struct {
	Outcome        string  `json:"outcome"`
	Intent         string  `json:"intent,omitempty"`
	Confidence     float64 `json:"confidence"`
	ShouldEscalate bool    `json:"should_escalate"`
	EscalateReason string  `json:"escalate_reason,omitempty"`
	Blocked        bool    `json:"blocked"`
	ActionType     string  `json:"action_type,omitempty"`
	LatencyMS      int64   `json:"latency_ms"`
}

type TurnFailedPayload struct {
	Error string `json:"error"`
}

type InjectionDetectedPayload struct {
	Severity string   `json:"severity"`
	Blocked  bool     `json:"blocked"`
	Patterns []string `json:"patterns"`
}

type SimulationCompletedPayload struct {
	SimulationID    string  `json:"simulation_id"`
	RunID           string  `json:"run_id,omitempty"`
	PersonaID       string  `json:"persona_id"`
	Status          string  `json:"status"`
	WasResolved     bool    `json:"was_resolved"`
	WasEscalated    bool    `json:"was_escalated"`
	WasBlocked      bool    `json:"was_blocked"`
	MessageCount    int     `json:"message_count"`
	DurationSeconds float64 `json:"duration_seconds"`
}

type RunCompletedPayload struct {
	RunID          string   `json:"run_id"`
	Name           string   `json:"name"`
	Status         string   `json:"status"`
	ScenarioCount  int      `json:"scenario_count"`
	CompletedCount int      `json:"completed_count"`
	ResolutionRate *float64 `json:"resolution_rate,omitempty"`
	EscalationRate *float64 `json:"escalation_rate,omitempty"`
}
