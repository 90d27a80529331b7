package orchestrator

import (
	"fmt"
	"strings"

	"carsa.local/complaints/internal/action"
	"carsa.local/complaints/internal/domain"
	"carsa.local/complaints/internal/model"
)

const (
	FallbackMessage    = "I apologize, but I'm having trouble processing your request right now. Would you like me to connect you with a member of our team?"
	fallbackConfidence = 0.5
)

// Reply is the validated form of the main generation output.
type Reply struct {
	Message        string
	Intent         domain.Intent
	Confidence     float64
	Action         action.Directive
	ShouldEscalate bool
	EscalateReason string
	DataNeeded     []string
}

// FallbackReply is used whenever generation or validation fails.
func FallbackReply() Reply {
	return Reply{
		Message:    FallbackMessage,
		Intent:     domain.IntentOther,
		Confidence: fallbackConfidence,
	}
}

// ReplyError reports generation output that does not satisfy the reply schema.
type ReplyError struct {
	Reason string
	Err    error
}

func (e *ReplyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid reply: %s: %v", e.Reason, e.Err)
	}
	return "invalid reply: " + e.Reason
}

func (e *ReplyError) Unwrap() error {
	return e.Err
}

type wireAction struct {
	Type   string         `json:"type"`
	Params map[string]any `json:"params"`
}

type wireReply struct {
	Message        *string     `json:"message"`
	Intent         string      `json:"intent"`
	Confidence     *float64    `json:"confidence"`
	Action         *wireAction `json:"action"`
	ShouldEscalate bool        `json:"shouldEscalate"`
	EscalateReason *string     `json:"escalateReason"`
	DataNeeded     []string    `json:"dataNeeded"`
}

// ParseReply validates fence-tolerant JSON from the main tier. A message is
// required; unknown intents become OTHER and confidence is clamped to [0,1].
func ParseReply(raw string) (Reply, error) {
	var wire wireReply
	if err := model.DecodeJSON(raw, &wire); err != nil {
		return Reply{}, &ReplyError{Reason: "malformed json", Err: err}
	}
	if wire.Message == nil || strings.TrimSpace(*wire.Message) == "" {
		return Reply{}, &ReplyError{Reason: "message is required"}
	}

	reply := Reply{
		Message:        strings.TrimSpace(*wire.Message),
		Intent:         domain.Intent(strings.ToUpper(strings.TrimSpace(wire.Intent))),
		Confidence:     fallbackConfidence,
		ShouldEscalate: wire.ShouldEscalate,
		DataNeeded:     wire.DataNeeded,
	}
	if !reply.Intent.Valid() {
		reply.Intent = domain.IntentOther
	}
	if wire.Confidence != nil {
		reply.Confidence = clamp(*wire.Confidence, 0, 1)
	}
	if wire.EscalateReason != nil {
		reply.EscalateReason = strings.TrimSpace(*wire.EscalateReason)
	}
	if wire.Action != nil {
		if strings.TrimSpace(wire.Action.Type) == "" {
			return Reply{}, &ReplyError{Reason: "action type is required"}
		}
		reply.Action = action.FromWire(wire.Action.Type, wire.Action.Params)
	}
	return reply, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
