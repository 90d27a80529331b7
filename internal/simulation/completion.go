package simulation

import (
	"strings"

	"carsa.local/complaints/internal/domain"
)

// MaxTranscriptTurns caps a simulated transcript (user and assistant lines
// together).
const MaxTranscriptTurns = 16

type CompletionReason string

const (
	ReasonEscalated            CompletionReason = "escalated_to_human"
	ReasonBlocked              CompletionReason = "blocked_by_guardrails"
	ReasonMaxTurns             CompletionReason = "max_turns_reached"
	ReasonResolutionConfirmed  CompletionReason = "resolution_confirmed"
	ReasonAwaitingConfirmation CompletionReason = "awaiting_customer_confirmation"
	ReasonOngoing              CompletionReason = "conversation_ongoing"
)

var resolutionMarkers = []string{
	"refund has been processed",
	"i have arranged",
	"replacement will be sent",
	"escalating this",
	"passing this to",
	"human agent will",
	"is there anything else",
}

func hasResolutionMarker(content string) bool {
	content = strings.ToLower(content)
	for _, marker := range resolutionMarkers {
		if strings.Contains(content, marker) {
			return true
		}
	}
	return false
}

// CheckCompletion decides whether a transcript is finished. Escalation and
// blocking end it at once. A reply carrying resolution language only ends it
// once the customer has answered an earlier resolution reply, so the customer
// always gets one turn to confirm.
func CheckCompletion(history []Turn, escalated, blocked bool) (bool, CompletionReason) {
	switch {
	case escalated:
		return true, ReasonEscalated
	case blocked:
		return true, ReasonBlocked
	case len(history) >= MaxTranscriptTurns:
		return true, ReasonMaxTurns
	}

	last := -1
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == domain.RoleAssistant {
			last = i
			break
		}
	}
	if last < 0 || !hasResolutionMarker(history[last].Content) {
		return false, ReasonOngoing
	}

	answered := false
	for i := 0; i < last; i++ {
		if history[i].Role != domain.RoleAssistant || !hasResolutionMarker(history[i].Content) {
			continue
		}
		for _, later := range history[i+1 : last+1] {
			if later.Role == domain.RoleUser {
				answered = true
				break
			}
		}
	}
	if answered {
		return true, ReasonResolutionConfirmed
	}
	return false, ReasonAwaitingConfirmation
}
