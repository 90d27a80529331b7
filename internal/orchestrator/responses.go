package orchestrator

import (
	"carsa.local/complaints/internal/guardrail"
)

const (
	escalationDefault = "I'm connecting you with a member of our customer care team who will be better placed to help with this. They'll be in touch shortly."

	VulnerableResponse = "I hear you, and I want to make sure you get the best possible support. I'm connecting you with a member of our customer care team who has more options available to help. They'll call you within 1 hour. In the meantime, is there anything urgent I can help with right now?"
)

var escalationResponses = map[guardrail.Family]string{
	guardrail.FamilyLegal:          "I understand this is a serious matter. I'm connecting you with our specialist team who can properly assist with your concerns. A member of our team will call you within 2 hours.",
	guardrail.FamilySafety:         "Your safety is our absolute priority. I'm immediately escalating this to our specialist vehicle team. Please do not drive the vehicle if you feel it's unsafe. Someone will contact you within 1 hour.",
	guardrail.FamilyHumanRequest:   "Of course, I'll connect you with a member of our customer care team right away. They'll be able to help you directly. Please hold while I transfer you.",
	guardrail.FamilyDiscrimination: "I take this very seriously. I'm connecting you with a senior member of our team who will personally handle your concern. You'll receive a call within 1 hour.",
}

// EscalationResponse returns the canned reply for an escalation family.
func EscalationResponse(family guardrail.Family) string {
	if response, ok := escalationResponses[family]; ok {
		return response
	}
	return escalationDefault
}
