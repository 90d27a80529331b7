package guardrail

import "regexp"

type Severity string

const (
	SeverityNone   Severity = ""
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

func (s Severity) rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

type Family string

const (
	FamilyLegal          Family = "legal"
	FamilySafety         Family = "safety"
	FamilyHumanRequest   Family = "human_request"
	FamilyDiscrimination Family = "discrimination"
	FamilyThreat         Family = "threat"
)

const DefaultEscalationReason = "Escalation trigger detected"

type InjectionRule struct {
	Pattern     *regexp.Regexp
	Severity    Severity
	Description string
}

type EscalationRule struct {
	Family  Family
	Pattern *regexp.Regexp
	Reason  string
}

type VulnerabilitySignal struct {
	Category string
	Phrase   string
}

// Rules is the immutable rule set an Engine evaluates. Escalation rules are
// checked in order and the first match wins.
type Rules struct {
	Vulnerability []VulnerabilitySignal
	Escalation    []EscalationRule
	Injection     []InjectionRule
}

func signals(category string, phrases ...string) []VulnerabilitySignal {
	out := make([]VulnerabilitySignal, 0, len(phrases))
	for _, phrase := range phrases {
		out = append(out, VulnerabilitySignal{Category: category, Phrase: phrase})
	}
	return out
}

func concat(groups ...[]VulnerabilitySignal) []VulnerabilitySignal {
	var out []VulnerabilitySignal
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

var defaultRules = Rules{
	Vulnerability: concat(
		signals("financial",
			"can't afford", "cannot afford", "financial hardship", "debt", "foodbank", "food bank",
			"lost my job", "lost job", "unemployed", "benefits", "universal credit",
			"struggling financially", "can't pay", "cannot pay"),
		signals("health",
			"mental health", "depression", "depressed", "anxiety", "anxious", "disability", "disabled",
			"wheelchair", "blind", "deaf", "illness", "hospital", "cancer", "terminal"),
		signals("life_events",
			"bereavement", "bereaved", "died", "death", "passed away", "funeral",
			"divorce", "divorced", "separated"),
		signals("age",
			"elderly", "pension", "pensioner", "retired",
			"my son is handling", "my daughter is handling", "my child is handling"),
	),
	Escalation: []EscalationRule{
		{
			Family:  FamilyLegal,
			Pattern: regexp.MustCompile(`(?i)\b(solicitor|lawyer|barrister|court|legal action|sue|suing|ombudsman|fca|fos|trading standards)\b`),
			Reason:  "Legal language detected",
		},
		{
			Family:  FamilySafety,
			Pattern: regexp.MustCompile(`(?i)\b(dangerous|unsafe|brakes?\s+(fail|failed|failing|issue|problem)|steering\s+(fail|failed|problem)|crash|crashed|accident|injur(y|ed|ies))\b`),
			Reason:  "Safety concern detected",
		},
		{
			Family:  FamilyHumanRequest,
			Pattern: regexp.MustCompile(`(?i)\b(speak to\s+(a\s+)?human|real person|actual person|manager|supervisor|someone else|not a (robot|bot|ai))\b`),
			Reason:  "Customer requested human agent",
		},
		{
			Family:  FamilyDiscrimination,
			Pattern: regexp.MustCompile(`(?i)\b(discriminat\w*|racist|racism|sexist|sexism|harass\w*)\b`),
			Reason:  "Discrimination concern",
		},
		{
			Family:  FamilyThreat,
			Pattern: regexp.MustCompile(`(?i)\b(threat|threaten|report you|media|journalist|newspaper|social media blast)\b`),
			Reason:  "Threat or escalation to media",
		},
	},
	Injection: []InjectionRule{
		{regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|all|your)\s+instructions`), SeverityHigh, "Instruction override attempt"},
		{regexp.MustCompile(`(?i)disregard\s+(previous|all|the|your)`), SeverityHigh, "Instruction disregard attempt"},
		{regexp.MustCompile(`(?i)forget\s+(everything|all|your|previous)`), SeverityHigh, "Memory wipe attempt"},
		{regexp.MustCompile(`(?i)you are now\s+(a|an)?`), SeverityHigh, "Role reassignment attempt"},
		{regexp.MustCompile(`(?i)new\s+(instructions|rules|persona)`), SeverityHigh, "New instruction injection"},
		{regexp.MustCompile(`(?i)override\s+(your|the|all)`), SeverityHigh, "Override attempt"},
		{regexp.MustCompile(`(?i)jailbreak`), SeverityHigh, "Jailbreak attempt"},
		{regexp.MustCompile(`(?i)DAN\s*mode`), SeverityHigh, "DAN mode attempt"},
		{regexp.MustCompile(`(?i)developer\s*mode`), SeverityHigh, "Developer mode attempt"},
		{regexp.MustCompile(`(?i)bypass\s+(safety|security|filter|restriction)`), SeverityHigh, "Security bypass attempt"},
		{regexp.MustCompile(`(?i)pretend\s+(to be|you're|you are|there are no)`), SeverityHigh, "Pretend/roleplay injection"},
		{regexp.MustCompile(`(?i)act\s+as\s+(a|an|if)`), SeverityMedium, "Role play request"},
		{regexp.MustCompile(`(?i)system\s*prompt`), SeverityMedium, "System prompt reference"},
		{regexp.MustCompile(`(?i)reveal\s+(your|the)\s+(instructions|prompt|rules)`), SeverityMedium, "Prompt reveal attempt"},
		{regexp.MustCompile(`(?i)what\s+are\s+your\s+(instructions|rules|guidelines)`), SeverityMedium, "Instruction query"},
		{regexp.MustCompile(`(?i)give\s+me\s+(a|any)\s+refund.*(\d{3,}|unlimited)`), SeverityMedium, "Large refund manipulation"},
		{regexp.MustCompile(`(?i)respond\s+only\s+(with|in)`), SeverityLow, "Response format manipulation"},
		{regexp.MustCompile(`(?i)from\s+now\s+on`), SeverityLow, "Behavior change request"},
	},
}

// DefaultRules returns the built-in rule set.
func DefaultRules() Rules {
	return defaultRules
}
