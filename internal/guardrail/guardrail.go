package guardrail

import (
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"carsa.local/complaints/internal/logging"
)

const (
	MaxMessageRunes = 2000
	previewRunes    = 100
)

// BlockResponse is the reply sent in place of generation when a message is
// blocked as an injection attempt.
const BlockResponse = "I'm here to help with your Carsa purchase or complaint. Could you please describe the issue you're experiencing with your order or vehicle? I can help with delivery status, missing accessories, refunds up to £100, or connect you with our specialist team."

type Verdict struct {
	Sanitized string

	IsVulnerable         bool
	VulnerabilitySignals []string

	ShouldEscalate   bool
	EscalationFamily Family
	EscalationReason string

	InjectionDetected bool
	InjectionSeverity Severity
	InjectionPatterns []string
	ShouldBlock       bool
}

// Observer receives one call per guardrail family that fired.
type Observer interface {
	GuardrailHit(kind, severity string)
}

type Option func(*Engine)

func WithLogger(log logrus.FieldLogger) Option {
	return func(e *Engine) {
		e.log = logging.OrDiscard(log)
	}
}

func WithObserver(observer Observer) Option {
	return func(e *Engine) {
		e.observer = observer
	}
}

func WithRules(rules Rules) Option {
	return func(e *Engine) {
		e.rules = rules
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

type Engine struct {
	rules    Rules
	log      logrus.FieldLogger
	observer Observer
	now      func() time.Time
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		rules: DefaultRules(),
		log:   logging.Discard(),
		now:   time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Sanitize trims the message and truncates it to MaxMessageRunes.
func Sanitize(message string) string {
	trimmed := strings.TrimSpace(message)
	runes := []rune(trimmed)
	if len(runes) > MaxMessageRunes {
		return string(runes[:MaxMessageRunes])
	}
	return trimmed
}

// Check runs every guardrail over message. It never fails.
func (e *Engine) Check(message string) Verdict {
	v := Verdict{Sanitized: Sanitize(message)}
	lower := strings.ToLower(v.Sanitized)

	for _, signal := range e.rules.Vulnerability {
		if strings.Contains(lower, signal.Phrase) {
			v.VulnerabilitySignals = append(v.VulnerabilitySignals, signal.Phrase)
		}
	}
	v.IsVulnerable = len(v.VulnerabilitySignals) > 0

	for _, rule := range e.rules.Escalation {
		if rule.Pattern.MatchString(v.Sanitized) {
			v.ShouldEscalate = true
			v.EscalationFamily = rule.Family
			v.EscalationReason = rule.Reason
			if v.EscalationReason == "" {
				v.EscalationReason = DefaultEscalationReason
			}
			break
		}
	}

	for _, rule := range e.rules.Injection {
		if !rule.Pattern.MatchString(v.Sanitized) {
			continue
		}
		v.InjectionDetected = true
		v.InjectionPatterns = append(v.InjectionPatterns, rule.Description)
		if rule.Severity.rank() > v.InjectionSeverity.rank() {
			v.InjectionSeverity = rule.Severity
		}
	}
	v.ShouldBlock = v.InjectionSeverity == SeverityHigh

	e.record(v)
	return v
}

func (e *Engine) record(v Verdict) {
	if e.observer != nil {
		if v.InjectionDetected {
			e.observer.GuardrailHit("injection", string(v.InjectionSeverity))
		}
		if v.ShouldEscalate {
			e.observer.GuardrailHit("escalation", string(v.EscalationFamily))
		}
		if v.IsVulnerable {
			e.observer.GuardrailHit("vulnerability", "")
		}
	}
	if !v.InjectionDetected {
		return
	}

	outcome := "MONITORED"
	if v.ShouldBlock {
		outcome = "BLOCKED"
	}
	entry := e.log.WithFields(logrus.Fields{
		"severity":        string(v.InjectionSeverity),
		"blocked":         v.ShouldBlock,
		"patterns":        v.InjectionPatterns,
		"message_preview": preview(v.Sanitized),
		"timestamp":       e.now().UTC().Format(time.RFC3339),
	})
	msg := "SECURITY: Prompt injection " + string(v.InjectionSeverity) + " - " + outcome
	switch v.InjectionSeverity {
	case SeverityHigh:
		entry.Error(msg)
	case SeverityMedium:
		entry.Warn(msg)
	default:
		entry.Info(msg)
	}
}

func preview(message string) string {
	runes := []rune(message)
	if len(runes) <= previewRunes {
		return message
	}
	return string(runes[:previewRunes]) + "..."
}
