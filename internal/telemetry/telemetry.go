package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collectors holds the support engine's Prometheus metrics. A nil *Collectors
// is valid and records nothing.
type Collectors struct {
	TurnsTotal            *prometheus.CounterVec
	TurnDuration          prometheus.Histogram
	GuardrailHits         *prometheus.CounterVec
	CascadeAttempts       *prometheus.CounterVec
	CascadeExhaustions    *prometheus.CounterVec
	ActionsTotal          *prometheus.CounterVec
	SimulationsTotal      *prometheus.CounterVec
	SimulationDuration    prometheus.Histogram
	EventDeliveryFailures *prometheus.CounterVec
}

// New registers the collectors with reg. Pass prometheus.NewRegistry() in
// tests to keep them isolated.
func New(reg prometheus.Registerer) *Collectors {
	factory := promauto.With(reg)
	return &Collectors{
		TurnsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "carsa_turns_total",
			Help: "Conversation turns by terminal state",
		}, []string{"outcome"}),
		TurnDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "carsa_turn_duration_seconds",
			Help:    "Time taken to handle one customer message",
			Buckets: prometheus.DefBuckets,
		}),
		GuardrailHits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "carsa_guardrail_hits_total",
			Help: "Guardrail detections by kind and severity",
		}, []string{"kind", "severity"}),
		CascadeAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "carsa_cascade_attempts_total",
			Help: "Model cascade attempts by tier, backend and result",
		}, []string{"tier", "backend", "result"}),
		CascadeExhaustions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "carsa_cascade_exhaustions_total",
			Help: "Cascade calls where every backend of the tier failed",
		}, []string{"tier"}),
		ActionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "carsa_actions_total",
			Help: "Action directives executed by type and result",
		}, []string{"type", "result"}),
		SimulationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "carsa_simulations_total",
			Help: "Finished simulations by status",
		}, []string{"status"}),
		SimulationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "carsa_simulation_duration_seconds",
			Help:    "Wall-clock duration of one simulated conversation",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		}),
		EventDeliveryFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "carsa_event_delivery_failures_total",
			Help: "Lifecycle events a subscriber failed to accept",
		}, []string{"subscriber"}),
	}
}

func (c *Collectors) TurnCompleted(outcome string, seconds float64) {
	if c == nil {
		return
	}
	c.TurnsTotal.WithLabelValues(outcome).Inc()
	c.TurnDuration.Observe(seconds)
}

func (c *Collectors) GuardrailHit(kind, severity string) {
	if c == nil {
		return
	}
	c.GuardrailHits.WithLabelValues(kind, severity).Inc()
}

func (c *Collectors) CascadeAttempt(tier, backend, result string) {
	if c == nil {
		return
	}
	c.CascadeAttempts.WithLabelValues(tier, backend, result).Inc()
}

func (c *Collectors) CascadeExhausted(tier string) {
	if c == nil {
		return
	}
	c.CascadeExhaustions.WithLabelValues(tier).Inc()
}

func (c *Collectors) ActionExecuted(actionType string, success bool) {
	if c == nil {
		return
	}
	result := "success"
	if !success {
		result = "rejected"
	}
	c.ActionsTotal.WithLabelValues(actionType, result).Inc()
}

func (c *Collectors) SimulationFinished(status string, seconds float64) {
	if c == nil {
		return
	}
	c.SimulationsTotal.WithLabelValues(status).Inc()
	c.SimulationDuration.Observe(seconds)
}

func (c *Collectors) EventDeliveryFailed(subscriber string) {
	if c == nil {
		return
	}
	c.EventDeliveryFailures.WithLabelValues(subscriber).Inc()
}
