package metrics

import (
	"context"
	"fmt"
	"time"

	"carsa.local/complaints/internal/domain"
	"carsa.local/complaints/internal/store"
)

const (
	DefaultRecentRuns = 5
	DefaultTrendDays  = 7
)

// Source is the read side of the simulation store.
type Source interface {
	ListRuns(ctx context.Context, filter store.RunFilter) ([]domain.SimulationRun, error)
	ListSimulations(ctx context.Context, filter store.SimulationFilter) ([]domain.SimulationRecord, error)
}

type PersonaStats struct {
	Count          int     `json:"count"`
	ResolutionRate float64 `json:"resolution_rate"`
	AvgDuration    float64 `json:"avg_duration"`
	AvgCSAT        float64 `json:"avg_csat"`
}

type ScenarioStats struct {
	Count          int     `json:"count"`
	ResolutionRate float64 `json:"resolution_rate"`
	AvgDuration    float64 `json:"avg_duration"`
}

// Summary aggregates completed simulations. Failed counts FAILED and TIMEOUT
// records; Total is completed plus failed.
type Summary struct {
	Total              int                      `json:"total_simulations"`
	Completed          int                      `json:"completed_simulations"`
	Failed             int                      `json:"failed_simulations"`
	AvgDuration        float64                  `json:"avg_duration"`
	AvgMessageCount    float64                  `json:"avg_message_count"`
	AvgResponseLatency float64                  `json:"avg_response_latency"`
	ResolutionRate     float64                  `json:"resolution_rate"`
	EscalationRate     float64                  `json:"escalation_rate"`
	BlockRate          float64                  `json:"block_rate"`
	AvgCSAT            float64                  `json:"avg_simulated_csat"`
	ByPersona          map[string]PersonaStats  `json:"by_persona"`
	ByScenario         map[string]ScenarioStats `json:"by_scenario"`
}

type TrendPoint struct {
	Date            string   `json:"date"`
	ResolutionRate  *float64 `json:"resolution_rate"`
	EscalationRate  *float64 `json:"escalation_rate"`
	AvgSatisfaction *float64 `json:"avg_satisfaction"`
	AvgLatency      *float64 `json:"avg_latency"`
}

type Aggregator struct {
	source Source
	now    func() time.Time
}

type Option func(*Aggregator)

func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

func New(source Source, opts ...Option) *Aggregator {
	a := &Aggregator{source: source, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Calculate aggregates one run, or every simulation when runID is empty.
func (a *Aggregator) Calculate(ctx context.Context, runID string) (Summary, error) {
	completed, err := a.source.ListSimulations(ctx, store.SimulationFilter{
		RunID:    runID,
		Statuses: []domain.SimulationStatus{domain.SimulationCompleted},
	})
	if err != nil {
		return Summary{}, fmt.Errorf("list completed simulations: %w", err)
	}
	failed, err := a.source.ListSimulations(ctx, store.SimulationFilter{
		RunID:    runID,
		Statuses: []domain.SimulationStatus{domain.SimulationFailed, domain.SimulationTimeout},
	})
	if err != nil {
		return Summary{}, fmt.Errorf("list failed simulations: %w", err)
	}

	summary := Summary{
		Completed:  len(completed),
		Failed:     len(failed),
		Total:      len(completed) + len(failed),
		ByPersona:  map[string]PersonaStats{},
		ByScenario: map[string]ScenarioStats{},
	}
	if len(completed) == 0 {
		return summary, nil
	}

	all := summarize(completed)
	n := float64(len(completed))
	summary.AvgDuration = all.duration / n
	summary.AvgMessageCount = all.messages / n
	summary.AvgResponseLatency = all.latency / n
	summary.ResolutionRate = all.resolved / n
	summary.EscalationRate = all.escalated / n
	summary.BlockRate = all.blocked / n
	summary.AvgCSAT = all.avgCSAT()

	for personaID, group := range groupBy(completed, func(r domain.SimulationRecord) string { return r.PersonaID }) {
		t := summarize(group)
		count := float64(len(group))
		summary.ByPersona[personaID] = PersonaStats{
			Count:          len(group),
			ResolutionRate: t.resolved / count,
			AvgDuration:    t.duration / count,
			AvgCSAT:        t.avgCSAT(),
		}
	}
	for scenario, group := range groupBy(completed, func(r domain.SimulationRecord) string { return r.ScenarioType }) {
		t := summarize(group)
		count := float64(len(group))
		summary.ByScenario[scenario] = ScenarioStats{
			Count:          len(group),
			ResolutionRate: t.resolved / count,
			AvgDuration:    t.duration / count,
		}
	}
	return summary, nil
}

// RecentRuns returns the latest completed runs, newest first.
func (a *Aggregator) RecentRuns(ctx context.Context, limit int) ([]domain.SimulationRun, error) {
	if limit <= 0 {
		limit = DefaultRecentRuns
	}
	runs, err := a.source.ListRuns(ctx, store.RunFilter{
		Status: domain.RunCompleted,
		Order:  store.OrderCompletedDesc,
		Limit:  limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list recent runs: %w", err)
	}
	return runs, nil
}

// Trend returns one point per run completed in the last days, oldest first.
func (a *Aggregator) Trend(ctx context.Context, days int) ([]TrendPoint, error) {
	if days <= 0 {
		days = DefaultTrendDays
	}
	since := a.now().UTC().AddDate(0, 0, -days)
	runs, err := a.source.ListRuns(ctx, store.RunFilter{
		Status:         domain.RunCompleted,
		CompletedSince: &since,
		Order:          store.OrderCompletedAsc,
	})
	if err != nil {
		return nil, fmt.Errorf("list runs for trend: %w", err)
	}
	points := make([]TrendPoint, 0, len(runs))
	for _, run := range runs {
		var date string
		if run.CompletedAt != nil {
			date = run.CompletedAt.UTC().Format("2006-01-02")
		}
		points = append(points, TrendPoint{
			Date:            date,
			ResolutionRate:  run.ResolutionRate,
			EscalationRate:  run.EscalationRate,
			AvgSatisfaction: run.AvgSatisfaction,
			AvgLatency:      run.AvgLatency,
		})
	}
	return points, nil
}

type totals struct {
	duration, messages, latency  float64
	resolved, escalated, blocked float64
	csatSum, csatCount           float64
}

func (t totals) avgCSAT() float64 {
	if t.csatCount == 0 {
		return 0
	}
	return t.csatSum / t.csatCount
}

func summarize(records []domain.SimulationRecord) totals {
	var t totals
	for _, r := range records {
		t.duration += r.DurationSeconds
		t.messages += float64(r.MessageCount)
		t.latency += r.AvgResponseLatency
		if r.WasResolved {
			t.resolved++
		}
		if r.WasEscalated {
			t.escalated++
		}
		if r.BlockedAttempts > 0 {
			t.blocked++
		}
		if r.SimulatedCSAT != nil {
			t.csatSum += float64(*r.SimulatedCSAT)
			t.csatCount++
		}
	}
	return t
}

func groupBy(records []domain.SimulationRecord, key func(domain.SimulationRecord) string) map[string][]domain.SimulationRecord {
	out := make(map[string][]domain.SimulationRecord)
	for _, r := range records {
		k := key(r)
		out[k] = append(out[k], r)
	}
	return out
}
