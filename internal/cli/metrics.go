package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"carsa.local/complaints/internal/domain"
	"carsa.local/complaints/internal/metrics"
)

type runView struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	PersonaSet      string     `json:"persona_set"`
	ScenarioCount   int        `json:"scenario_count"`
	CompletedCount  int        `json:"completed_count"`
	CompletedAt     *time.Time `json:"completed_at"`
	ResolutionRate  *float64   `json:"resolution_rate"`
	EscalationRate  *float64   `json:"escalation_rate"`
	AvgSatisfaction *float64   `json:"avg_satisfaction"`
	AvgLatency      *float64   `json:"avg_latency"`
}

type metricsReport struct {
	RunID      string               `json:"run_id,omitempty"`
	Summary    metrics.Summary      `json:"summary"`
	RecentRuns []runView            `json:"recent_runs"`
	Trend      []metrics.TrendPoint `json:"trend"`
}

func MetricsCmd(rt *runtime) *cobra.Command {
	var (
		runID  string
		recent int
		trend  int
	)
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Print simulation quality metrics as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(rt.cfg, rt.log)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			ctx := cmd.Context()
			agg := metrics.New(st)
			report := metricsReport{RunID: runID}
			if report.Summary, err = agg.Calculate(ctx, runID); err != nil {
				return err
			}
			runs, err := agg.RecentRuns(ctx, recent)
			if err != nil {
				return err
			}
			report.RecentRuns = make([]runView, 0, len(runs))
			for _, run := range runs {
				report.RecentRuns = append(report.RecentRuns, viewRun(run))
			}
			if report.Trend, err = agg.Trend(ctx, trend); err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
	cmd.Flags().StringVar(&runID, "run", "", "Limit the summary to one run id")
	cmd.Flags().IntVar(&recent, "recent", metrics.DefaultRecentRuns, "Number of recent runs to list")
	cmd.Flags().IntVar(&trend, "trend", metrics.DefaultTrendDays, "Days of run history in the trend")
	return cmd
}

func viewRun(run domain.SimulationRun) runView {
	return runView{
		ID:              run.ID,
		Name:            run.Name,
		PersonaSet:      run.PersonaSet,
		ScenarioCount:   run.ScenarioCount,
		CompletedCount:  run.CompletedCount,
		CompletedAt:     run.CompletedAt,
		ResolutionRate:  run.ResolutionRate,
		EscalationRate:  run.EscalationRate,
		AvgSatisfaction: run.AvgSatisfaction,
		AvgLatency:      run.AvgLatency,
	}
}
