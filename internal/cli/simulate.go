package cli

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"carsa.local/complaints/internal/simulation"
)

func SimulateCmd(rt *runtime) *cobra.Command {
	var (
		setName     string
		name        string
		parallelism int
		timeout     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a persona set against the support engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := simulation.ParseSet(setName)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, rt.cfg, rt.log)
			if err != nil {
				return err
			}
			defer a.close()

			if name == "" {
				name = fmt.Sprintf("%s-%s", set, time.Now().UTC().Format("20060102-150405"))
			}
			controller := a.controller()
			run, err := controller.CreateRun(ctx, name, set)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run_id=%s name=%q set=%s scenarios=%d\n", run.ID, run.Name, set, run.ScenarioCount)

			results, err := controller.RunBatch(ctx, run.ID, simulation.BatchConfig{
				Set:         set,
				Parallelism: parallelism,
				Timeout:     timeout,
			})
			if err != nil {
				return err
			}
			for _, r := range results {
				csat := "-"
				if r.SimulatedCSAT != nil {
					csat = fmt.Sprint(*r.SimulatedCSAT)
				}
				fmt.Fprintf(out, "persona=%s status=%s messages=%d resolved=%t escalated=%t blocked=%t csat=%s match=%t\n",
					r.PersonaID, r.Status, r.MessageCount, r.WasResolved, r.WasEscalated, r.WasBlocked, csat, r.Match.Matched)
				if r.Error != "" {
					fmt.Fprintf(out, "  error=%q\n", r.Error)
				}
			}

			finished, err := a.store.GetRun(ctx, run.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "run_id=%s status=%s completed=%d/%d resolution_rate=%s escalation_rate=%s avg_csat=%s\n",
				finished.ID, finished.Status, finished.CompletedCount, finished.ScenarioCount,
				optionalFloat(finished.ResolutionRate), optionalFloat(finished.EscalationRate), optionalFloat(finished.AvgSatisfaction))
			return nil
		},
	}
	cmd.Flags().StringVar(&setName, "set", string(simulation.SetStandard), "Persona set: standard, edge_cases, adversarial or all")
	cmd.Flags().StringVar(&name, "name", "", "Run name (defaults to set and timestamp)")
	cmd.Flags().IntVar(&parallelism, "parallelism", 0, "Concurrent simulations (defaults to config)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Per-simulation timeout (defaults to config)")
	return cmd
}

func optionalFloat(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}
