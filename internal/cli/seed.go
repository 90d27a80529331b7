package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"carsa.local/complaints/internal/store"
)

func SeedCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load the demo and simulation test customers",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(rt.cfg, rt.log)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			n, err := store.Seed(cmd.Context(), st, time.Now().UTC())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded customers=%d driver=%s\n", n, rt.cfg.DBDriver)
			return nil
		},
	}
}
