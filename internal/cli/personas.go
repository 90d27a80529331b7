package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"carsa.local/complaints/internal/simulation"
)

func PersonasCmd() *cobra.Command {
	var setName string
	cmd := &cobra.Command{
		Use:   "personas",
		Short: "List the simulation personas of a set",
		// Listing personas needs no config or store.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := simulation.ParseSet(setName)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSTYLE\tSCENARIO\tEXPECTED")
			for _, p := range simulation.Personas(set) {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Style, p.Scenario(), p.Expected)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&setName, "set", string(simulation.SetStandard), "Persona set: standard, edge_cases, adversarial or all")
	return cmd
}
