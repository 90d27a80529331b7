// Package cli wires the support engine into the carsa-support commands.
package cli

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"carsa.local/complaints/internal/config"
	"carsa.local/complaints/internal/logging"
)

func Execute() error {
	return NewRoot().Execute()
}

// runtime carries the loaded config and logger into subcommands.
type runtime struct {
	cfg config.Config
	log *logrus.Logger
}

func NewRoot() *cobra.Command {
	rt := &runtime{}
	root := &cobra.Command{
		Use:           "carsa-support",
		Short:         "Carsa customer support engine and simulation harness",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromYAMLAndEnv()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			log, err := logging.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			rt.cfg = cfg
			rt.log = log
			return nil
		},
	}
	root.AddCommand(
		ChatCmd(rt),
		SimulateCmd(rt),
		MetricsCmd(rt),
		PersonasCmd(),
		SeedCmd(rt),
	)
	return root
}
