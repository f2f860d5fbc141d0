package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// cli carries what PersistentPreRunE loaded to the subcommands.
type cli struct {
	configPath string
	getenv     func(string) string

	cfg Config
	log *zap.Logger
}

func newRootCmd(getenv func(string) string) *cobra.Command {
	c := &cli{getenv: getenv}
	root := &cobra.Command{
		Use:           "tripgraph",
		Short:         "Durable, resumable trip planning workflows",
		Long:          `tripgraph researches lodging, activities, food and transport for a trip, pauses for human review, and synthesises a day-by-day plan.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(c.configPath, c.getenv)
			if err != nil {
				return err
			}
			log, err := newLogger(cfg.Log)
			if err != nil {
				return err
			}
			c.cfg, c.log = cfg, log
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.log != nil {
				_ = c.log.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "path to the YAML config file")

	root.AddCommand(newServeCmd(c), newPlanCmd(c), newSweepCmd(c))
	return root
}
