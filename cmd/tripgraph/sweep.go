package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newSweepCmd(c *cli) *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Remove sessions idle for longer than the TTL",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := build(ctx, c.cfg, c.log)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			if ttl <= 0 {
				ttl = c.cfg.Registry.TTL.D()
			}
			res, err := a.service.Cleanup(ctx, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Message)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "idle time after which a session is removed (defaults to registry.ttl)")
	return cmd
}
