package main

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/tripgraph/httpapi"
)

func newServeCmd(c *cli) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long:  `Serves POST /start, /resume_final and /resume_extra_research plus GET /health and /metrics, and sweeps idle sessions in the background.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := build(ctx, c.cfg, c.log)
			if err != nil {
				return err
			}
			defer func() {
				sctx, cancel := shutdownContext(c.cfg.Server.ShutdownTimeout.D())
				defer cancel()
				if err := a.Close(sctx); err != nil {
					c.log.Warn("close failed", zap.Error(err))
				}
			}()

			go a.service.RunSweeper(ctx, c.cfg.Registry.SweepInterval.D(), c.cfg.Registry.TTL.D())

			if addr == "" {
				addr = c.cfg.Server.Addr
			}
			srv := &http.Server{
				Addr: addr,
				Handler: httpapi.NewHandler(a.service, httpapi.Options{
					Logger:       c.log.Named("http"),
					Gatherer:     a.metrics,
					MaxBodyBytes: c.cfg.Server.MaxBodyBytes,
				}),
				ReadHeaderTimeout: 10 * time.Second,
			}

			serverErrors := make(chan error, 1)
			go func() {
				c.log.Info("listening", zap.String("addr", addr), zap.String("registry", c.cfg.Registry.Backend), zap.String("llm", c.cfg.LLM.Provider))
				serverErrors <- srv.ListenAndServe()
			}()

			select {
			case err := <-serverErrors:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			case <-ctx.Done():
				c.log.Info("shutting down")
				sctx, cancel := shutdownContext(c.cfg.Server.ShutdownTimeout.D())
				defer cancel()
				if err := srv.Shutdown(sctx); err != nil {
					c.log.Warn("graceful shutdown did not complete", zap.Error(err))
					_ = srv.Close()
				}
			}
			in, out := a.tracker.Tokens()
			c.log.Info("stopped", zap.Float64("llm_cost_usd", a.tracker.TotalCost()), zap.Int64("tokens_in", in), zap.Int64("tokens_out", out))
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}
