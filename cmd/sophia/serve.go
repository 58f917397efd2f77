package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-sophia/pkg/web"
)

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP and websocket API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			if addr != "" {
				a.cfg.HTTPAddr = addr
			}
			return a.serve(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides HTTP_ADDR)")
	return cmd
}

// serve runs the evaluation sweep and the HTTP server until ctx ends.
func (a *app) serve(ctx context.Context) error {
	srv := web.NewServer(a.orch, web.Config{
		Addr:     a.cfg.HTTPAddr,
		AudioDir: a.cfg.Storage.AudioDir,
		Health:   a.health,
		Logger:   a.log,
	})
	a.monitor.Subscribe(srv.Listener())

	if err := a.monitor.Start(ctx); err != nil {
		return err
	}
	defer a.monitor.Stop()

	a.log.Info("sophia started",
		"addr", a.cfg.HTTPAddr,
		"env", a.cfg.Env,
		"idle_timeout", a.cfg.Eval.IdleTimeout)
	return srv.Start(ctx)
}
