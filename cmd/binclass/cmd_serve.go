package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/binclass/internal/webserver"
	"github.com/YuminosukeSato/binclass/pkg/log"
)

func newServeCommand(e *env) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the classification page over HTTP",
		Long: `Serve the classification page over HTTP.

Routes:
  GET /              the page (classifier, hyperparameters, plots, raw data)
  GET /api/classify  one classify action as JSON
  GET /healthz       health check`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// the dataset is loaded before listening so a missing file fails fast
			ctrl, err := e.controller(ctx)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				e.cfg.Server.Addr = addr
			}

			srv, err := webserver.New(webserver.Config{
				Addr:   e.cfg.Server.Addr,
				Pager:  ctrl,
				Logger: log.GetLoggerWithName("webserver"),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "binclass: http://%s\n", srv.Addr()) //nolint:errcheck
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", webserver.DefaultAddr, "Address to listen on")
	return cmd
}
