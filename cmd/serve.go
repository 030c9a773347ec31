package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/angeloszaimis/jsonlog/internal/httpserver"
	"github.com/angeloszaimis/jsonlog/pkg/logger"
)

const defaultServeAddr = ":8080"

func newServeCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the logging diagnostics server",
		Long: "Configures the process-wide logger and serves its state on /, its sink " +
			"counters on /metrics and a liveness probe on /healthz until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return runServe(runCtx, ctx)
		},
	}
	cmd.Flags().String("addr", "", "Listen address (default "+defaultServeAddr+")")
	return cmd
}

func runServe(ctx context.Context, cc *commandContext) error {
	cfg := cc.config
	opts := newLoggerOptions(cfg, os.Stdout, os.Stderr)
	log := logger.ConfigureWith(opts)
	cfgr := logger.DefaultConfigurator()

	defer func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), opts.DrainTimeout)
		defer cancel()
		if err := logger.Shutdown(drainCtx); err != nil {
			os.Stderr.WriteString("jsonlog: " + err.Error() + "\n")
		}
	}()

	addr := cfg.Server.Address
	if addr == "" {
		addr = defaultServeAddr
	}

	info := serviceInfo{Service: cfg.Service.Name, Environment: cfg.Service.Environment}
	srv, err := httpserver.New(addr, setupRouter(cfgr, info), log)
	if err != nil {
		log.Exception("Failed to create server", err, "addr", addr)
		return err
	}

	if err := srv.Run(ctx); err != nil {
		log.Exception("Error running diagnostics server", err)
		return err
	}

	log.Info("Shutting down gracefully...")
	return nil
}
