package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/angeloszaimis/jsonlog/config"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

// commandContext carries the configuration loaded once before any
// subcommand runs.
type commandContext struct {
	configFile string
	config     *config.Config
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "jsonlog",
		Short:         "Structured JSON logging for services and shell scripts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(ctx.configFile, cmd.Flags())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			ctx.config = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&ctx.configFile, "config", "c", "", "Configuration file path")
	flags.String("service", "", "Service name bound to every record")
	flags.String("environment", "", "Deployment environment (development enables diagnostics)")
	flags.String("log-level", "", "Minimum log level (overrides LOG_LEVEL)")
	flags.String("mode", "", "Sink mode: async or sync")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newEmitCommand(ctx))

	return rootCmd
}
