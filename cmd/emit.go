package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/angeloszaimis/jsonlog/pkg/logger"
)

func newEmitCommand(ctx *commandContext) *cobra.Command {
	var level, message string

	cmd := &cobra.Command{
		Use:   "emit [key=value...]",
		Short: "Write one structured record to stdout",
		Example: `  jsonlog emit --service backup --level warning --message "disk nearly full" used_pct=91
  jsonlog emit --message "job finished" job=nightly rows=1200`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEmit(cmd.Context(), ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), level, message, args)
		},
	}

	cmd.Flags().StringVarP(&level, "level", "l", "info", "Level of the emitted record")
	cmd.Flags().StringVarP(&message, "message", "m", "", "Record message")
	_ = cmd.MarkFlagRequired("message")

	return cmd
}

func runEmit(ctx context.Context, cc *commandContext, out, errOut io.Writer, level, message string, args []string) error {
	recordLevel, ok := logger.ParseLevel(level)
	if !ok {
		return fmt.Errorf("unknown record level %q", level)
	}

	attrs, err := parseFields(args)
	if err != nil {
		return err
	}

	opts := newLoggerOptions(cc.config, out, errOut)
	cfgr := logger.NewConfigurator()
	log := cfgr.Configure(opts)

	log.Log(ctx, recordLevel, message, attrs...)

	drainCtx, cancel := context.WithTimeout(context.Background(), opts.DrainTimeout)
	defer cancel()
	return cfgr.Shutdown(drainCtx)
}

// parseFields turns key=value arguments into slog key-value pairs. Integers,
// floats and booleans keep their JSON type; everything else is a string.
func parseFields(args []string) ([]any, error) {
	fields := make([]any, 0, len(args)*2)
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid field %q: expected key=value", arg)
		}
		fields = append(fields, key, typedValue(value))
	}
	return fields, nil
}

func typedValue(s string) any {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	return s
}
