package main

import (
	"io"

	"github.com/angeloszaimis/jsonlog/config"
	"github.com/angeloszaimis/jsonlog/pkg/logger"
)

// newLoggerOptions maps a validated configuration onto logger options,
// writing records to out and write-failure notices to errOut.
func newLoggerOptions(cfg *config.Config, out, errOut io.Writer) logger.Options {
	lc := cfg.Logging

	var fallback io.Writer
	switch lc.Fallback {
	case config.FallbackStdout:
		fallback = out
	case config.FallbackNone:
		fallback = io.Discard
	default:
		fallback = errOut
	}

	maxRetries := lc.MaxRetries
	if maxRetries == 0 {
		maxRetries = -1
	}
	breakerThreshold := lc.Breaker.Threshold
	if breakerThreshold == 0 {
		breakerThreshold = -1
	}

	return logger.Options{
		Service:     cfg.Service.Name,
		Environment: cfg.Service.Environment,
		Level:       lc.Level,
		Sink: logger.SinkOptions{
			Output:           out,
			Fallback:         fallback,
			Synchronous:      lc.Mode == config.ModeSync,
			QueueSize:        lc.QueueSize,
			Overflow:         logger.OverflowPolicy(lc.Overflow),
			BlockTimeout:     cfg.BlockTimeout(),
			MaxRetries:       maxRetries,
			RetryBackoff:     cfg.RetryBackoff(),
			BreakerThreshold: breakerThreshold,
			BreakerReset:     cfg.BreakerReset(),
		},
		DrainTimeout: cfg.DrainTimeout(),
	}
}
