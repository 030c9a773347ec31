// Package logger sets up structured JSON logging for a service process.
//
// One call installs a sink that writes newline-delimited JSON to stdout,
// binds the service name and deployment environment to every record and
// hands writing off to a background goroutine:
//
//	log := logger.Configure("billing", "production")
//	defer logger.Shutdown(context.Background())
//
//	log.Bind("account_id", "42").Warning("low balance")
//
// produces
//
//	{"timestamp":"2026-10-17T09:12:03.52Z","level":"WARNING","message":"low balance","service":"billing","environment":"production","account_id":"42"}
//
// The minimum level comes from LOG_LEVEL (TRACE, DEBUG, INFO, WARNING,
// ERROR, CRITICAL; default INFO). In the "development" environment records
// carry their source location and exceptions carry their cause chain and
// stack; elsewhere an exception is reduced to its type and message.
//
// A Configurator owns the active sink; Configure replaces it without
// duplicating output, Flush waits for queued records and Shutdown drains and
// stops the worker. The package-level functions use a process-wide
// Configurator and also make its logger slog's default.
//
// Logging calls never return errors. Records that cannot be queued or
// written are counted (see Stats) and write failures are reported on stderr.
package logger
