// Package config loads the jsonlog command's settings from defaults, an
// optional YAML file, a dotenv file, environment variables and command-line
// flags, and validates them before a logger is configured from them.
//
// The conventional variables LOG_LEVEL, SERVICE_NAME and ENVIRONMENT (or
// APP_ENV) are honoured alongside the key-derived names such as
// LOGGING_QUEUE_SIZE. The log level itself is never rejected here: an
// unknown level falls back to INFO when the logger is configured.
package config
