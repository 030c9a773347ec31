// Package httpserver runs the diagnostics HTTP server with validated
// addresses, conservative timeouts and graceful shutdown.
package httpserver
