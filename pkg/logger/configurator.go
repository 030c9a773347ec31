package logger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/angeloszaimis/jsonlog/internal/metrics"
)

const (
	// LevelEnvVar overrides the minimum level when Options.Level is empty.
	LevelEnvVar = "LOG_LEVEL"

	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"

	DefaultDrainTimeout = 5 * time.Second
)

// Options configures one installation.
type Options struct {
	// Service is bound as "service" on every record. Defaults to the
	// executable name.
	Service string
	// Environment is bound as "environment". Only "development"
	// (case-insensitive) enables diagnostics. Defaults to production.
	Environment string
	// Level is the minimum level name. Empty reads LOG_LEVEL; anything
	// unparsable falls back to INFO.
	Level string

	Sink SinkOptions

	// DrainTimeout bounds how long a reconfiguration waits for the previous
	// sink to write out its queue.
	DrainTimeout time.Duration
}

// DefaultServiceName is the service name used when none is configured: the
// base name of the running executable.
func DefaultServiceName() string {
	if len(os.Args) == 0 || os.Args[0] == "" {
		return "unknown_service"
	}
	return filepath.Base(os.Args[0])
}

// IsDevelopment reports whether environment enables diagnostics.
func IsDevelopment(environment string) bool {
	return strings.EqualFold(strings.TrimSpace(environment), EnvDevelopment)
}

type installation struct {
	sink        *Sink
	encoder     *encoder
	level       slog.Level
	diagnostics bool
	service     string
	environment string
}

// Configurator owns the single active sink of a process. Configure installs
// or replaces it, Flush drains it and Shutdown removes it.
//
// Thread Safety:
//   - All methods are safe for concurrent use. Configure and Shutdown are
//     serialized; logging never waits on them.
type Configurator struct {
	mu      sync.Mutex
	current atomic.Pointer[installation]
	metrics *metrics.Metrics
	root    *Logger
}

// NewConfigurator returns a Configurator with nothing installed. Until
// Configure is called its Logger discards everything.
func NewConfigurator() *Configurator {
	c := &Configurator{metrics: metrics.NewMetrics()}
	c.root = &Logger{Logger: slog.New(&handler{cfg: c}), cfg: c}
	return c
}

// Configure installs a new sink built from opts, then drains and stops the
// previous one, so exactly one sink is active afterwards. It emits an INFO
// confirmation record and, when the level override was invalid, a WARNING.
// Records logged concurrently with Configure land on one of the two sinks;
// one that reaches the old sink after it closed is written to the new one.
func (c *Configurator) Configure(opts Options) *Logger {
	c.mu.Lock()
	defer c.mu.Unlock()

	service := strings.TrimSpace(opts.Service)
	if service == "" {
		service = DefaultServiceName()
	}
	environment := strings.TrimSpace(opts.Environment)
	if environment == "" {
		environment = EnvProduction
	}

	rawLevel := opts.Level
	if rawLevel == "" {
		rawLevel = os.Getenv(LevelEnvVar)
	}
	level, ok := ParseLevel(rawLevel)
	invalidLevel := !ok && strings.TrimSpace(rawLevel) != ""

	sinkOpts := opts.Sink
	if sinkOpts.Metrics == nil {
		sinkOpts.Metrics = c.metrics
	}

	diagnostics := IsDevelopment(environment)
	next := &installation{
		sink:        NewSink(sinkOpts),
		encoder:     newEncoder(service, environment, diagnostics),
		level:       level,
		diagnostics: diagnostics,
		service:     service,
		environment: environment,
	}

	var drainErr error
	if prev := c.current.Swap(next); prev != nil {
		drainTimeout := opts.DrainTimeout
		if drainTimeout <= 0 {
			drainTimeout = DefaultDrainTimeout
		}
		ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		drainErr = prev.sink.Close(ctx)
		cancel()
	}

	if next.sink.Synchronous() {
		c.root.Info(fmt.Sprintf("Structured JSON logger configured for '%s'.", service))
	} else {
		c.root.Info(fmt.Sprintf("Asynchronous, structured JSON logger configured for '%s'.", service))
	}

	if invalidLevel {
		c.root.Warning("invalid log level, falling back to INFO", slog.String("log_level", rawLevel))
	}
	if drainErr != nil {
		c.root.Warning("previous log sink did not drain in time", slog.String("error", drainErr.Error()))
	}

	return c.root
}

// Logger returns the root Logger. It is valid before Configure and across
// reconfigurations.
func (c *Configurator) Logger() *Logger {
	return c.root
}

// Level returns the active minimum level, or DefaultLevel when nothing is
// installed.
func (c *Configurator) Level() slog.Level {
	if inst := c.current.Load(); inst != nil {
		return inst.level
	}
	return DefaultLevel
}

// Diagnostics reports whether the active installation renders full
// exception detail.
func (c *Configurator) Diagnostics() bool {
	inst := c.current.Load()
	return inst != nil && inst.diagnostics
}

// Flush blocks until every record logged before the call has been written,
// or ctx is done.
func (c *Configurator) Flush(ctx context.Context) error {
	inst := c.current.Load()
	if inst == nil {
		return nil
	}
	return inst.sink.Flush(ctx)
}

// Shutdown removes the active sink after draining it. Records logged
// afterwards are discarded until Configure is called again.
func (c *Configurator) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	inst := c.current.Swap(nil)
	if inst == nil {
		return nil
	}
	return inst.sink.Close(ctx)
}

// Stats reports the counters shared by every sink this Configurator
// installed, plus the queue and breaker state of the active one.
func (c *Configurator) Stats() metrics.Snapshot {
	if inst := c.current.Load(); inst != nil {
		return inst.sink.Stats()
	}
	return c.metrics.Snapshot()
}

var std = NewConfigurator()

// Configure sets up the process-wide logger for serviceName and environment,
// writing to stdout, and makes it slog's default.
func Configure(serviceName, environment string) *Logger {
	return ConfigureWith(Options{Service: serviceName, Environment: environment})
}

// ConfigureWith is Configure with full control over the options.
func ConfigureWith(opts Options) *Logger {
	l := std.Configure(opts)
	slog.SetDefault(l.Logger)
	return l
}

// DefaultConfigurator returns the Configurator behind Configure and Default.
func DefaultConfigurator() *Configurator {
	return std
}

// Default returns the process-wide Logger.
func Default() *Logger {
	return std.Logger()
}

// Flush drains the process-wide sink.
func Flush(ctx context.Context) error {
	return std.Flush(ctx)
}

// Shutdown drains and removes the process-wide sink.
func Shutdown(ctx context.Context) error {
	return std.Shutdown(ctx)
}

// Stats reports the process-wide sink's counters.
func Stats() metrics.Snapshot {
	return std.Stats()
}
