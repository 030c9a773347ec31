package logger

import (
	"context"
	"log/slog"
	"runtime"
	"time"
)

// Logger wraps slog.Logger with the extra levels, bound-context helpers and
// flushing of the sink it writes to.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Logger struct {
	*slog.Logger
	cfg *Configurator
}

// Bind returns a Logger whose records all carry the given key-value pairs.
// Bound keys override the static service and environment fields.
//
// Example:
//
//	reqLog := log.Bind("request_id", id)
//	reqLog.Info("charging card") // includes request_id
func (l *Logger) Bind(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...), cfg: l.cfg}
}

// With is Bind under slog's name, returning a *Logger.
func (l *Logger) With(args ...any) *Logger {
	return l.Bind(args...)
}

// WithGroup returns a Logger that prefixes subsequent keys with name and a dot.
func (l *Logger) WithGroup(name string) *Logger {
	return &Logger{Logger: l.Logger.WithGroup(name), cfg: l.cfg}
}

func (l *Logger) Trace(msg string, args ...any) {
	l.log(context.Background(), LevelTrace, msg, args...)
}

func (l *Logger) Warning(msg string, args ...any) {
	l.log(context.Background(), LevelWarning, msg, args...)
}

func (l *Logger) Critical(msg string, args ...any) {
	l.log(context.Background(), LevelCritical, msg, args...)
}

// Exception logs msg at ERROR with err attached as the record's exception.
// How much of err is written depends on the environment the configurator
// was set up for.
func (l *Logger) Exception(msg string, err error, args ...any) {
	withErr := make([]any, 0, len(args)+1)
	withErr = append(withErr, args...)
	withErr = append(withErr, Exc(err))
	l.log(context.Background(), LevelError, msg, withErr...)
}

// Flush waits until everything logged so far has been written.
func (l *Logger) Flush(ctx context.Context) error {
	return l.cfg.Flush(ctx)
}

// log keeps the caller's PC on the record so "source" points at the call
// site rather than at this file.
func (l *Logger) log(ctx context.Context, level slog.Level, msg string, args ...any) {
	if !l.Enabled(ctx, level) {
		return
	}

	var pcs [1]uintptr
	runtime.Callers(3, pcs[:]) // skip [Callers, log, exported method]

	r := slog.NewRecord(time.Now(), level, msg, pcs[0])
	r.Add(args...)
	_ = l.Handler().Handle(ctx, r)
}
