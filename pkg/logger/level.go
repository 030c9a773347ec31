package logger

import (
	"fmt"
	"log/slog"
	"strings"
)

// Levels extend slog's four with TRACE below DEBUG and CRITICAL above ERROR,
// keeping slog's spacing of four so custom levels in between still order.
const (
	LevelTrace    = slog.Level(-8)
	LevelDebug    = slog.LevelDebug
	LevelInfo     = slog.LevelInfo
	LevelWarning  = slog.LevelWarn
	LevelError    = slog.LevelError
	LevelCritical = slog.Level(12)
)

// DefaultLevel applies when no override is given or the override is invalid.
const DefaultLevel = LevelInfo

var levelNames = []struct {
	level slog.Level
	name  string
}{
	{LevelCritical, "CRITICAL"},
	{LevelError, "ERROR"},
	{LevelWarning, "WARNING"},
	{LevelInfo, "INFO"},
	{LevelDebug, "DEBUG"},
	{LevelTrace, "TRACE"},
}

// LevelName returns the uppercase name written to the "level" field.
// Levels between two named ones render as the lower name plus an offset,
// e.g. "INFO+2".
func LevelName(level slog.Level) string {
	for _, ln := range levelNames {
		if level == ln.level {
			return ln.name
		}
		if level > ln.level {
			return fmt.Sprintf("%s+%d", ln.name, level-ln.level)
		}
	}
	lowest := levelNames[len(levelNames)-1]
	return fmt.Sprintf("%s%d", lowest.name, level-lowest.level)
}

// ParseLevel converts a level name into a slog.Level.
//
// Supported: trace, debug, info, warning (warn), error, critical (fatal).
// "success" maps to info. Matching is case-insensitive and ignores
// surrounding whitespace.
func ParseLevel(level string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return LevelTrace, true
	case "debug":
		return LevelDebug, true
	case "info", "success":
		return LevelInfo, true
	case "warn", "warning":
		return LevelWarning, true
	case "error":
		return LevelError, true
	case "critical", "fatal":
		return LevelCritical, true
	default:
		return DefaultLevel, false
	}
}
