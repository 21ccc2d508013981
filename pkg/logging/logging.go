package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Level is the slog level a wsmock logger filters on.
type Level = slog.Level

const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// Format selects the slog handler.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Config describes a logger built by New.
type Config struct {
	Level  Level
	Format Format

	// Output receives the records. Nil means stderr.
	Output io.Writer

	// AddSource tags records with the calling file and line.
	AddSource bool
}

// DefaultConfig is the wsmock command's logging when no flag or config file
// overrides it. Socket, heartbeat and harness records are debug level, so a
// plain run prints only warnings about dropped messages or failed steps.
func DefaultConfig() Config {
	return Config{Level: LevelWarn, Format: FormatText, Output: os.Stderr}
}

// New builds a logger from cfg.
func New(cfg Config) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	return slog.New(handlerFor(cfg.Format, out, &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
	}))
}

func handlerFor(f Format, w io.Writer, opts *slog.HandlerOptions) slog.Handler {
	if f == FormatJSON {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// Nop discards every record.
func Nop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// OrNop lets option-less constructors accept a nil logger.
func OrNop(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return Nop()
	}
	return logger
}

// Component scopes logger to one harness part, e.g. "socket" or "heartbeat".
func Component(logger *slog.Logger, name string) *slog.Logger {
	return OrNop(logger).With("component", name)
}

// ParseLevel maps a --log-level value to a Level, ignoring case. "warning" is
// accepted for warn, and anything unknown falls back to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// ParseFormat maps a --log-format value to a Format. Only "json" (any case)
// selects JSON.
func ParseFormat(s string) Format {
	if strings.EqualFold(s, string(FormatJSON)) {
		return FormatJSON
	}
	return FormatText
}
