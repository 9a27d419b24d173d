package logger

import (
	"io"
	"log/slog"
	"strings"
)

const (
	EnvLocal = "local"
	EnvProd  = "production"
	EnvTest  = "test"
	EnvDev   = "development"
)

// SetupLogger builds the process logger. Local runs get human-readable text,
// everything else JSON. The CLI passes stderr so stdout stays clean.
func SetupLogger(env, level string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var log *slog.Logger
	switch env {
	case EnvLocal:
		log = slog.New(slog.NewTextHandler(w, opts))
	case EnvTest, EnvDev, EnvProd:
		log = slog.New(slog.NewJSONHandler(w, opts))
	default:
		log = slog.New(slog.NewTextHandler(w, opts))
	}
	return log
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
