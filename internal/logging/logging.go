package logging

import (
	"io"
	"log/slog"
	"os"
)

// Init installs the default slog logger. LOG_LEVEL overrides def.
func Init(def slog.Level) {
	InitTo(os.Stderr, def)
}

// InitTo is Init with an explicit destination. The chat screen owns the
// terminal, so the client logs to a file when one is given.
func InitTo(w io.Writer, def slog.Level) {
	logger := slog.New(
		slog.NewTextHandler(w, &slog.HandlerOptions{
			Level: Level(os.Getenv("LOG_LEVEL"), def),
		}),
	)
	slog.SetDefault(logger)
}

// Level maps a LOG_LEVEL value to a slog level.
func Level(name string, def slog.Level) slog.Level {
	switch name {
	case "dev", "development", "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "production", "prod":
		return slog.LevelError
	}
	return def
}
