package log

import (
	"log/slog"
	"os"
)

// Setup installs the process-wide logger. The level comes from
// configuration; LOG_FORMAT=json switches to the JSON handler used in
// deployments, text stays the local default.
func Setup(logLevel string) {
	opts := &slog.HandlerOptions{Level: parseLevel(logLevel)}

	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if os.Getenv("LOG_FORMAT") == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler).With("service", "journey"))
}

func parseLevel(logLevel string) slog.Level {
	switch logLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}
