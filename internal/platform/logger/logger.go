// Package logger builds the process-wide structured logger. All modules log
// through *slog.Logger so request-scoped attributes stay consistent.
package logger

import (
	"log/slog"
	"os"
	"strings"

	"gatehouse/internal/platform/config"
)

// New returns a slog.Logger writing to stdout, JSON by default so log
// pipelines can parse it. Unknown levels fall back to info rather than
// failing startup.
func New(cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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
