package cmd

import (
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// setupLogging routes slog through a tinted stderr handler so log lines
// never interleave with a protocol stream on stdout.
func setupLogging(level slog.Level) {
	slog.SetDefault(slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.RFC3339,
		}),
	))
}
