package internal

import (
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/log"
)

// newLogger builds the application logger. The json format writes one
// object per line; the console format is a colored human-readable
// handler meant for local runs.
func newLogger(cfg ApplicationConfig, out io.Writer) *slog.Logger {
	switch cfg.LogFormat {
	case LogFormatConsole:
		if out == nil {
			out = os.Stderr
		}
		return slog.New(log.NewWithOptions(out, log.Options{
			ReportTimestamp: true,
			Level:           log.Level(cfg.LogLevel),
		}))
	default:
		if out == nil {
			out = os.Stdout
		}
		return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
			Level: cfg.LogLevel,
		}))
	}
}
