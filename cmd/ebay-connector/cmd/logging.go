package cmd

import (
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/donaldgifford/ebay-connector/internal/config"
	"github.com/donaldgifford/ebay-connector/pkg/logger"
)

// newLogger returns the service logger. Text output goes through the
// charm handler for readable terminals; JSON output is plain slog.
func newLogger(cfg config.LoggingConfig) *slog.Logger {
	if strings.EqualFold(cfg.Format, "json") {
		return logger.New(cfg.Level, cfg.Format)
	}
	return slog.New(log.NewWithOptions(os.Stderr, log.Options{
		Level:           parseLogLevel(cfg.Level),
		ReportTimestamp: true,
	}))
}

func parseLogLevel(level string) log.Level {
	switch strings.ToLower(level) {
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}
