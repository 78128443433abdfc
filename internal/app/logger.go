package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the process logger. JSON output for log aggregation when
// LOG_FORMAT=json, human-readable text otherwise. Every line carries the
// deployment environment so shared dashboards can split staging from
// production.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}

	var handler slog.Handler
	if cfg != nil && cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	if cfg != nil {
		logger = logger.With(slog.String("env", cfg.AppEnv))
	}
	return logger
}
