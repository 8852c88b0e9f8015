// Package logging builds the process's zerolog.Logger the way
// src/logger.go and old_ws/ws build theirs: JSON in production,
// console-pretty in development, level driven by config.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/adred-codev/filerelay/internal/config"
)

// New builds a root logger configured per cfg. Callers derive
// per-component loggers with logger.With().Str("component", name).
func New(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var writer = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	if !cfg.Development {
		return zerolog.New(os.Stdout).With().Timestamp().Str("service", "filerelay").Logger()
	}

	return zerolog.New(writer).With().Timestamp().Str("service", "filerelay").Logger()
}
