// logger.go - Structured logging setup for the shield daemon
package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// newLogger builds the daemon's zerolog logger at the configured level.
func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}
