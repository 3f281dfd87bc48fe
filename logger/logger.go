// Package logger builds the structured loggers used by the binaries and
// orchestration engines. Library-level code never logs; engines receive a
// zerolog.Logger explicitly.
package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New creates a console logger for operator-facing binaries.
func New() zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}
	return zerolog.New(output).With().Timestamp().Logger()
}
