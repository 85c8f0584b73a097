package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New builds the service logger. ENVIRONMENT=local gets human-readable
// console output; everything else logs JSON lines to stdout.
func New(environment, level string) (zerolog.Logger, error) {
	return newLogger(os.Stdout, environment, level)
}

func newLogger(out io.Writer, environment, level string) (zerolog.Logger, error) {
	parsedLevel, err := parseLevel(level)
	if err != nil {
		return zerolog.Logger{}, err
	}

	writer := out
	if strings.EqualFold(strings.TrimSpace(environment), "local") {
		writer = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	}

	return zerolog.New(writer).
		Level(parsedLevel).
		With().
		Timestamp().
		Str("service", "feedsift").
		Logger(), nil
}

// Component tags a logger with the subsystem emitting through it.
func Component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}

func parseLevel(raw string) (zerolog.Level, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if normalized == "warning" {
		normalized = "warn"
	}
	level, err := zerolog.ParseLevel(normalized)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("parse LOG_LEVEL=%q: %w", raw, err)
	}
	return level, nil
}
