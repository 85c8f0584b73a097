package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLoggerJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := newLogger(&buf, "production", "WARNING")
	if err != nil {
		t.Fatalf("newLogger failed: %v", err)
	}
	if logger.GetLevel() != zerolog.WarnLevel {
		t.Fatalf("expected warn level, got %s", logger.GetLevel())
	}

	componentLogger := Component(logger, "ingest")
	componentLogger.Warn().Msg("hello")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected JSON log line, got %q: %v", buf.String(), err)
	}
	if line["service"] != "feedsift" || line["component"] != "ingest" || line["message"] != "hello" {
		t.Fatalf("unexpected log line %v", line)
	}
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	if _, err := New("local", "loud"); err == nil {
		t.Fatalf("expected unknown level to fail")
	}
}
