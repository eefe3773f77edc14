package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func parseLogLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Log output is not JSON: %v (%q)", err, buf.String())
	}
	return entry
}

func TestLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.Info("hello")

	entry := parseLogLine(t, &buf)
	if entry["msg"] != "hello" {
		t.Errorf("Expected msg hello, got %v", entry["msg"])
	}
	if entry["level"] != "INFO" {
		t.Errorf("Expected level INFO, got %v", entry["level"])
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(WarnLevel, &buf)

	logger.Info("quiet")
	if buf.Len() != 0 {
		t.Errorf("Expected info to be filtered at warn level, got %q", buf.String())
	}

	logger.Warn("loud")
	if buf.Len() == 0 {
		t.Error("Expected warn to pass at warn level")
	}
}

func TestLoggerWithField(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf).WithField("component", "cache")

	logger.Info("ready")

	entry := parseLogLine(t, &buf)
	if entry["component"] != "cache" {
		t.Errorf("Expected component field, got %v", entry)
	}
}

func TestLoggerWithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf).WithFields(map[string]interface{}{
		"metric": "signups",
		"rows":   12,
	})

	logger.Info("query complete")

	entry := parseLogLine(t, &buf)
	if entry["metric"] != "signups" || entry["rows"] != float64(12) {
		t.Errorf("Expected both fields, got %v", entry)
	}
}

func TestLoggerWithError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.WithError(errors.New("boom")).Error("failed")
	entry := parseLogLine(t, &buf)
	if entry["error"] != "boom" {
		t.Errorf("Expected error field, got %v", entry)
	}

	if got := logger.WithError(nil); got != logger {
		t.Error("Expected WithError(nil) to return the same logger")
	}
}

func TestLoggerFormatted(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(DebugLevel, &buf)

	logger.Debugf("processed %d of %d", 3, 10)

	entry := parseLogLine(t, &buf)
	if entry["msg"] != "processed 3 of 10" {
		t.Errorf("Unexpected formatted message: %v", entry["msg"])
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  LogLevel
	}{
		{"debug", DebugLevel},
		{"DEBUG", DebugLevel},
		{"info", InfoLevel},
		{"warn", WarnLevel},
		{"warning", WarnLevel},
		{"error", ErrorLevel},
		{"nonsense", InfoLevel},
		{"", InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLogLevel(tt.input); got != tt.want {
			t.Errorf("ParseLogLevel(%q): expected %v, got %v", tt.input, tt.want, got)
		}
	}
}

func TestRequestIDContext(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-123")
	if got := GetRequestID(ctx); got != "req-123" {
		t.Errorf("Expected req-123, got %q", got)
	}
	if got := GetRequestID(context.Background()); got != "" {
		t.Errorf("Expected empty request ID, got %q", got)
	}
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	ctx := WithLogger(context.Background(), logger)
	ctx = WithRequestID(ctx, "req-456")

	FromContext(ctx).Info("handling")

	entry := parseLogLine(t, &buf)
	if entry["request_id"] != "req-456" {
		t.Errorf("Expected request_id annotation, got %v", entry)
	}
}
