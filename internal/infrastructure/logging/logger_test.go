package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/olmmcc/sitedb/internal/infrastructure/config"
)

func TestNew_Outputs(t *testing.T) {
	for _, output := range []string{"stdout", "stderr", "discard", ""} {
		t.Run("output="+output, func(t *testing.T) {
			logger := New(config.LoggingConfig{Level: "info", Format: "json", Output: output}, "1.0.0")
			if logger == nil {
				t.Fatal("expected non-nil logger")
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"DEBUG", slog.LevelDebug},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNewWithWriter_JSONDefaultFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, config.LoggingConfig{Level: "info"}, "test")

	logger.Info("statement executed", "table", "users")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON output: %v", err)
	}

	if entry["service"] != "sitedb" {
		t.Errorf("service = %v, want sitedb", entry["service"])
	}
	if entry["version"] != "test" {
		t.Errorf("version = %v, want test", entry["version"])
	}
	if entry["msg"] != "statement executed" {
		t.Errorf("msg = %v, want 'statement executed'", entry["msg"])
	}
	if entry["table"] != "users" {
		t.Errorf("table = %v, want users", entry["table"])
	}
}

func TestNewWithWriter_TextAndLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, config.LoggingConfig{Level: "warn", Format: "text"}, "test")

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message should be filtered at warn level: %q", out)
	}
	if !strings.Contains(out, "msg=shown") {
		t.Errorf("expected text-format warn entry, got %q", out)
	}
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, config.LoggingConfig{Level: "info"}, "1.0.0")
	child := logger.With("component", "store")

	if child == logger {
		t.Error("expected child logger to be different from parent")
	}

	child.Info("ready")
	if !strings.Contains(buf.String(), `"component":"store"`) {
		t.Errorf("child output missing component attr: %s", buf.String())
	}
}

func TestDefault(t *testing.T) {
	if Default() == nil {
		t.Fatal("expected non-nil default logger")
	}
}
