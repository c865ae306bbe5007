package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestSetup(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	logger, err := Setup("info", FormatText, &buf)
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	logger.Debug("hidden")
	slog.Info("uploaded", "key", "index.html")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug message should be filtered at info level")
	}
	if !strings.Contains(out, "key=index.html") {
		t.Errorf("expected global logger to write through Setup handler, got %q", out)
	}
}

func TestSetupJSON(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	logger, err := Setup("debug", FormatJSON, &buf)
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	logger.Debug("stage done", "stage", "htmlmin")

	if !strings.Contains(buf.String(), `"stage":"htmlmin"`) {
		t.Errorf("expected JSON output, got %q", buf.String())
	}
}

func TestSetupInvalid(t *testing.T) {
	if _, err := Setup("loud", FormatText, &bytes.Buffer{}); err == nil {
		t.Error("expected error for invalid log level")
	}
	if _, err := Setup("info", Format("xml"), &bytes.Buffer{}); err == nil {
		t.Error("expected error for invalid log format")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := parseLevel(tt.in)
		if err != nil {
			t.Errorf("parseLevel(%q) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
