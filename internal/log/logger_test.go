package log

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rsi-trends/internal/config"
)

func TestNewLogger_WritesToConfiguredPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trends.log")

	logger, err := NewLogger(config.LoggingConfig{
		Level:            "debug",
		Encoding:         "json",
		OutputPaths:      []string{path},
		ErrorOutputPaths: []string{"stderr"},
	})
	if err != nil {
		t.Fatalf("NewLogger returned error: %v", err)
	}

	logger.Debug("analysis finished")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, "analysis finished") {
		t.Errorf("expected message in log output, got %q", out)
	}
	if !strings.Contains(out, `"service":"rsi-trends"`) {
		t.Errorf("expected service field in log output, got %q", out)
	}
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	if _, err := NewLogger(config.LoggingConfig{Level: "loud"}); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}
