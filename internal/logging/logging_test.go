package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stone-age-io/hostfacts/internal/config"
	"go.uber.org/zap"
)

// TestNew_InvalidLevel tests level parsing
func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(config.LoggingConfig{Level: "chatty"})
	if err == nil {
		t.Fatal("New() error = nil, want invalid level error")
	}
	if !strings.Contains(err.Error(), "invalid log level") {
		t.Errorf("New() error = %v", err)
	}
}

// TestNewLogger_ConsoleLevel tests that the level filters console output
func TestNewLogger_ConsoleLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(config.LoggingConfig{Level: "warn"}, &buf)
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}

	logger.Info("hidden message")
	logger.Warn("Facet unavailable", zap.String("facet", "gpu"))
	_ = logger.Sync()

	out := buf.String()
	if strings.Contains(out, "hidden message") {
		t.Errorf("info line written at warn level: %s", out)
	}
	if !strings.Contains(out, "Facet unavailable") || !strings.Contains(out, `"facet": "gpu"`) {
		t.Errorf("warn line missing from console output: %s", out)
	}
}

// TestNewLogger_File tests JSON logging to the rotating file
func TestNewLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hostfacts.log")

	var console bytes.Buffer
	logger, err := newLogger(config.LoggingConfig{
		Level:      "info",
		File:       path,
		MaxSizeMB:  1,
		MaxBackups: 1,
	}, &console)
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}

	logger.Info("Published snapshot", zap.String("subject", "hostfacts.dev1.facts"))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}

	line := strings.TrimSpace(strings.Split(string(data), "\n")[0])
	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v: %s", err, line)
	}
	if entry["msg"] != "Published snapshot" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["subject"] != "hostfacts.dev1.facts" {
		t.Errorf("subject = %v", entry["subject"])
	}
	if _, ok := entry["timestamp"]; !ok {
		t.Error("log line has no timestamp key")
	}
	if console.Len() == 0 {
		t.Error("console output is empty")
	}
}
