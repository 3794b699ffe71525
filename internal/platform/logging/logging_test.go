package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoggerWritesConsoleAndJSONFile(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer

	logger, err := New(Config{Level: "debug", Dir: dir, Filename: "test.log", Console: &console})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.InfoTag("AUTH", "admin login accepted", "client", "10.0.0.1")
	logger.Warn("window reset for %s", "10.0.0.2")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	out := console.String()
	if !strings.Contains(out, "[AUTH] admin login accepted") || !strings.Contains(out, "client=10.0.0.1") {
		t.Fatalf("unexpected console output: %q", out)
	}
	if !strings.Contains(out, "window reset for 10.0.0.2") {
		t.Fatalf("printf-style message missing: %q", out)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "test.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 JSON lines, got %d: %q", len(lines), raw)
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("first line is not JSON: %v", err)
	}
	if entry["msg"] != "[AUTH] admin login accepted" || entry["client"] != "10.0.0.1" {
		t.Fatalf("unexpected JSON entry: %v", entry)
	}
}

func TestLoggerRespectsLevel(t *testing.T) {
	var console bytes.Buffer
	logger, err := New(Config{Level: "warn", Console: &console})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Debug("hidden")
	logger.Info("hidden too")
	logger.Error("visible")

	if strings.Contains(console.String(), "hidden") {
		t.Fatalf("lower levels should be filtered: %q", console.String())
	}
	if !strings.Contains(console.String(), "[ERROR] visible") {
		t.Fatalf("error entry missing: %q", console.String())
	}
}

func TestFormatLog(t *testing.T) {
	tests := []struct{ tag, msg, want string }{
		{"HTTP", "started", "[HTTP] started"},
		{"", "plain", "plain"},
		{"HTTP", "[BOOT] kept", "[BOOT] kept"},
	}
	for _, tt := range tests {
		if got := FormatLog(tt.tag, tt.msg); got != tt.want {
			t.Errorf("FormatLog(%q, %q) = %q, want %q", tt.tag, tt.msg, got, tt.want)
		}
	}
}

func TestNopLoggerIsSilent(t *testing.T) {
	logger := NewNop()
	logger.Error("nothing should happen %d", 1)
	if err := logger.Close(); err != nil {
		t.Fatalf("Close on nop logger: %v", err)
	}
}
