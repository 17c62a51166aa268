package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNew_JSONDefault(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "info", "")
	WithProjectID(logger, "p1").Info("hello", "n", 1)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if rec["project_id"] != "p1" {
		t.Errorf("project_id = %v, want p1", rec["project_id"])
	}
}

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "info", "text").Info("hello")
	if !strings.Contains(buf.String(), "msg=hello") {
		t.Errorf("text output = %q", buf.String())
	}
}

func TestNew_AutoNonTerminalIsJSON(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "info", "auto").Info("hello")
	if !strings.HasPrefix(buf.String(), "{") {
		t.Errorf("auto on a buffer should be JSON, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARNING": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSanitizeToken(t *testing.T) {
	if got := SanitizeToken("short"); got != "****" {
		t.Errorf("SanitizeToken(short) = %q", got)
	}
	if got := SanitizeToken("abcdefghijkl"); got != "abcd...ijkl" {
		t.Errorf("SanitizeToken = %q", got)
	}
}
