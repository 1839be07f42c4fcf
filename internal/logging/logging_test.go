package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestValidLevel(t *testing.T) {
	for _, l := range []string{"", "debug", "Info", "warning", "error"} {
		if !ValidLevel(l) {
			t.Errorf("ValidLevel(%q) = false", l)
		}
	}
	if ValidLevel("trace") {
		t.Error("ValidLevel(trace) = true")
	}
}

func TestSetupJSON(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger := Setup(Config{Format: "json", Level: "warn"}, &buf)
	logger = Component(ForRun(logger, "run-1"), "publish")

	logger.Info("dropped")
	logger.Warn("kept", "key", "linux-64/repodata.json")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d records, want 1:\n%s", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("record is not JSON: %v", err)
	}
	if rec["msg"] != "kept" || rec["run_id"] != "run-1" || rec["component"] != "publish" {
		t.Errorf("record = %v", rec)
	}
	if !slog.Default().Enabled(context.Background(), slog.LevelWarn) || slog.Default().Enabled(context.Background(), slog.LevelInfo) {
		t.Error("default logger not installed at warn level")
	}
}

func TestSetupText(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	Setup(Config{Format: "text", Level: "debug"}, &buf).Debug("hello", "n", 1)
	if !strings.Contains(buf.String(), "msg=hello") || !strings.Contains(buf.String(), "n=1") {
		t.Errorf("text output = %q", buf.String())
	}
}

func TestRunID(t *testing.T) {
	id := NewRunID()
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("NewRunID() = %q: %v", id, err)
	}
	if NewRunID() == id {
		t.Error("run ids repeat")
	}

	ctx := WithRunID(context.Background(), id)
	if RunID(ctx) != id {
		t.Errorf("RunID = %q", RunID(ctx))
	}
	if RunID(context.Background()) != "" {
		t.Error("RunID without value should be empty")
	}
}

func TestNilLoggers(t *testing.T) {
	Component(nil, "x").Info("discarded")
	ForRun(nil, "id").Error("discarded")
	if OrDiscard(nil) == nil {
		t.Error("OrDiscard(nil) returned nil")
	}
}
