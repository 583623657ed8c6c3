package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"imagegen-dashboard/internal/config"
)

func TestNew_JSONRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, config.LogConfig{Level: "warn", Format: "json"}, false)

	log.Info().Msg("hidden")
	log.Warn().Str("step", "upload").Msg("shown")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %d: %s", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal(lines[0], &entry); err != nil {
		t.Fatalf("not json: %v", err)
	}
	if entry["message"] != "shown" || entry["step"] != "upload" {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestWith_AddsContextIDs(t *testing.T) {
	var buf bytes.Buffer
	base := NewWithWriter(&buf, config.LogConfig{Level: "info", Format: "json"}, false)

	ctx := WithJobID(WithRequestID(context.Background(), "req-1"), "J1")
	With(ctx, base).Info().Msg("x")

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("not json: %v", err)
	}
	if entry["request_id"] != "req-1" || entry["job_id"] != "J1" {
		t.Fatalf("missing context fields: %v", entry)
	}
}

func TestRedact(t *testing.T) {
	if got := Redact("short", false); got != "***" {
		t.Errorf("got %q", got)
	}
	if got := Redact("sk-1234567890", false); got != "sk-1...90" {
		t.Errorf("got %q", got)
	}
	if got := Redact("sk-1234567890", true); got != "sk-1234567890" {
		t.Errorf("dev mode should not redact, got %q", got)
	}
}
