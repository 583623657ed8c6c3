package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("compute:\n  provider: noop\n"), true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Poll.MaxAttempts != 60 || cfg.Poll.Delay != 2*time.Second {
		t.Errorf("unexpected poll defaults: %+v", cfg.Poll)
	}
	if cfg.Retry.MaxAttempts != 3 || cfg.Retry.Backoff != time.Second {
		t.Errorf("unexpected retry defaults: %+v", cfg.Retry)
	}
	if cfg.Store.MirrorTTL != 30*time.Second || cfg.Store.FetchTimeout != 30*time.Second {
		t.Errorf("unexpected store defaults: %+v", cfg.Store)
	}
	if cfg.Store.Backend != "none" || cfg.RowLog.Backend != "none" {
		t.Errorf("expected none backends, got %q / %q", cfg.Store.Backend, cfg.RowLog.Backend)
	}
	if cfg.RowLog.Sheets.Range != "Image Log!A:H" {
		t.Errorf("unexpected sheets range %q", cfg.RowLog.Sheets.Range)
	}
	if !cfg.AutoUpload() || !cfg.AutoLog() {
		t.Error("auto upload and auto log should default to true")
	}
	if !cfg.Runtime.Dev {
		t.Error("expected dev runtime flag")
	}
}

func TestParse_Overrides(t *testing.T) {
	src := `
compute:
  provider: KIE
  api_key: k
  callback_url: " https://dash.test/hooks/kie "
poll:
  max_attempts: 5
  delay: 250ms
  deadline: 1m
store:
  backend: memory
  mirror_ttl: 5s
persist:
  auto_upload: false
`
	cfg, err := Parse([]byte(src), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Compute.Provider != "kie" {
		t.Errorf("provider should be normalised, got %q", cfg.Compute.Provider)
	}
	if cfg.Compute.CallbackURL != "https://dash.test/hooks/kie" {
		t.Errorf("unexpected callback url %q", cfg.Compute.CallbackURL)
	}
	if cfg.Poll.MaxAttempts != 5 || cfg.Poll.Delay != 250*time.Millisecond || cfg.Poll.Deadline != time.Minute {
		t.Errorf("unexpected poll config: %+v", cfg.Poll)
	}
	if cfg.Store.MirrorTTL != 5*time.Second {
		t.Errorf("unexpected mirror ttl %v", cfg.Store.MirrorTTL)
	}
	if cfg.AutoUpload() {
		t.Error("auto upload should be disabled")
	}
	if !cfg.AutoLog() {
		t.Error("auto log should stay enabled")
	}
}

func TestParse_Validation(t *testing.T) {
	cases := map[string]string{
		"kie without key":          "compute:\n  provider: kie\n",
		"unknown provider":         "compute:\n  provider: dalle\n",
		"gemini without key":       "compute:\n  provider: gemini\n",
		"drive without creds":      "compute:\n  provider: noop\nstore:\n  backend: drive\n",
		"minio without bucket":     "compute:\n  provider: noop\nstore:\n  backend: minio\n  minio:\n    endpoint: localhost:9000\n",
		"sheets without creds":     "compute:\n  provider: noop\nrow_log:\n  backend: sheets\n",
		"redis log without url":    "compute:\n  provider: noop\nrow_log:\n  backend: redis\n",
		"rate limit without redis": "compute:\n  provider: noop\nhttp:\n  rate_limit: 10\n",
		"unknown row log":          "compute:\n  provider: noop\nrow_log:\n  backend: kafka\n",
	}
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS_JSON", "")
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(src), false); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestParse_GoogleCredentialsFromEnv(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS_JSON", `{"type":"service_account"}`)
	cfg, err := Parse([]byte("compute:\n  provider: noop\nrow_log:\n  backend: sheets\n"), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.RowLog.Sheets.SpreadsheetID != "" {
		t.Errorf("spreadsheet id should stay empty for auto-create, got %q", cfg.RowLog.Sheets.SpreadsheetID)
	}
	if cfg.Store.MemoryBaseURL != "http://localhost:8080/api/v1/artifacts" {
		t.Errorf("unexpected memory base url %q", cfg.Store.MemoryBaseURL)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("compute:\n  provider: noop\nworkers: 2\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Workers != 2 {
		t.Errorf("expected 2 workers, got %d", cfg.Workers)
	}

	if _, err := LoadConfig(filepath.Join(dir, "missing.yaml"), false); err == nil || !strings.Contains(err.Error(), "read config") {
		t.Fatalf("expected read error, got %v", err)
	}
}
