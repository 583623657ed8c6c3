package gcp

import "testing"

func TestClientOptions(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS_JSON", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	if opts := ClientOptions(""); opts != nil {
		t.Fatalf("expected no options, got %d", len(opts))
	}
	if opts := ClientOptions("/etc/sa.json"); len(opts) != 1 {
		t.Fatalf("expected file option, got %d", len(opts))
	}
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS_JSON", `{"type":"service_account"}`)
	if opts := ClientOptions(""); len(opts) != 1 {
		t.Fatalf("expected env json option, got %d", len(opts))
	}
}
