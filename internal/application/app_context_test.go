package application

import (
	"context"
	"testing"

	"imagegen-dashboard/internal/config"
	"imagegen-dashboard/internal/domain/ports/adapter"

	"github.com/rs/zerolog"
)

func TestNew_NoopComputeAndMemoryStore(t *testing.T) {
	cfg, err := config.Parse([]byte(`
compute:
  provider: noop
store:
  backend: memory
  refresh_interval: 1m
`), true)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	log := zerolog.Nop()

	a, err := New(context.Background(), cfg, &log)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	if !adapter.IsConnected(a.Store) {
		t.Fatal("memory store should report connected")
	}
	if adapter.IsConnected(a.RowLog) {
		t.Fatal("row log backend none should report disconnected")
	}
	if a.Refresher == nil {
		t.Fatal("expected mirror refresher for refresh_interval > 0")
	}
	if a.Server == nil || a.Generation == nil || a.Library == nil {
		t.Fatal("use cases not wired")
	}
}

func TestNew_NoStoreSkipsRefresher(t *testing.T) {
	cfg, err := config.Parse([]byte(`
compute:
  provider: noop
store:
  refresh_interval: 1m
`), true)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	log := zerolog.Nop()

	a, err := New(context.Background(), cfg, &log)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	if a.Refresher != nil {
		t.Fatal("refresher must not run without a store")
	}
	if adapter.IsConnected(a.Store) {
		t.Fatal("store backend none should report disconnected")
	}
}
