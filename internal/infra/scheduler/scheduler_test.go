package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestScheduler_RunsUntilStopped(t *testing.T) {
	var runs atomic.Int32
	log := zerolog.Nop()
	s := NewScheduler("test", 10*time.Millisecond, RefreshFunc(func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}), &log)

	s.Start(context.Background())
	s.Start(context.Background()) // no-op
	deadline := time.Now().Add(time.Second)
	for runs.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	s.Stop()
	if runs.Load() < 2 {
		t.Fatalf("expected at least 2 runs, got %d", runs.Load())
	}
	after := runs.Load()
	time.Sleep(30 * time.Millisecond)
	if runs.Load() != after {
		t.Fatal("scheduler kept running after Stop")
	}
	s.Stop() // idempotent
}
