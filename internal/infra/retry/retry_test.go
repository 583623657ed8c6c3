package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"imagegen-dashboard/internal/domain"

	"github.com/rs/zerolog"
)

func nopLog() *zerolog.Logger { l := zerolog.Nop(); return &l }

var fast = Policy{MaxAttempts: 3, Backoff: 0}

func TestDo_RetriesTransientUpToBudget(t *testing.T) {
	calls := 0
	transient := domain.NewStepError(domain.StepStatus, domain.ErrTransient, errors.New("tls: bad record MAC"))
	err := Do(context.Background(), fast, nopLog(), "status", func(context.Context) error {
		calls++
		return transient
	})
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	if err != transient {
		t.Fatalf("expected the underlying error back unchanged, got %v", err)
	}
}

func TestDo_NonTransientPropagatesImmediately(t *testing.T) {
	calls := 0
	rejected := domain.NewStepError(domain.StepStatus, domain.ErrRemoteRejected, errors.New("http 401"))
	err := Do(context.Background(), fast, nopLog(), "status", func(context.Context) error {
		calls++
		return rejected
	})
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
	if !errors.Is(err, domain.ErrRemoteRejected) {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestDoValue_RecoversAfterTransient(t *testing.T) {
	calls := 0
	v, err := DoValue(context.Background(), fast, nopLog(), "download", func(context.Context) ([]byte, error) {
		calls++
		if calls < 3 {
			return nil, domain.NewStepError(domain.StepDownload, domain.ErrTransient, nil)
		}
		return []byte("ok"), nil
	})
	if err != nil || string(v) != "ok" || calls != 3 {
		t.Fatalf("got %q, %v after %d calls", v, err, calls)
	}
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- Do(ctx, Policy{MaxAttempts: 3, Backoff: time.Hour}, nopLog(), "status", func(context.Context) error {
			calls++
			return domain.NewStepError(domain.StepStatus, domain.ErrTransient, nil)
		})
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("retry did not observe cancellation")
	}
	if calls != 1 {
		t.Fatalf("expected 1 call before cancellation, got %d", calls)
	}
}

func TestPolicy_ZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	_ = Do(context.Background(), Policy{}, nil, "x", func(context.Context) error {
		calls++
		return domain.NewStepError(domain.StepFetch, domain.ErrTransient, nil)
	})
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}
