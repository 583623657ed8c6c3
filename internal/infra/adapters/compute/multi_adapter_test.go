package compute_test

import (
	"context"
	"fmt"
	"testing"

	"imagegen-dashboard/internal/domain/model"
	"imagegen-dashboard/internal/domain/ports/adapter"
	"imagegen-dashboard/internal/infra/adapters/compute"

	"github.com/rs/zerolog"
)

type stubCompute struct {
	name      string
	createN   int
	statusN   int
	lastModel string
}

func (s *stubCompute) CreateJob(ctx context.Context, modelName string, input map[string]any) (string, error) {
	s.createN++
	s.lastModel = modelName
	return fmt.Sprintf("%s-%d", s.name, s.createN), nil
}

func (s *stubCompute) GetStatus(ctx context.Context, jobID string) (model.JobSnapshot, error) {
	s.statusN++
	return model.JobSnapshot{State: model.JobStatePending}, nil
}

func TestRouting_ExplicitMap_Heuristics_And_Fallback(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kie := &stubCompute{name: "kie"}
	oai := &stubCompute{name: "openai"}

	m := compute.NewMultiCompute(
		"kie",
		map[string]adapter.ComputeClient{"kie": kie, "openai": oai},
		map[string]string{"custom-x": "openai"},
	)
	in := map[string]any{"prompt": "p"}

	// explicit map wins
	id, _ := m.CreateJob(ctx, "custom-x", in)
	if oai.createN != 1 || kie.createN != 0 {
		t.Fatalf("explicit map should route to openai, got kie:%d openai:%d", kie.createN, oai.createN)
	}
	// status goes back to the owner
	_, _ = m.GetStatus(ctx, id)
	if oai.statusN != 1 || kie.statusN != 0 {
		t.Fatalf("status should go to the owning provider")
	}

	// dall-e -> openai
	_, _ = m.CreateJob(ctx, "dall-e-3", in)
	if oai.createN != 2 {
		t.Fatalf("dall-e should route to openai")
	}

	// vendor/model -> kie
	_, _ = m.CreateJob(ctx, "google/nano-banana", in)
	if kie.createN != 1 || kie.lastModel != "google/nano-banana" {
		t.Fatalf("vendor model should route to kie")
	}

	// unknown -> default
	_, _ = m.CreateJob(ctx, "mystery", in)
	if kie.createN != 2 {
		t.Fatalf("unknown model should use default provider")
	}
}

func TestRouting_GeminiModels(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kie := &stubCompute{name: "kie"}
	gem := &stubCompute{name: "gemini"}
	m := compute.NewMultiCompute("kie", map[string]adapter.ComputeClient{"kie": kie, "gemini": gem}, nil)
	in := map[string]any{"prompt": "p"}

	_, _ = m.CreateJob(ctx, "imagen-3.0-generate-002", in)
	if gem.createN != 1 {
		t.Fatal("imagen models should route to gemini")
	}
	// openai is not configured, so dall-e falls back to the default provider
	_, _ = m.CreateJob(ctx, "dall-e-3", in)
	if kie.createN != 1 {
		t.Fatalf("missing provider should fall back to default, kie=%d", kie.createN)
	}
}

func TestLimitedCompute_PassThroughAndCancel(t *testing.T) {
	inner := &stubCompute{name: "kie"}
	l := compute.NewLimitedCompute(inner, 1)

	if _, err := l.CreateJob(context.Background(), "m", map[string]any{"prompt": "p"}); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if inner.createN != 1 {
		t.Fatal("call not forwarded")
	}

	if compute.NewLimitedCompute(inner, 0) != adapter.ComputeClient(inner) {
		t.Fatal("limit 0 should return inner unchanged")
	}
}

func TestNoopCompute_SucceedsAfterPendingPolls(t *testing.T) {
	ctx := context.Background()
	log := nopLogger()
	a := compute.NewNoopComputeAdapter(2, &log)
	id, err := a.CreateJob(ctx, "m", map[string]any{"prompt": "p"})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		s, _ := a.GetStatus(ctx, id)
		if s.State != model.JobStatePending {
			t.Fatalf("poll %d: %s", i, s.State)
		}
	}
	s, _ := a.GetStatus(ctx, id)
	if s.State != model.JobStateSucceeded || s.ResultURLs[0] != compute.PlaceholderImageURL {
		t.Fatalf("expected success, got %+v", s)
	}
}

func nopLogger() zerolog.Logger { return zerolog.Nop() }
