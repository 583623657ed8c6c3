package compute

import (
	"context"
	"errors"
	"sync"

	"imagegen-dashboard/internal/domain"
	"imagegen-dashboard/internal/domain/model"
	"imagegen-dashboard/internal/domain/ports/adapter"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

var _ adapter.ComputeClient = (*NoopComputeAdapter)(nil)

// PlaceholderImageURL is what noop jobs resolve to.
const PlaceholderImageURL = "https://placehold.co/1024x1024.png"

// NoopComputeAdapter implements adapter.ComputeClient for local/dev testing.
// Every job stays pending for a fixed number of status calls and then succeeds.
type NoopComputeAdapter struct {
	pendingPolls int
	log          *zerolog.Logger

	mu    sync.Mutex
	polls map[string]int
}

func NewNoopComputeAdapter(pendingPolls int, log *zerolog.Logger) *NoopComputeAdapter {
	if pendingPolls < 0 {
		pendingPolls = 0
	}
	return &NoopComputeAdapter{pendingPolls: pendingPolls, log: log, polls: make(map[string]int)}
}

func (a *NoopComputeAdapter) CreateJob(ctx context.Context, modelName string, input map[string]any) (string, error) {
	if err := model.ValidateInput(input); err != nil {
		return "", domain.NewStepError(domain.StepCreate, domain.ErrInvalidArgument, errors.New("prompt is required"))
	}
	if err := ctx.Err(); err != nil {
		return "", domain.NewStepError(domain.StepCreate, domain.ErrTransport, err)
	}
	id := ulid.Make().String()
	a.mu.Lock()
	a.polls[id] = 0
	a.mu.Unlock()
	a.log.Info().Str("job_id", id).Str("model", modelName).Msg("[noop-compute] job created")
	return id, nil
}

func (a *NoopComputeAdapter) GetStatus(ctx context.Context, jobID string) (model.JobSnapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	n, ok := a.polls[jobID]
	if !ok {
		return model.JobSnapshot{}, domain.NewStepError(domain.StepStatus, domain.ErrRemoteRejected, domain.ErrNotFound)
	}
	a.polls[jobID] = n + 1
	if n < a.pendingPolls {
		return model.JobSnapshot{State: model.JobStatePending}, nil
	}
	return model.JobSnapshot{State: model.JobStateSucceeded, ResultURLs: []string{PlaceholderImageURL}}, nil
}
