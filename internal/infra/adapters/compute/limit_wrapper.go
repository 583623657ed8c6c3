package compute

import (
	"context"

	"imagegen-dashboard/internal/domain"
	"imagegen-dashboard/internal/domain/model"
	"imagegen-dashboard/internal/domain/ports/adapter"
	"imagegen-dashboard/internal/infra/metrics"
)

// Compile-time check
var _ adapter.ComputeClient = (*limitedCompute)(nil)

type limitedCompute struct {
	inner adapter.ComputeClient
	sem   chan struct{}
}

// NewLimitedCompute bounds the number of concurrent calls into inner.
func NewLimitedCompute(inner adapter.ComputeClient, maxConcurrent int) adapter.ComputeClient {
	if maxConcurrent <= 0 {
		return inner
	}
	return &limitedCompute{
		inner: inner,
		sem:   make(chan struct{}, maxConcurrent),
	}
}

func (l *limitedCompute) acquire(ctx context.Context, step domain.Step) error {
	select {
	case l.sem <- struct{}{}:
		metrics.AddComputeInflight(1)
		return nil
	case <-ctx.Done():
		return domain.NewStepError(step, domain.ErrTransport, ctx.Err())
	}
}

func (l *limitedCompute) release() {
	<-l.sem
	metrics.AddComputeInflight(-1)
}

func (l *limitedCompute) CreateJob(ctx context.Context, modelName string, input map[string]any) (string, error) {
	if err := l.acquire(ctx, domain.StepCreate); err != nil {
		return "", err
	}
	defer l.release()
	return l.inner.CreateJob(ctx, modelName, input)
}

func (l *limitedCompute) GetStatus(ctx context.Context, jobID string) (model.JobSnapshot, error) {
	if err := l.acquire(ctx, domain.StepStatus); err != nil {
		return model.JobSnapshot{}, err
	}
	defer l.release()
	return l.inner.GetStatus(ctx, jobID)
}
