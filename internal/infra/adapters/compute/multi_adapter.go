package compute

import (
	"context"
	"errors"
	"strings"
	"sync"

	"imagegen-dashboard/internal/domain"
	"imagegen-dashboard/internal/domain/model"
	"imagegen-dashboard/internal/domain/ports/adapter"
)

var _ adapter.ComputeClient = (*MultiCompute)(nil)

// MultiCompute routes jobs to a provider by model and remembers which provider owns each job id.
type MultiCompute struct {
	defaultProvider string // e.g., "kie", "openai" or "gemini"
	byProvider      map[string]adapter.ComputeClient
	modelToProvider map[string]string

	mu     sync.RWMutex
	owners map[string]string // job id -> provider
}

func NewMultiCompute(
	defaultProvider string,
	byProvider map[string]adapter.ComputeClient,
	modelToProvider map[string]string,
) *MultiCompute {
	return &MultiCompute{
		defaultProvider: strings.ToLower(defaultProvider),
		byProvider:      byProvider,
		modelToProvider: modelToProvider,
		owners:          make(map[string]string),
	}
}

func (m *MultiCompute) resolveProvider(modelName string) string {
	if p := m.modelToProvider[modelName]; p != "" {
		return strings.ToLower(p)
	}
	l := strings.ToLower(modelName)
	switch {
	case strings.HasPrefix(l, "dall-e"), strings.HasPrefix(l, "gpt-image"):
		return "openai"
	case strings.HasPrefix(l, "imagen"), strings.HasPrefix(l, "gemini"):
		return "gemini"
	case strings.Contains(l, "/"): // vendor/model names are kie.ai's catalogue
		return "kie"
	default:
		return m.defaultProvider
	}
}

func (m *MultiCompute) pick(modelName string) (string, adapter.ComputeClient) {
	prov := m.resolveProvider(modelName)
	if c := m.byProvider[prov]; c != nil {
		return prov, c
	}
	if c := m.byProvider[m.defaultProvider]; c != nil {
		return m.defaultProvider, c
	}
	return "", nil
}

func (m *MultiCompute) CreateJob(ctx context.Context, modelName string, input map[string]any) (string, error) {
	prov, c := m.pick(modelName)
	if c == nil {
		return "", domain.NewStepError(domain.StepCreate, domain.ErrInvalidArgument, errors.New("no compute provider for model "+modelName))
	}
	id, err := c.CreateJob(ctx, modelName, input)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	m.owners[id] = prov
	m.mu.Unlock()
	return id, nil
}

func (m *MultiCompute) GetStatus(ctx context.Context, jobID string) (model.JobSnapshot, error) {
	m.mu.RLock()
	prov, ok := m.owners[jobID]
	m.mu.RUnlock()
	if !ok {
		prov = m.defaultProvider
	}
	c := m.byProvider[prov]
	if c == nil {
		return model.JobSnapshot{}, domain.NewStepError(domain.StepStatus, domain.ErrRemoteRejected, domain.ErrNotFound)
	}
	return c.GetStatus(ctx, jobID)
}
