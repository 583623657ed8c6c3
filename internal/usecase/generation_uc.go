package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"imagegen-dashboard/internal/domain"
	"imagegen-dashboard/internal/domain/model"
	"imagegen-dashboard/internal/domain/ports/adapter"
	"imagegen-dashboard/internal/infra/worker"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ GenerationUseCase = (*generationUC)(nil)

// ErrJobRunning is returned by Start when the job already has a running task.
var ErrJobRunning = errors.New("job already running")

type SubmitRequest struct {
	Model string         `json:"model"`
	Input map[string]any `json:"input"`
	Tags  string         `json:"tags"`
}

type GenerationUseCase interface {
	// Submit creates the remote job and records it as pending.
	Submit(ctx context.Context, req SubmitRequest) (*model.Job, error)
	// Await polls a submitted job to a terminal state and persists its results.
	// A cancelled ctx leaves the job pending.
	Await(ctx context.Context, jobID string, onProgress ProgressFunc) (*model.Job, *PersistReport, error)
	// Generate is Submit followed by Await.
	Generate(ctx context.Context, req SubmitRequest, onProgress ProgressFunc) (*model.Job, *PersistReport, error)
	// Start runs Await for jobID on the worker pool.
	Start(ctx context.Context, jobID string) error
	// Cancel stops a task started by Start. It reports whether one was running.
	Cancel(jobID string) bool

	History() []model.Job
	Job(id string) (model.Job, bool)
	Progress(id string) (PollProgress, bool)
	Report(id string) (PersistReport, bool)
}

// TaskSubmitter runs tasks in the background.
type TaskSubmitter interface {
	Submit(task worker.Task) error
}

type jobRun struct {
	cancel    context.CancelFunc
	cancelled bool
}

type generationUC struct {
	compute      adapter.ComputeClient
	poller       *Poller
	persister    *Persister
	stats        StatsUseCase
	tasks        TaskSubmitter
	defaultModel string
	log          *zerolog.Logger

	mu       sync.RWMutex
	jobs     map[string]*model.Job
	order    []string // submission order, oldest first
	progress map[string]PollProgress
	reports  map[string]PersistReport
	runs     map[string]*jobRun
}

func NewGenerationUseCase(compute adapter.ComputeClient, poller *Poller, persister *Persister, stats StatsUseCase, tasks TaskSubmitter, defaultModel string, logger *zerolog.Logger) *generationUC {
	l := logger.With().Str("component", "generation").Logger()
	return &generationUC{
		compute:      compute,
		poller:       poller,
		persister:    persister,
		stats:        stats,
		tasks:        tasks,
		defaultModel: defaultModel,
		log:          &l,
		jobs:         make(map[string]*model.Job),
		progress:     make(map[string]PollProgress),
		reports:      make(map[string]PersistReport),
		runs:         make(map[string]*jobRun),
	}
}

func (g *generationUC) Submit(ctx context.Context, req SubmitRequest) (*model.Job, error) {
	if err := model.ValidateInput(req.Input); err != nil {
		return nil, domain.NewStepError(domain.StepCreate, domain.ErrInvalidArgument, errors.New("prompt is required"))
	}
	modelName := req.Model
	if modelName == "" {
		modelName = g.defaultModel
	}
	if modelName == "" {
		return nil, domain.NewStepError(domain.StepCreate, domain.ErrInvalidArgument, errors.New("model is required"))
	}

	id, err := g.compute.CreateJob(ctx, modelName, req.Input)
	if err != nil {
		g.log.Warn().Err(err).Str("model", modelName).Msg("create job failed")
		return nil, domain.Retag(domain.StepCreate, domain.ErrTransport, err)
	}
	job, err := model.NewJob(id, modelName, req.Input, req.Tags)
	if err != nil {
		return nil, domain.NewStepError(domain.StepCreate, domain.ErrRemoteRejected, fmt.Errorf("empty job id: %w", err))
	}

	g.mu.Lock()
	if _, dup := g.jobs[id]; dup {
		g.log.Warn().Str("job_id", id).Msg("provider reused a job id; replacing the earlier job")
	} else {
		g.order = append(g.order, id)
	}
	g.jobs[id] = job
	cp := *job
	g.mu.Unlock()

	if g.stats != nil {
		g.stats.JobSubmitted(modelName)
	}
	g.log.Info().Str("job_id", id).Str("model", modelName).Msg("job submitted")
	return &cp, nil
}

func (g *generationUC) Await(ctx context.Context, jobID string, onProgress ProgressFunc) (*model.Job, *PersistReport, error) {
	g.mu.RLock()
	job, ok := g.jobs[jobID]
	var cp model.Job
	if ok {
		cp = *job
	}
	g.mu.RUnlock()
	if !ok {
		return nil, nil, domain.NewStepError(domain.StepStatus, domain.ErrNotFound, nil)
	}
	if cp.State.Terminal() {
		if rep, ok := g.Report(jobID); ok {
			return &cp, &rep, nil
		}
		return &cp, nil, nil
	}

	outcome, pollErr := g.poller.Poll(ctx, jobID, func(p PollProgress) {
		g.mu.Lock()
		g.progress[jobID] = p
		g.mu.Unlock()
		if onProgress != nil {
			onProgress(p)
		}
	})
	if !outcome.State.Terminal() {
		// cancelled: the job stays pending
		g.mu.RLock()
		cp = *g.jobs[jobID]
		g.mu.RUnlock()
		return &cp, nil, pollErr
	}

	g.mu.Lock()
	if err := job.Transition(outcome.State, outcome.ResultURLs, outcome.Reason); err != nil {
		// a concurrent Await finished the job first
		cp = *job
		g.mu.Unlock()
		return &cp, nil, err
	}
	cp = *job
	g.mu.Unlock()

	if outcome.State != model.JobStateSucceeded {
		if g.stats != nil {
			g.stats.JobFailed(string(outcome.State))
		}
		return &cp, nil, pollErr
	}

	if g.stats != nil {
		g.stats.JobSucceeded(len(cp.ResultURLs))
	}
	var rep PersistReport
	if g.persister != nil {
		// the job is finished remotely; cancelling the wait must not drop its results
		rep = g.persister.Persist(context.WithoutCancel(ctx), &cp)
	} else {
		rep = PersistReport{JobID: jobID}
	}
	g.mu.Lock()
	g.reports[jobID] = rep
	g.mu.Unlock()
	return &cp, &rep, nil
}

func (g *generationUC) Generate(ctx context.Context, req SubmitRequest, onProgress ProgressFunc) (*model.Job, *PersistReport, error) {
	job, err := g.Submit(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	return g.Await(ctx, job.ID, onProgress)
}

func (g *generationUC) Start(ctx context.Context, jobID string) error {
	if g.tasks == nil {
		return errors.New("no task runner configured")
	}
	g.mu.Lock()
	job, ok := g.jobs[jobID]
	if !ok {
		g.mu.Unlock()
		return domain.NewStepError(domain.StepStatus, domain.ErrNotFound, nil)
	}
	if job.State.Terminal() {
		g.mu.Unlock()
		return domain.ErrInvalidTransition
	}
	if _, running := g.runs[jobID]; running {
		g.mu.Unlock()
		return ErrJobRunning
	}
	run := &jobRun{}
	g.runs[jobID] = run
	g.mu.Unlock()

	token := adapter.BearerToken(ctx, "")
	err := g.tasks.Submit(func(poolCtx context.Context) error {
		taskCtx, cancel := context.WithCancel(adapter.WithBearerToken(poolCtx, token))
		defer cancel()

		g.mu.Lock()
		if run.cancelled {
			delete(g.runs, jobID)
			g.mu.Unlock()
			return nil
		}
		run.cancel = cancel
		g.mu.Unlock()

		defer func() {
			g.mu.Lock()
			delete(g.runs, jobID)
			g.mu.Unlock()
		}()

		_, _, err := g.Await(taskCtx, jobID, nil)
		if errors.Is(err, context.Canceled) {
			g.log.Info().Str("job_id", jobID).Msg("job wait cancelled")
			return nil
		}
		return err
	})
	if err != nil {
		g.mu.Lock()
		delete(g.runs, jobID)
		g.mu.Unlock()
		return err
	}
	return nil
}

func (g *generationUC) Cancel(jobID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	run, ok := g.runs[jobID]
	if !ok {
		return false
	}
	run.cancelled = true
	if run.cancel != nil {
		run.cancel()
	}
	return true
}

// History returns copies of every job, most recent first.
func (g *generationUC) History() []model.Job {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]model.Job, 0, len(g.order))
	for i := len(g.order) - 1; i >= 0; i-- {
		out = append(out, *g.jobs[g.order[i]])
	}
	return out
}

func (g *generationUC) Job(id string) (model.Job, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	j, ok := g.jobs[id]
	if !ok {
		return model.Job{}, false
	}
	return *j, true
}

func (g *generationUC) Progress(id string) (PollProgress, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	p, ok := g.progress[id]
	return p, ok
}

func (g *generationUC) Report(id string) (PersistReport, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.reports[id]
	return r, ok
}
