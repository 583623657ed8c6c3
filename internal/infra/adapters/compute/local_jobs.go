package compute

import (
	"sync"
	"time"

	"imagegen-dashboard/internal/domain"
	"imagegen-dashboard/internal/domain/model"

	"github.com/oklog/ulid/v2"
)

// localJobs tracks generations that run in-process for providers whose API is synchronous.
type localJobs struct {
	retain time.Duration

	mu   sync.Mutex
	jobs map[string]*localJob
}

type localJob struct {
	snap    model.JobSnapshot
	started time.Time
}

func newLocalJobs(retain time.Duration) *localJobs {
	return &localJobs{retain: retain, jobs: make(map[string]*localJob)}
}

// start registers a pending job and returns its id.
func (t *localJobs) start() string {
	id := ulid.Make().String()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pruneLocked()
	t.jobs[id] = &localJob{snap: model.JobSnapshot{State: model.JobStatePending}, started: time.Now()}
	return id
}

func (t *localJobs) finish(id string, snap model.JobSnapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if j, ok := t.jobs[id]; ok {
		j.snap = snap
	}
}

func (t *localJobs) status(id string) (model.JobSnapshot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	j, ok := t.jobs[id]
	if !ok {
		return model.JobSnapshot{}, domain.NewStepError(domain.StepStatus, domain.ErrRemoteRejected, domain.ErrNotFound)
	}
	snap := j.snap
	snap.ResultURLs = append([]string(nil), j.snap.ResultURLs...)
	return snap, nil
}

// pruneLocked forgets finished jobs older than the retention window.
func (t *localJobs) pruneLocked() {
	cutoff := time.Now().Add(-t.retain)
	for id, j := range t.jobs {
		if j.snap.State.Terminal() && j.started.Before(cutoff) {
			delete(t.jobs, id)
		}
	}
}
