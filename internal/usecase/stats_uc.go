package usecase

import (
	"sync"

	"imagegen-dashboard/internal/infra/metrics"
)

// Compile-time check
var _ StatsUseCase = (*statsUC)(nil)

// Stats is a point-in-time copy of the session counters.
type Stats struct {
	TotalJobs       int64 `json:"total_jobs"`
	Succeeded       int64 `json:"succeeded"`
	Failed          int64 `json:"failed"`
	GeneratedImages int64 `json:"generated_images"`
	TotalArtifacts  int64 `json:"total_artifacts"`
	Uploaded        int64 `json:"uploaded"`
	RowLogEntries   int64 `json:"row_log_entries"`
	CSVEntries      int64 `json:"csv_entries"`
}

// SuccessRate is succeeded over total jobs in percent, 0 without jobs.
func (s Stats) SuccessRate() float64 {
	if s.TotalJobs == 0 {
		return 0
	}
	return float64(s.Succeeded) / float64(s.TotalJobs) * 100
}

type StatsUseCase interface {
	Snapshot() Stats

	JobSubmitted(model string)
	JobSucceeded(images int)
	// JobFailed counts failed and timed out jobs alike.
	JobFailed(state string)
	ArtifactUploaded()
	RowLogged()
	CSVLogged()
}

type statsUC struct {
	mu sync.Mutex
	s  Stats
}

func NewStatsUseCase() *statsUC {
	return &statsUC{}
}

func (u *statsUC) Snapshot() Stats {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.s
}

func (u *statsUC) JobSubmitted(model string) {
	u.mu.Lock()
	u.s.TotalJobs++
	u.mu.Unlock()
	metrics.IncJobSubmitted(model)
}

func (u *statsUC) JobSucceeded(images int) {
	u.mu.Lock()
	u.s.Succeeded++
	if images > 0 {
		u.s.GeneratedImages += int64(images)
	}
	u.mu.Unlock()
	metrics.IncJobFinished("succeeded")
}

func (u *statsUC) JobFailed(state string) {
	u.mu.Lock()
	u.s.Failed++
	u.mu.Unlock()
	metrics.IncJobFinished(state)
}

func (u *statsUC) ArtifactUploaded() {
	u.mu.Lock()
	u.s.Uploaded++
	u.s.TotalArtifacts++
	u.mu.Unlock()
}

func (u *statsUC) RowLogged() {
	u.mu.Lock()
	u.s.RowLogEntries++
	u.mu.Unlock()
}

func (u *statsUC) CSVLogged() {
	u.mu.Lock()
	u.s.CSVEntries++
	u.mu.Unlock()
}
