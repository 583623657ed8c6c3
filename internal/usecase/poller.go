package usecase

import (
	"context"
	"errors"
	"time"

	"imagegen-dashboard/internal/domain"
	"imagegen-dashboard/internal/domain/model"
	"imagegen-dashboard/internal/domain/ports/adapter"
	"imagegen-dashboard/internal/infra/metrics"
	"imagegen-dashboard/internal/infra/retry"

	"github.com/rs/zerolog"
)

const (
	DefaultPollAttempts = 60
	DefaultPollDelay    = 2 * time.Second

	// pending jobs never report more than this
	maxPendingFraction = 0.95

	timedOutReason = "timed out"
)

// PollerConfig bounds the wait for a remote job.
type PollerConfig struct {
	MaxAttempts int
	Delay       time.Duration
	Deadline    time.Duration // wall clock, 0 = attempts only
}

// PollProgress is reported after every status check.
type PollProgress struct {
	Attempt     int
	MaxAttempts int
	Fraction    float64
	State       model.JobState
	Err         error // recoverable status failure on this tick, if any
}

type ProgressFunc func(PollProgress)

// PollOutcome is the terminal result of Poll.
type PollOutcome struct {
	State      model.JobState
	ResultURLs []string
	Reason     string
	Attempts   int
}

// Poller turns an asynchronous remote job into a synchronous result.
type Poller struct {
	client adapter.ComputeClient
	cfg    PollerConfig
	retry  retry.Policy
	log    *zerolog.Logger
}

func NewPoller(client adapter.ComputeClient, cfg PollerConfig, policy retry.Policy, logger *zerolog.Logger) *Poller {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultPollAttempts
	}
	if cfg.Delay < 0 {
		cfg.Delay = 0
	}
	l := logger.With().Str("component", "poller").Logger()
	return &Poller{client: client, cfg: cfg, retry: policy, log: &l}
}

// Poll checks the job status until it is terminal, the attempt budget or deadline
// is spent, or ctx is done. Cancellation leaves the remote job untouched and
// returns ctx.Err().
//
// A failed job returns ErrRemoteRejected at the status step and a timed out job
// ErrTimedOut; the outcome is filled in both cases.
func (p *Poller) Poll(ctx context.Context, jobID string, onProgress ProgressFunc) (PollOutcome, error) {
	var deadline time.Time
	if p.cfg.Deadline > 0 {
		deadline = time.Now().Add(p.cfg.Deadline)
	}
	report := func(pr PollProgress) {
		if onProgress != nil {
			onProgress(pr)
		}
	}
	log := p.log.With().Str("job_id", jobID).Logger()

	max := p.cfg.MaxAttempts
	last := 0.0
	for attempt := 1; attempt <= max; attempt++ {
		snap, err := p.tick(ctx, deadline, &log, jobID)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return PollOutcome{State: model.JobStatePending, Attempts: attempt}, ctxErr
		}
		if err != nil && !deadline.IsZero() && !time.Now().Before(deadline) {
			return p.timedOut(&log, attempt)
		}

		switch {
		case err != nil:
			metrics.IncPollTick("error")
			log.Warn().Err(err).Int("attempt", attempt).Msg("status check failed")
			last = pendingFraction(attempt, max, last)
			report(PollProgress{Attempt: attempt, MaxAttempts: max, Fraction: last, State: model.JobStatePending, Err: err})

		case snap.State == model.JobStateSucceeded:
			metrics.IncPollTick("terminal")
			report(PollProgress{Attempt: attempt, MaxAttempts: max, Fraction: 1, State: model.JobStateSucceeded})
			log.Info().Int("attempt", attempt).Int("results", len(snap.ResultURLs)).Msg("job succeeded")
			return PollOutcome{
				State:      model.JobStateSucceeded,
				ResultURLs: append([]string(nil), snap.ResultURLs...),
				Attempts:   attempt,
			}, nil

		case snap.State == model.JobStateFailed:
			metrics.IncPollTick("terminal")
			reason := snap.FailureReason
			if reason == "" {
				reason = "unknown error"
			}
			report(PollProgress{Attempt: attempt, MaxAttempts: max, Fraction: last, State: model.JobStateFailed})
			log.Warn().Str("reason", reason).Int("attempt", attempt).Msg("job failed")
			return PollOutcome{State: model.JobStateFailed, Reason: reason, Attempts: attempt},
				domain.NewStepError(domain.StepStatus, domain.ErrRemoteRejected, errors.New(reason))

		default:
			metrics.IncPollTick("pending")
			last = pendingFraction(attempt, max, last)
			report(PollProgress{Attempt: attempt, MaxAttempts: max, Fraction: last, State: model.JobStatePending})
		}

		if attempt == max {
			break
		}
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return p.timedOut(&log, attempt)
		}
		if err := wait(ctx, p.cfg.Delay); err != nil {
			return PollOutcome{State: model.JobStatePending, Attempts: attempt}, err
		}
	}
	return p.timedOut(&log, max)
}

// tick runs one retried status check, cut short at the wall-clock deadline.
func (p *Poller) tick(ctx context.Context, deadline time.Time, log *zerolog.Logger, jobID string) (model.JobSnapshot, error) {
	if !deadline.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}
	return retry.DoValue(ctx, p.retry, log, "status", func(ctx context.Context) (model.JobSnapshot, error) {
		return p.client.GetStatus(ctx, jobID)
	})
}

func (p *Poller) timedOut(log *zerolog.Logger, attempts int) (PollOutcome, error) {
	log.Warn().Int("attempts", attempts).Msg("job timed out")
	return PollOutcome{State: model.JobStateTimedOut, Reason: timedOutReason, Attempts: attempts},
		domain.NewStepError(domain.StepStatus, domain.ErrTimedOut, nil)
}

func pendingFraction(attempt, max int, last float64) float64 {
	f := float64(attempt) / float64(max)
	if f > maxPendingFraction {
		f = maxPendingFraction
	}
	if f < last {
		return last
	}
	return f
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
