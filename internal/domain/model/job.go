package model

import (
	"strings"
	"time"

	"imagegen-dashboard/internal/domain"
)

type JobState string

const (
	JobStatePending   JobState = "pending"
	JobStateSucceeded JobState = "succeeded"
	JobStateFailed    JobState = "failed"
	JobStateTimedOut  JobState = "timed_out"
)

// Terminal reports whether no further transition can happen from s.
func (s JobState) Terminal() bool {
	return s == JobStateSucceeded || s == JobStateFailed || s == JobStateTimedOut
}

// Job is one remote image-generation request and its lifecycle.
type Job struct {
	ID            string
	Model         string
	Input         map[string]any
	Tags          string
	State         JobState
	ResultURLs    []string
	FailureReason string
	CreatedAt     time.Time
	FinishedAt    time.Time
}

// NewJob validates the input and returns a pending job.
func NewJob(id, modelName string, input map[string]any, tags string) (*Job, error) {
	if id == "" {
		return nil, domain.ErrInvalidArgument
	}
	if err := ValidateInput(input); err != nil {
		return nil, err
	}
	return &Job{
		ID:        id,
		Model:     modelName,
		Input:     input,
		Tags:      tags,
		State:     JobStatePending,
		CreatedAt: time.Now(),
	}, nil
}

// ValidateInput requires a non-empty "prompt" string.
func ValidateInput(input map[string]any) error {
	p, _ := input["prompt"].(string)
	if strings.TrimSpace(p) == "" {
		return domain.ErrInvalidArgument
	}
	return nil
}

// Prompt returns the prompt carried in the job input.
func (j *Job) Prompt() string {
	p, _ := j.Input["prompt"].(string)
	return p
}

// Transition moves the job along pending -> {succeeded | failed | timed_out}.
// Terminal states are immutable.
func (j *Job) Transition(to JobState, resultURLs []string, reason string) error {
	if j.State.Terminal() || !to.Terminal() {
		return domain.ErrInvalidTransition
	}
	j.State = to
	j.FinishedAt = time.Now()
	switch to {
	case JobStateSucceeded:
		j.ResultURLs = append([]string(nil), resultURLs...)
	default:
		j.FailureReason = reason
	}
	return nil
}

// JobSnapshot is the remote view of a job at one point in time.
type JobSnapshot struct {
	State         JobState
	ResultURLs    []string
	FailureReason string
}
