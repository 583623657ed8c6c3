package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound          = errors.New("entity not found")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrInvalidTransition = errors.New("invalid job state transition")

	// Pipeline error kinds. Every failure surfaced by the core matches exactly one of these
	// through errors.Is, and is attributed to a Step by StepError.
	ErrTransient         = errors.New("transient remote failure")
	ErrTransport         = errors.New("transport failure")
	ErrRemoteRejected    = errors.New("remote service rejected the request")
	ErrNotAuthenticated  = errors.New("no store connection configured")
	ErrTimedOut          = errors.New("timed out")
	ErrSourceFetchFailed = errors.New("source fetch failed")
	ErrUploadFailed      = errors.New("upload failed")
	ErrPermissionDenied  = errors.New("permission grant failed")
)

// Step names the part of the pipeline an error belongs to.
type Step string

const (
	StepFetch      Step = "fetch"
	StepCreate     Step = "create"
	StepStatus     Step = "status"
	StepFolder     Step = "folder"
	StepUpload     Step = "upload"
	StepPermission Step = "permission"
	StepList       Step = "list"
	StepDownload   Step = "download"
	StepDelete     Step = "delete"
	StepLog        Step = "log"
)

// StepError ties a failure to the step that produced it and to its kind.
type StepError struct {
	Step Step
	Kind error
	Err  error
}

// NewStepError builds a StepError. err may be nil when the kind says it all.
func NewStepError(step Step, kind, err error) *StepError {
	return &StepError{Step: step, Kind: kind, Err: err}
}

func (e *StepError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Step, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Step, e.Kind, e.Err)
}

// Is matches the error kind. Transient failures are transport failures too.
func (e *StepError) Is(target error) bool {
	if target == e.Kind {
		return true
	}
	return e.Kind == ErrTransient && target == ErrTransport
}

func (e *StepError) Unwrap() error { return e.Err }

// StepOf returns the pipeline step of err, or "" when err carries none.
func StepOf(err error) Step {
	var se *StepError
	if errors.As(err, &se) {
		return se.Step
	}
	return ""
}

// Retag keeps the kind and cause of err but attributes it to a new step.
// Errors that are not StepErrors are tagged with fallback.
func Retag(step Step, fallback, err error) error {
	if err == nil {
		return nil
	}
	var se *StepError
	if errors.As(err, &se) {
		return &StepError{Step: step, Kind: se.Kind, Err: se.Err}
	}
	return &StepError{Step: step, Kind: fallback, Err: err}
}
