package httpx

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"

	"imagegen-dashboard/internal/domain"
)

// StatusError is a non-2xx answer from a remote service.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http %d", e.Code)
	}
	return fmt.Sprintf("http %d: %s", e.Code, e.Body)
}

func (e *StatusError) HTTPStatusCode() int { return e.Code }

// Rejected tags a non-2xx response as a remote rejection of step.
func Rejected(step domain.Step, code int, body string) error {
	if len(body) > 512 {
		body = body[:512]
	}
	return domain.NewStepError(step, domain.ErrRemoteRejected, &StatusError{Code: code, Body: body})
}

// Classify turns a transport error into a StepError at the point it was raised.
// Timeouts, TLS failures and dropped connections are transient; everything else is a
// plain transport failure. Errors already classified keep their kind.
func Classify(step domain.Step, err error) error {
	if err == nil {
		return nil
	}
	var se *domain.StepError
	if errors.As(err, &se) {
		return domain.Retag(step, domain.ErrTransport, err)
	}
	if IsTransient(err) {
		return domain.NewStepError(step, domain.ErrTransient, err)
	}
	return domain.NewStepError(step, domain.ErrTransport, err)
}

// IsTransient reports whether err is a failure expected to go away on retry.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var recErr tls.RecordHeaderError
	if errors.As(err, &recErr) {
		return true
	}
	var alertErr tls.AlertError
	if errors.As(err, &alertErr) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED)
}
