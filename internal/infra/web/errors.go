package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"imagegen-dashboard/internal/domain"
	"imagegen-dashboard/internal/usecase"
)

// statusFor maps a domain error kind to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, usecase.ErrJobRunning):
		return http.StatusConflict
	case errors.Is(err, domain.ErrTimedOut):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrRemoteRejected),
		errors.Is(err, domain.ErrTransport),
		errors.Is(err, domain.ErrSourceFetchFailed),
		errors.Is(err, domain.ErrUploadFailed),
		errors.Is(err, domain.ErrPermissionDenied):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Step  string `json:"step,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeDomainError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorResponse{Error: err.Error(), Step: string(domain.StepOf(err))})
}
