package adapter

import (
	"context"

	"imagegen-dashboard/internal/domain/model"
)

// ComputeClient is the port for the remote image-generation API.
type ComputeClient interface {
	// CreateJob submits a generation request and returns the remote job id.
	// input must carry a non-empty "prompt".
	CreateJob(ctx context.Context, model string, input map[string]any) (string, error)

	// GetStatus returns the current remote view of a job.
	GetStatus(ctx context.Context, jobID string) (model.JobSnapshot, error)
}

type bearerKey struct{}

// WithBearerToken overrides the configured API token for calls made with ctx.
// Adapters read it per call and never keep it.
func WithBearerToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, bearerKey{}, token)
}

// BearerToken returns the per-call token, falling back to def.
func BearerToken(ctx context.Context, def string) string {
	if v, ok := ctx.Value(bearerKey{}).(string); ok && v != "" {
		return v
	}
	return def
}
