package compute

import (
	"context"
	"encoding/base64"
	"errors"
	"time"

	"imagegen-dashboard/internal/domain"
	"imagegen-dashboard/internal/domain/model"
	"imagegen-dashboard/internal/domain/ports/adapter"
	"imagegen-dashboard/internal/infra/httpx"
	"imagegen-dashboard/internal/infra/metrics"

	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

var _ adapter.ComputeClient = (*GeminiImagesAdapter)(nil)

// DefaultGeminiImageModel is used when neither the job nor the config names one.
const DefaultGeminiImageModel = "imagen-3.0-generate-002"

// GeminiImagesAdapter runs Imagen generations through the Gemini API and
// exposes them as jobs, like OpenAIImagesAdapter.
type GeminiImagesAdapter struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	log     *zerolog.Logger
	jobs    *localJobs
}

func NewGeminiImagesAdapter(ctx context.Context, apiKey, baseURL, defaultModel string, timeout time.Duration, log *zerolog.Logger) (*GeminiImagesAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key empty")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	if defaultModel == "" {
		defaultModel = DefaultGeminiImageModel
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	l := log.With().Str("adapter", "gemini_images").Logger()
	return &GeminiImagesAdapter{
		client:  c,
		model:   defaultModel,
		timeout: timeout,
		log:     &l,
		jobs:    newLocalJobs(time.Hour),
	}, nil
}

func (g *GeminiImagesAdapter) CreateJob(ctx context.Context, modelName string, input map[string]any) (string, error) {
	if err := model.ValidateInput(input); err != nil {
		return "", domain.NewStepError(domain.StepCreate, domain.ErrInvalidArgument, errors.New("prompt is required"))
	}
	if modelName == "" {
		modelName = g.model
	}
	cfg := &genai.GenerateImagesConfig{NumberOfImages: 1}
	if ar, ok := input["aspect_ratio"].(string); ok && ar != "" {
		cfg.AspectRatio = ar
	}

	id := g.jobs.start()
	go g.run(id, modelName, input["prompt"].(string), cfg)

	g.log.Debug().Str("job_id", id).Str("model", modelName).Msg("image generation started")
	return id, nil
}

func (g *GeminiImagesAdapter) run(id, modelName, prompt string, cfg *genai.GenerateImagesConfig) {
	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	defer cancel()

	start := time.Now()
	resp, err := g.client.Models.GenerateImages(ctx, modelName, prompt, cfg)
	metrics.ObserveComputeCall("gemini", "create", time.Since(start).Milliseconds(), err == nil)

	var snap model.JobSnapshot
	switch {
	case err != nil:
		reason := err.Error()
		if httpx.IsTransient(err) {
			reason = "timed out"
		}
		snap = model.JobSnapshot{State: model.JobStateFailed, FailureReason: reason}
		g.log.Warn().Err(err).Str("job_id", id).Msg("image generation failed")
	default:
		snap = geminiSnapshot(resp)
	}
	g.jobs.finish(id, snap)
}

func (g *GeminiImagesAdapter) GetStatus(ctx context.Context, jobID string) (model.JobSnapshot, error) {
	return g.jobs.status(jobID)
}

// geminiSnapshot turns inline image bytes into data: URLs. A response where every
// image was filtered fails with the filter reason.
func geminiSnapshot(resp *genai.GenerateImagesResponse) model.JobSnapshot {
	snap := model.JobSnapshot{State: model.JobStateSucceeded}
	filtered := ""
	if resp != nil {
		for _, gi := range resp.GeneratedImages {
			if gi == nil {
				continue
			}
			if gi.Image == nil || len(gi.Image.ImageBytes) == 0 {
				if gi.RAIFilteredReason != "" {
					filtered = gi.RAIFilteredReason
				}
				continue
			}
			mime := gi.Image.MIMEType
			if mime == "" {
				mime = model.DefaultMimeType
			}
			snap.ResultURLs = append(snap.ResultURLs, "data:"+mime+";base64,"+base64.StdEncoding.EncodeToString(gi.Image.ImageBytes))
		}
	}
	if len(snap.ResultURLs) == 0 {
		reason := "no images returned"
		if filtered != "" {
			reason = filtered
		}
		return model.JobSnapshot{State: model.JobStateFailed, FailureReason: reason}
	}
	return snap
}
