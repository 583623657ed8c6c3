package compute

import (
	"context"
	"errors"
	"strings"
	"time"

	"imagegen-dashboard/internal/domain"
	"imagegen-dashboard/internal/domain/model"
	"imagegen-dashboard/internal/domain/ports/adapter"
	"imagegen-dashboard/internal/infra/httpx"
	"imagegen-dashboard/internal/infra/metrics"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/rs/zerolog"
)

var _ adapter.ComputeClient = (*OpenAIImagesAdapter)(nil)

// OpenAIImagesAdapter turns the synchronous images API into an asynchronous job:
// CreateJob starts the generation in the background and GetStatus reports on it.
type OpenAIImagesAdapter struct {
	client  openai.Client
	model   string
	timeout time.Duration
	log     *zerolog.Logger
	jobs    *localJobs
}

func NewOpenAIImagesAdapter(apiKey, baseURL, defaultModel string, timeout time.Duration, log *zerolog.Logger) (*OpenAIImagesAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key empty")
	}
	if defaultModel == "" {
		defaultModel = string(openai.ImageModelDallE3)
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	l := log.With().Str("adapter", "openai_images").Logger()
	return &OpenAIImagesAdapter{
		client:  openai.NewClient(opts...),
		model:   defaultModel,
		timeout: timeout,
		log:     &l,
		jobs:    newLocalJobs(time.Hour),
	}, nil
}

func (o *OpenAIImagesAdapter) CreateJob(ctx context.Context, modelName string, input map[string]any) (string, error) {
	if err := model.ValidateInput(input); err != nil {
		return "", domain.NewStepError(domain.StepCreate, domain.ErrInvalidArgument, errors.New("prompt is required"))
	}
	if modelName == "" {
		modelName = o.model
	}
	params := openai.ImageGenerateParams{
		Prompt: input["prompt"].(string),
		Model:  openai.ImageModel(modelName),
		N:      openai.Int(1),
	}
	// gpt-image models always answer with base64 and reject response_format.
	if !strings.HasPrefix(modelName, "gpt-image") {
		params.ResponseFormat = openai.ImageGenerateParamsResponseFormatURL
	}
	if size, ok := input["size"].(string); ok && size != "" {
		params.Size = openai.ImageGenerateParamsSize(size)
	}

	id := o.jobs.start()

	// The token is read now and captured only for this one request.
	var reqOpts []option.RequestOption
	if tok := adapter.BearerToken(ctx, ""); tok != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(tok))
	}
	go o.run(id, params, reqOpts)

	o.log.Debug().Str("job_id", id).Str("model", modelName).Msg("image generation started")
	return id, nil
}

func (o *OpenAIImagesAdapter) run(id string, params openai.ImageGenerateParams, reqOpts []option.RequestOption) {
	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()

	start := time.Now()
	resp, err := o.client.Images.Generate(ctx, params, reqOpts...)
	metrics.ObserveComputeCall("openai", "create", time.Since(start).Milliseconds(), err == nil)

	snap := model.JobSnapshot{State: model.JobStateSucceeded}
	switch {
	case err != nil:
		snap = model.JobSnapshot{State: model.JobStateFailed, FailureReason: describeOpenAIError(err)}
		o.log.Warn().Err(err).Str("job_id", id).Msg("image generation failed")
	default:
		for _, img := range resp.Data {
			switch {
			case img.URL != "":
				snap.ResultURLs = append(snap.ResultURLs, img.URL)
			case img.B64JSON != "":
				snap.ResultURLs = append(snap.ResultURLs, "data:image/png;base64,"+img.B64JSON)
			}
		}
		if len(snap.ResultURLs) == 0 {
			snap = model.JobSnapshot{State: model.JobStateFailed, FailureReason: "no images returned"}
		}
	}
	o.jobs.finish(id, snap)
}

func (o *OpenAIImagesAdapter) GetStatus(ctx context.Context, jobID string) (model.JobSnapshot, error) {
	return o.jobs.status(jobID)
}

func describeOpenAIError(err error) string {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	if httpx.IsTransient(err) {
		return "timed out"
	}
	return err.Error()
}
