package compute

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"imagegen-dashboard/internal/domain"
	"imagegen-dashboard/internal/domain/model"
	"imagegen-dashboard/internal/domain/ports/adapter"
	"imagegen-dashboard/internal/infra/httpx"
	"imagegen-dashboard/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.ComputeClient = (*KieAdapter)(nil)

const DefaultKieBaseURL = "https://api.kie.ai/api/v1/jobs"

// KieAdapter talks to the kie.ai task API: createTask / recordInfo.
type KieAdapter struct {
	apiKey      string
	base        string
	callbackURL string
	client      *http.Client
	log         *zerolog.Logger
}

func NewKieAdapter(apiKey, baseURL string, timeout time.Duration, log *zerolog.Logger) (*KieAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("kie api key empty")
	}
	if baseURL == "" {
		baseURL = DefaultKieBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	l := log.With().Str("adapter", "kie").Logger()
	return &KieAdapter{
		apiKey: apiKey,
		base:   strings.TrimRight(baseURL, "/"),
		client: &http.Client{Timeout: timeout},
		log:    &l,
	}, nil
}

// WithCallbackURL sets the callBackUrl sent on createTask.
func (k *KieAdapter) WithCallbackURL(u string) *KieAdapter {
	k.callbackURL = u
	return k
}

type kieEnvelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type kieRecord struct {
	TaskID     string   `json:"taskId"`
	State      string   `json:"state"`
	Result     []string `json:"result"`
	ResultJSON string   `json:"resultJson"`
	FailMsg    string   `json:"failMsg"`
}

func (k *KieAdapter) CreateJob(ctx context.Context, modelName string, input map[string]any) (string, error) {
	if err := model.ValidateInput(input); err != nil {
		return "", domain.NewStepError(domain.StepCreate, domain.ErrInvalidArgument, errors.New("prompt is required"))
	}
	reqBody := struct {
		Model       string         `json:"model"`
		Input       map[string]any `json:"input"`
		CallBackURL string         `json:"callBackUrl,omitempty"`
	}{Model: modelName, Input: input, CallBackURL: k.callbackURL}

	b, err := json.Marshal(reqBody)
	if err != nil {
		return "", domain.NewStepError(domain.StepCreate, domain.ErrInvalidArgument, err)
	}

	start := time.Now()
	var data struct {
		TaskID string `json:"taskId"`
	}
	err = k.do(ctx, domain.StepCreate, http.MethodPost, k.base+"/createTask", b, &data)
	metrics.ObserveComputeCall("kie", "create", time.Since(start).Milliseconds(), err == nil)
	if err != nil {
		return "", err
	}
	if data.TaskID == "" {
		return "", domain.NewStepError(domain.StepCreate, domain.ErrRemoteRejected, errors.New("response carried no taskId"))
	}
	k.log.Debug().Str("job_id", data.TaskID).Str("model", modelName).Msg("task created")
	return data.TaskID, nil
}

func (k *KieAdapter) GetStatus(ctx context.Context, jobID string) (model.JobSnapshot, error) {
	if jobID == "" {
		return model.JobSnapshot{}, domain.NewStepError(domain.StepStatus, domain.ErrInvalidArgument, errors.New("job id is required"))
	}
	start := time.Now()
	var rec kieRecord
	err := k.do(ctx, domain.StepStatus, http.MethodGet, k.base+"/recordInfo?taskId="+url.QueryEscape(jobID), nil, &rec)
	metrics.ObserveComputeCall("kie", "status", time.Since(start).Milliseconds(), err == nil)
	if err != nil {
		return model.JobSnapshot{}, err
	}
	return rec.snapshot(), nil
}

func (r kieRecord) snapshot() model.JobSnapshot {
	switch strings.ToLower(r.State) {
	case "success":
		return model.JobSnapshot{State: model.JobStateSucceeded, ResultURLs: r.urls()}
	case "fail":
		reason := r.FailMsg
		if reason == "" {
			reason = "unknown error"
		}
		return model.JobSnapshot{State: model.JobStateFailed, FailureReason: reason}
	default:
		return model.JobSnapshot{State: model.JobStatePending}
	}
}

// urls prefers the result array and falls back to resultJson.resultUrls.
func (r kieRecord) urls() []string {
	if len(r.Result) > 0 {
		return r.Result
	}
	if r.ResultJSON == "" {
		return nil
	}
	var parsed struct {
		ResultURLs []string `json:"resultUrls"`
	}
	if err := json.Unmarshal([]byte(r.ResultJSON), &parsed); err != nil {
		return nil
	}
	return parsed.ResultURLs
}

// do sends one request and decodes the envelope's data into out.
func (k *KieAdapter) do(ctx context.Context, step domain.Step, method, endpoint string, body []byte, out any) error {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, rdr)
	if err != nil {
		return domain.NewStepError(step, domain.ErrInvalidArgument, err)
	}
	req.Header.Set("Authorization", "Bearer "+adapter.BearerToken(ctx, k.apiKey))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := k.client.Do(req)
	if err != nil {
		return httpx.Classify(step, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return httpx.Classify(step, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return httpx.Rejected(step, resp.StatusCode, string(raw))
	}

	var env kieEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return domain.NewStepError(step, domain.ErrRemoteRejected, fmt.Errorf("decode response: %w", err))
	}
	if env.Code != http.StatusOK {
		return httpx.Rejected(step, env.Code, env.Msg)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return domain.NewStepError(step, domain.ErrRemoteRejected, errors.New("response carried no data"))
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return domain.NewStepError(step, domain.ErrRemoteRejected, fmt.Errorf("decode data: %w", err))
	}
	return nil
}
