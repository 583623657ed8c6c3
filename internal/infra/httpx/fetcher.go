package httpx

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"imagegen-dashboard/internal/domain"
	"imagegen-dashboard/internal/domain/ports/adapter"
)

var _ adapter.SourceFetcher = (*Fetcher)(nil)

// DefaultMaxBytes caps a single fetched body.
const DefaultMaxBytes = 64 << 20

// Fetcher downloads URLs with a bounded timeout.
type Fetcher struct {
	client   *http.Client
	timeout  time.Duration
	maxBytes int64
}

func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{
		client:   &http.Client{},
		timeout:  timeout,
		maxBytes: DefaultMaxBytes,
	}
}

// Fetch returns the body behind rawURL. data: URLs are decoded in place.
// Errors are StepErrors attributed to the fetch step.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if strings.HasPrefix(rawURL, "data:") {
		return decodeDataURL(rawURL)
	}
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, domain.NewStepError(domain.StepFetch, domain.ErrInvalidArgument, fmt.Errorf("unsupported url %q", rawURL))
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, domain.NewStepError(domain.StepFetch, domain.ErrInvalidArgument, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, Classify(domain.StepFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, Rejected(domain.StepFetch, resp.StatusCode, string(raw))
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, Classify(domain.StepFetch, err)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, domain.NewStepError(domain.StepFetch, domain.ErrRemoteRejected, errors.New("body exceeds size limit"))
	}
	return body, nil
}

func decodeDataURL(s string) ([]byte, error) {
	comma := strings.IndexByte(s, ',')
	if comma < 0 {
		return nil, domain.NewStepError(domain.StepFetch, domain.ErrInvalidArgument, errors.New("malformed data url"))
	}
	meta, payload := s[len("data:"):comma], s[comma+1:]
	if strings.HasSuffix(meta, ";base64") {
		b, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, domain.NewStepError(domain.StepFetch, domain.ErrInvalidArgument, err)
		}
		return b, nil
	}
	decoded, err := url.PathUnescape(payload)
	if err != nil {
		return nil, domain.NewStepError(domain.StepFetch, domain.ErrInvalidArgument, err)
	}
	return []byte(decoded), nil
}
