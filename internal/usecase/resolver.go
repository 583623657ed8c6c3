package usecase

import (
	"context"
	"net/http"
	"sync"
	"time"

	"imagegen-dashboard/internal/domain/model"
	"imagegen-dashboard/internal/domain/ports/adapter"

	"github.com/rs/zerolog"
)

const DefaultSourceMaxAge = 10 * time.Minute

// Tier names the representation a Resolved image came from.
type Tier string

const (
	TierStore     Tier = "store"
	TierSource    Tier = "source"
	TierPublic    Tier = "public"
	TierThumbnail Tier = "thumbnail"
	TierDirect    Tier = "direct"
	TierNone      Tier = ""
)

type ResolveRequest struct {
	Artifact  model.Artifact
	SourceURL string // generation URL, overrides Artifact.URLs.Origin
}

// Resolved is a renderable image, or a viewer link when nothing could be fetched.
type Resolved struct {
	Tier        Tier
	Data        []byte
	MimeType    string
	Unavailable bool
	ViewerURL   string
}

// Resolver picks the first representation of an artifact that can be rendered.
type Resolver struct {
	library LibraryUseCase
	fetcher adapter.SourceFetcher
	maxAge  time.Duration
	log     *zerolog.Logger

	mu     sync.Mutex
	warned map[string]struct{}
}

func NewResolver(library LibraryUseCase, fetcher adapter.SourceFetcher, sourceMaxAge time.Duration, logger *zerolog.Logger) *Resolver {
	if sourceMaxAge <= 0 {
		sourceMaxAge = DefaultSourceMaxAge
	}
	l := logger.With().Str("component", "resolver").Logger()
	return &Resolver{library: library, fetcher: fetcher, maxAge: sourceMaxAge, log: &l, warned: make(map[string]struct{})}
}

// Resolve tries, in order: the store copy, the fresh source URL, then the public,
// thumbnail and direct URLs. Tier failures are silent.
func (r *Resolver) Resolve(ctx context.Context, req ResolveRequest) Resolved {
	a := req.Artifact
	mime := a.MimeType

	if a.ID != "" && r.library != nil {
		if b, err := r.library.GetBytes(ctx, a.ID); err == nil && len(b) > 0 {
			return Resolved{Tier: TierStore, Data: b, MimeType: sniff(mime, b)}
		}
	}

	src := req.SourceURL
	if src == "" {
		src = a.URLs.Origin
	}
	if src != "" && (a.ID == "" || a.CreatedAt.IsZero() || time.Since(a.CreatedAt) < r.maxAge) {
		if b, ok := r.fetch(ctx, src); ok {
			return Resolved{Tier: TierSource, Data: b, MimeType: sniff(mime, b)}
		}
	}

	for _, c := range []struct {
		tier Tier
		url  string
	}{
		{TierPublic, a.URLs.Public},
		{TierThumbnail, a.URLs.Thumbnail},
		{TierDirect, a.URLs.Direct},
	} {
		if c.url == "" {
			continue
		}
		if b, ok := r.fetch(ctx, c.url); ok {
			return Resolved{Tier: c.tier, Data: b, MimeType: sniff(mime, b)}
		}
	}

	r.warnOnce(a)
	return Resolved{Tier: TierNone, Unavailable: true, ViewerURL: a.URLs.View}
}

func (r *Resolver) fetch(ctx context.Context, url string) ([]byte, bool) {
	if r.fetcher == nil {
		return nil, false
	}
	b, err := r.fetcher.Fetch(ctx, url)
	if err != nil || len(b) == 0 {
		return nil, false
	}
	return b, true
}

func (r *Resolver) warnOnce(a model.Artifact) {
	key := a.ID
	if key == "" {
		key = a.URLs.Origin
	}
	r.mu.Lock()
	_, seen := r.warned[key]
	r.warned[key] = struct{}{}
	r.mu.Unlock()
	if !seen {
		r.log.Warn().Str("artifact_id", a.ID).Str("viewer_url", a.URLs.View).Msg("image unavailable from every source")
	}
}

func sniff(mime string, b []byte) string {
	if mime != "" {
		return mime
	}
	return http.DetectContentType(b)
}
