package usecase

import (
	"container/list"
	"context"
	"errors"
	"sync"
	"time"

	"imagegen-dashboard/internal/domain"
	"imagegen-dashboard/internal/domain/model"
	"imagegen-dashboard/internal/domain/ports/adapter"
	"imagegen-dashboard/internal/infra/metrics"
	"imagegen-dashboard/internal/infra/retry"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Compile-time check
var _ LibraryUseCase = (*libraryUC)(nil)

const (
	DefaultMirrorTTL    = 30 * time.Second
	DefaultFetchTimeout = time.Minute
	imageMimePrefix     = "image/"
)

// LibraryUseCase is the local mirror of the artifacts held in the object store.
type LibraryUseCase interface {
	// List returns the mirrored artifacts, newest first. The remote list is
	// fetched when force is set or the mirror is older than its TTL.
	List(ctx context.Context, force bool) ([]model.Artifact, error)
	// GetBytes returns the object body, downloading it at most once per id.
	GetBytes(ctx context.Context, id string) ([]byte, error)
	// Delete removes the object remotely, then from the mirror.
	Delete(ctx context.Context, id string) error
	Prepend(a model.Artifact)
	Find(id string) (model.Artifact, bool)
	RefreshedAt() time.Time
	// Refresh forces a remote list; used by the background refresher.
	Refresh(ctx context.Context) error
}

type LibraryConfig struct {
	TTL              time.Duration
	MaxCachedObjects int // 0 = unbounded
	Retry            retry.Policy
	// FetchTimeout bounds a coalesced list or download, which outlives
	// any single caller's context.
	FetchTimeout time.Duration
}

type cachedBytes struct {
	id   string
	data []byte
}

type libraryUC struct {
	store  adapter.ObjectStore
	folder *FolderResolver
	meta   MetadataStore
	cfg    LibraryConfig
	log    *zerolog.Logger

	group singleflight.Group

	mu          sync.RWMutex
	items       []model.Artifact
	refreshedAt time.Time
	bytes       map[string]*list.Element
	lru         *list.List // front = most recently used

	// Mutations are numbered so a fetch that started before a Delete or
	// Prepend can reconcile its result. Tombstones live while fetches run.
	gen       uint64
	active    int
	deleted   map[string]uint64
	prepended map[string]uint64
}

func NewLibraryUseCase(store adapter.ObjectStore, folder *FolderResolver, meta MetadataStore, cfg LibraryConfig, logger *zerolog.Logger) *libraryUC {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultMirrorTTL
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if meta == nil {
		meta = NewMetadataStore()
	}
	l := logger.With().Str("component", "library").Logger()
	return &libraryUC{
		store:     store,
		folder:    folder,
		meta:      meta,
		cfg:       cfg,
		log:       &l,
		bytes:     make(map[string]*list.Element),
		lru:       list.New(),
		deleted:   make(map[string]uint64),
		prepended: make(map[string]uint64),
	}
}

func (u *libraryUC) List(ctx context.Context, force bool) ([]model.Artifact, error) {
	if !force {
		u.mu.RLock()
		fresh := !u.refreshedAt.IsZero() && time.Since(u.refreshedAt) < u.cfg.TTL
		var items []model.Artifact
		if fresh {
			items = u.decorate(u.items)
		}
		u.mu.RUnlock()
		if fresh {
			metrics.IncCacheRequest("artifact_list", "hit")
			return items, nil
		}
	}
	metrics.IncCacheRequest("artifact_list", "miss")

	_, err := u.shared(ctx, domain.StepList, "list", func(ctx context.Context) (any, error) {
		return u.fetchList(ctx)
	})
	if err != nil {
		return nil, err
	}
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.decorate(u.items), nil
}

func (u *libraryUC) Refresh(ctx context.Context) error {
	_, err := u.List(ctx, true)
	return err
}

func (u *libraryUC) fetchList(ctx context.Context) ([]model.Artifact, error) {
	start := u.begin()
	defer u.end()

	folderID, err := u.folder.FolderID(ctx)
	if err != nil {
		return nil, err
	}
	objs, err := u.listObjects(ctx, folderID)
	if errors.Is(err, domain.ErrNotFound) {
		u.log.Warn().Err(err).Str("folder_id", folderID).Msg("folder missing remotely, resolving again")
		if folderID, err = u.folder.Resolve(ctx); err != nil {
			return nil, err
		}
		objs, err = u.listObjects(ctx, folderID)
	}
	if err != nil {
		return nil, domain.Retag(domain.StepList, domain.ErrTransport, err)
	}

	u.mu.Lock()
	items := u.reconcile(objs, start)
	u.items = items
	u.refreshedAt = time.Now()
	u.mu.Unlock()
	u.log.Debug().Int("count", len(items)).Msg("mirror refreshed")
	return items, nil
}

func (u *libraryUC) listObjects(ctx context.Context, folderID string) ([]adapter.StoredObject, error) {
	return retry.DoValue(ctx, u.cfg.Retry, u.log, "list", func(ctx context.Context) ([]adapter.StoredObject, error) {
		return u.store.ListObjects(ctx, folderID, imageMimePrefix)
	})
}

// reconcile merges a remote listing taken at generation start with the
// mutations made since. Caller holds mu.
func (u *libraryUC) reconcile(objs []adapter.StoredObject, start uint64) []model.Artifact {
	items := make([]model.Artifact, 0, len(objs)+len(u.prepended))
	seen := make(map[string]bool, len(objs))
	for _, a := range u.items {
		if u.prepended[a.ID] > start {
			items = append(items, a)
			seen[a.ID] = true
		}
	}
	for _, o := range objs {
		if seen[o.ID] || u.deleted[o.ID] > start {
			continue
		}
		seen[o.ID] = true
		items = append(items, u.artifactFrom(o))
	}
	return items
}

// begin registers an in-flight fetch and returns the generation it observes.
func (u *libraryUC) begin() uint64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.active++
	return u.gen
}

func (u *libraryUC) end() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.active--
	if u.active == 0 {
		clear(u.deleted)
		clear(u.prepended)
	}
}

// shared runs fn once per key for all concurrent callers. The fetch is
// detached from the caller that started it; each caller stops waiting
// when its own ctx ends.
func (u *libraryUC) shared(ctx context.Context, step domain.Step, key string, fn func(context.Context) (any, error)) (any, error) {
	detached := context.WithoutCancel(ctx)
	ch := u.group.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(detached, u.cfg.FetchTimeout)
		defer cancel()
		return fn(fctx)
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, domain.Retag(step, domain.ErrTransport, ctx.Err())
	}
}

func (u *libraryUC) artifactFrom(o adapter.StoredObject) model.Artifact {
	urls := u.store.URLs(o.ID)
	if urls.View == "" {
		urls.View = o.ViewLink
	}
	return model.Artifact{
		ID:        o.ID,
		Name:      o.Name,
		JobID:     o.JobID,
		MimeType:  o.MimeType,
		URLs:      urls,
		Size:      o.Size,
		CreatedAt: o.CreatedAt,
	}
}

// decorate copies items and attaches local metadata. Caller holds mu.
func (u *libraryUC) decorate(items []model.Artifact) []model.Artifact {
	out := make([]model.Artifact, len(items))
	for i, a := range items {
		a.Tags = u.meta.Tags(a.ID)
		a.Favorite = u.meta.IsFavorite(a.ID)
		out[i] = a
	}
	return out
}

func (u *libraryUC) GetBytes(ctx context.Context, id string) ([]byte, error) {
	if id == "" {
		return nil, domain.NewStepError(domain.StepDownload, domain.ErrInvalidArgument, nil)
	}
	if b, ok := u.cached(id); ok {
		metrics.IncCacheRequest("artifact_bytes", "hit")
		return b, nil
	}

	v, err := u.shared(ctx, domain.StepDownload, "bytes:"+id, func(ctx context.Context) (any, error) {
		// another caller may have filled the cache while we waited for the group
		if b, ok := u.cached(id); ok {
			return b, nil
		}
		start := u.begin()
		defer u.end()
		metrics.IncCacheRequest("artifact_bytes", "miss")
		b, err := retry.DoValue(ctx, u.cfg.Retry, u.log, "download", func(ctx context.Context) ([]byte, error) {
			return u.store.GetObject(ctx, id)
		})
		if err != nil {
			return nil, domain.Retag(domain.StepDownload, domain.ErrTransport, err)
		}
		u.put(id, b, start)
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (u *libraryUC) cached(id string) ([]byte, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	el, ok := u.bytes[id]
	if !ok {
		return nil, false
	}
	u.lru.MoveToFront(el)
	return el.Value.(*cachedBytes).data, true
}

// put caches data fetched at generation start, unless id was deleted since.
func (u *libraryUC) put(id string, data []byte, start uint64) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.deleted[id] > start {
		return
	}
	if el, ok := u.bytes[id]; ok {
		el.Value.(*cachedBytes).data = data
		u.lru.MoveToFront(el)
		return
	}
	u.bytes[id] = u.lru.PushFront(&cachedBytes{id: id, data: data})
	for u.cfg.MaxCachedObjects > 0 && u.lru.Len() > u.cfg.MaxCachedObjects {
		oldest := u.lru.Back()
		u.lru.Remove(oldest)
		delete(u.bytes, oldest.Value.(*cachedBytes).id)
	}
}

func (u *libraryUC) Delete(ctx context.Context, id string) error {
	if id == "" {
		return domain.NewStepError(domain.StepDelete, domain.ErrInvalidArgument, nil)
	}
	if err := u.store.DeleteObject(ctx, id); err != nil {
		u.log.Warn().Err(err).Str("artifact_id", id).Msg("remote delete failed")
		return domain.Retag(domain.StepDelete, domain.ErrTransport, err)
	}

	u.group.Forget("bytes:" + id)
	u.mu.Lock()
	defer u.mu.Unlock()
	u.gen++
	if u.active > 0 {
		u.deleted[id] = u.gen
		delete(u.prepended, id)
	}
	if el, ok := u.bytes[id]; ok {
		u.lru.Remove(el)
		delete(u.bytes, id)
	}
	kept := u.items[:0:0]
	for _, a := range u.items {
		if a.ID != id {
			kept = append(kept, a)
		}
	}
	u.items = kept
	u.log.Info().Str("artifact_id", id).Msg("artifact deleted")
	return nil
}

func (u *libraryUC) Prepend(a model.Artifact) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.gen++
	if u.active > 0 {
		u.prepended[a.ID] = u.gen
		delete(u.deleted, a.ID)
	}
	items := make([]model.Artifact, 0, len(u.items)+1)
	items = append(items, a)
	for _, it := range u.items {
		if it.ID != a.ID {
			items = append(items, it)
		}
	}
	u.items = items
}

func (u *libraryUC) Find(id string) (model.Artifact, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	for _, a := range u.items {
		if a.ID == id {
			a.Tags = u.meta.Tags(a.ID)
			a.Favorite = u.meta.IsFavorite(a.ID)
			return a, true
		}
	}
	return model.Artifact{}, false
}

func (u *libraryUC) RefreshedAt() time.Time {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.refreshedAt
}
