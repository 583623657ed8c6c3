package usecase

import (
	"context"
	"sync"
	"time"

	"imagegen-dashboard/internal/domain"
	"imagegen-dashboard/internal/domain/ports/adapter"

	"github.com/rs/zerolog"
)

// DefaultFolderName is the project folder artifacts are stored under.
const DefaultFolderName = "AI_Image_Editor_Pro"

// DistributedLock serializes folder creation across processes sharing a store.
type DistributedLock interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, error)
	Unlock(ctx context.Context, key, token string) error
}

// FolderResolver finds or lazily creates the project folder and caches its id.
type FolderResolver struct {
	store adapter.ObjectStore
	name  string
	lock  DistributedLock
	log   *zerolog.Logger

	mu sync.Mutex
	id string
}

// NewFolderResolver builds a resolver for name. lock may be nil.
func NewFolderResolver(store adapter.ObjectStore, name string, lock DistributedLock, logger *zerolog.Logger) *FolderResolver {
	if name == "" {
		name = DefaultFolderName
	}
	l := logger.With().Str("component", "folder").Str("folder", name).Logger()
	return &FolderResolver{store: store, name: name, lock: lock, log: &l}
}

func (f *FolderResolver) Name() string { return f.name }

// FolderID returns the cached folder id, resolving it on first use.
func (f *FolderResolver) FolderID(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.id != "" {
		return f.id, nil
	}
	return f.resolveLocked(ctx)
}

// Resolve searches the store again, creating the folder only if it is absent,
// and replaces the cached id. Callers use it once the cached folder is gone.
func (f *FolderResolver) Resolve(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resolveLocked(ctx)
}

func (f *FolderResolver) resolveLocked(ctx context.Context) (string, error) {
	if f.lock != nil {
		key := "folder:" + f.name
		token, err := f.lock.TryLock(ctx, key, 30*time.Second)
		if err != nil {
			return "", domain.Retag(domain.StepFolder, domain.ErrTransport, err)
		}
		defer func() {
			if err := f.lock.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
				f.log.Warn().Err(err).Msg("folder lock release failed")
			}
		}()
	}

	id, found, err := f.store.FindFolder(ctx, f.name)
	if err != nil {
		return "", domain.Retag(domain.StepFolder, domain.ErrTransport, err)
	}
	if !found {
		id, err = f.store.CreateFolder(ctx, f.name)
		if err != nil {
			return "", domain.Retag(domain.StepFolder, domain.ErrTransport, err)
		}
		f.log.Info().Str("folder_id", id).Msg("folder created")
	}
	f.id = id
	return id, nil
}
