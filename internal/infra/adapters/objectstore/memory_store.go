package objectstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"imagegen-dashboard/internal/domain"
	"imagegen-dashboard/internal/domain/model"
	"imagegen-dashboard/internal/domain/ports/adapter"

	"github.com/oklog/ulid/v2"
)

var _ adapter.ObjectStore = (*MemoryStore)(nil)

// MemoryStore keeps folders and objects in process memory. Used for local runs;
// its URLs point at the API's own preview route under baseURL.
type MemoryStore struct {
	baseURL string

	mu      sync.RWMutex
	folders map[string]string // name -> id
	objects map[string]*memObject
}

type memObject struct {
	meta     adapter.StoredObject
	folderID string
	data     []byte
	public   bool
}

func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		folders: make(map[string]string),
		objects: make(map[string]*memObject),
	}
}

func (m *MemoryStore) FindFolder(ctx context.Context, name string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.folders[name]
	return id, ok, nil
}

func (m *MemoryStore) CreateFolder(ctx context.Context, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := ulid.Make().String()
	m.folders[name] = id
	return id, nil
}

func (m *MemoryStore) PutObject(ctx context.Context, in adapter.PutObjectInput) (adapter.StoredObject, error) {
	if in.Name == "" {
		return adapter.StoredObject{}, domain.NewStepError(domain.StepUpload, domain.ErrInvalidArgument, fmt.Errorf("object name is required"))
	}
	mime := in.MimeType
	if mime == "" {
		mime = model.MimeTypeForName(in.Name)
	}
	obj := &memObject{
		meta: adapter.StoredObject{
			ID:        ulid.Make().String(),
			Name:      in.Name,
			MimeType:  mime,
			JobID:     in.JobID,
			Size:      int64(len(in.Data)),
			CreatedAt: time.Now(),
		},
		folderID: in.FolderID,
		data:     append([]byte(nil), in.Data...),
	}
	obj.meta.ViewLink = m.URLs(obj.meta.ID).View

	m.mu.Lock()
	m.objects[obj.meta.ID] = obj
	m.mu.Unlock()
	return obj.meta, nil
}

func (m *MemoryStore) GrantPublicRead(ctx context.Context, objectID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[objectID]
	if !ok {
		return domain.NewStepError(domain.StepPermission, domain.ErrRemoteRejected, domain.ErrNotFound)
	}
	obj.public = true
	return nil
}

func (m *MemoryStore) ListObjects(ctx context.Context, folderID, mimePrefix string) ([]adapter.StoredObject, error) {
	m.mu.RLock()
	out := make([]adapter.StoredObject, 0, len(m.objects))
	for _, o := range m.objects {
		if o.folderID == folderID && strings.HasPrefix(o.meta.MimeType, mimePrefix) {
			out = append(out, o.meta)
		}
	}
	m.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryStore) GetObject(ctx context.Context, objectID string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[objectID]
	if !ok {
		return nil, domain.NewStepError(domain.StepDownload, domain.ErrRemoteRejected, domain.ErrNotFound)
	}
	return append([]byte(nil), obj.data...), nil
}

func (m *MemoryStore) DeleteObject(ctx context.Context, objectID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[objectID]; !ok {
		return domain.NewStepError(domain.StepDelete, domain.ErrRemoteRejected, domain.ErrNotFound)
	}
	delete(m.objects, objectID)
	return nil
}

// IsPublic reports whether public read was granted on objectID.
func (m *MemoryStore) IsPublic(objectID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[objectID]
	return ok && obj.public
}

func (m *MemoryStore) URLs(objectID string) model.URLSet {
	if objectID == "" {
		return model.URLSet{}
	}
	u := m.baseURL + "/" + objectID + "/preview"
	return model.URLSet{
		View:      u,
		Content:   u + "?download=1",
		Public:    u,
		Thumbnail: u + "?sz=w400",
		Direct:    u,
	}
}
