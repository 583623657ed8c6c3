package usecase

import (
	"sort"
	"strings"
	"sync"
)

// Compile-time check
var _ MetadataStore = (*metadataUC)(nil)

// MetadataStore keeps tags and favorites per artifact id. It is local only:
// nothing is pushed to the object store and deleting an artifact leaves its entry behind.
type MetadataStore interface {
	AddTag(id, tag string) bool
	RemoveTag(id, tag string) bool
	Tags(id string) []string
	SetFavorite(id string, fav bool)
	IsFavorite(id string) bool
	Favorites() []string
}

type artifactMeta struct {
	tags     []string
	favorite bool
}

type metadataUC struct {
	mu   sync.RWMutex
	meta map[string]*artifactMeta
}

func NewMetadataStore() *metadataUC {
	return &metadataUC{meta: make(map[string]*artifactMeta)}
}

func (m *metadataUC) entry(id string) *artifactMeta {
	e, ok := m.meta[id]
	if !ok {
		e = &artifactMeta{}
		m.meta[id] = e
	}
	return e
}

// AddTag adds tag to id and reports whether it was new. Blank tags are ignored.
func (m *metadataUC) AddTag(id, tag string) bool {
	tag = strings.TrimSpace(tag)
	if id == "" || tag == "" {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.entry(id)
	for _, t := range e.tags {
		if t == tag {
			return false
		}
	}
	e.tags = append(e.tags, tag)
	return true
}

func (m *metadataUC) RemoveTag(id, tag string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.meta[id]
	if !ok {
		return false
	}
	for i, t := range e.tags {
		if t == tag {
			e.tags = append(e.tags[:i], e.tags[i+1:]...)
			return true
		}
	}
	return false
}

func (m *metadataUC) Tags(id string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.meta[id]
	if !ok || len(e.tags) == 0 {
		return nil
	}
	return append([]string(nil), e.tags...)
}

func (m *metadataUC) SetFavorite(id string, fav bool) {
	if id == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entry(id).favorite = fav
}

func (m *metadataUC) IsFavorite(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.meta[id]
	return ok && e.favorite
}

// Favorites returns favorite ids in lexical order.
func (m *metadataUC) Favorites() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for id, e := range m.meta {
		if e.favorite {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
