package adapter

import (
	"context"
	"time"

	"imagegen-dashboard/internal/domain/model"
)

// PutObjectInput describes a new object pushed into a folder.
type PutObjectInput struct {
	FolderID string
	Name     string
	MimeType string
	JobID    string
	Data     []byte
}

// StoredObject is the store's description of one object.
type StoredObject struct {
	ID        string
	Name      string
	MimeType  string
	JobID     string
	Size      int64
	CreatedAt time.Time
	ViewLink  string // store supplied viewer link, may be empty
}

// ObjectStore is the port for the remote object store holding artifacts.
// Implementations without a connection return domain.ErrNotAuthenticated from every call.
type ObjectStore interface {
	FindFolder(ctx context.Context, name string) (id string, found bool, err error)
	CreateFolder(ctx context.Context, name string) (string, error)
	PutObject(ctx context.Context, in PutObjectInput) (StoredObject, error)
	GrantPublicRead(ctx context.Context, objectID string) error
	// ListObjects returns objects under folderID whose MIME type starts with mimePrefix,
	// newest first.
	ListObjects(ctx context.Context, folderID, mimePrefix string) ([]StoredObject, error)
	// GetObject downloads the full object body.
	GetObject(ctx context.Context, objectID string) ([]byte, error)
	DeleteObject(ctx context.Context, objectID string) error
	// URLs derives the addressable URLs of an object from its id alone.
	URLs(objectID string) model.URLSet
}

// Connector is implemented by collaborators that may run without a remote connection.
type Connector interface {
	Connected() bool
}

// IsConnected reports whether v has a live connection. Values that do not
// implement Connector are assumed connected.
func IsConnected(v any) bool {
	if c, ok := v.(Connector); ok {
		return c.Connected()
	}
	return v != nil
}
