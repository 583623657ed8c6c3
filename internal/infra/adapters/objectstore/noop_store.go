package objectstore

import (
	"context"

	"imagegen-dashboard/internal/domain"
	"imagegen-dashboard/internal/domain/model"
	"imagegen-dashboard/internal/domain/ports/adapter"
)

var _ adapter.ObjectStore = NoopStore{}

// NoopStore stands in when no object store is configured.
// Every call fails with domain.ErrNotAuthenticated.
type NoopStore struct{}

func notAuthenticated(step domain.Step) error {
	return domain.NewStepError(step, domain.ErrNotAuthenticated, nil)
}

func (NoopStore) FindFolder(context.Context, string) (string, bool, error) {
	return "", false, notAuthenticated(domain.StepFolder)
}

func (NoopStore) CreateFolder(context.Context, string) (string, error) {
	return "", notAuthenticated(domain.StepFolder)
}

func (NoopStore) PutObject(context.Context, adapter.PutObjectInput) (adapter.StoredObject, error) {
	return adapter.StoredObject{}, notAuthenticated(domain.StepUpload)
}

func (NoopStore) GrantPublicRead(context.Context, string) error {
	return notAuthenticated(domain.StepPermission)
}

func (NoopStore) ListObjects(context.Context, string, string) ([]adapter.StoredObject, error) {
	return nil, notAuthenticated(domain.StepList)
}

func (NoopStore) GetObject(context.Context, string) ([]byte, error) {
	return nil, notAuthenticated(domain.StepDownload)
}

func (NoopStore) DeleteObject(context.Context, string) error {
	return notAuthenticated(domain.StepDelete)
}

func (NoopStore) URLs(string) model.URLSet { return model.URLSet{} }

func (NoopStore) Connected() bool { return false }
