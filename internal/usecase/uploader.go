package usecase

import (
	"context"
	"errors"
	"path"
	"time"

	"imagegen-dashboard/internal/domain"
	"imagegen-dashboard/internal/domain/model"
	"imagegen-dashboard/internal/domain/ports/adapter"
	"imagegen-dashboard/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ UploaderUseCase = (*uploaderUC)(nil)

type UploaderUseCase interface {
	// Upload mirrors the image behind sourceURL into the store. jobID is empty for
	// manual uploads. A failed public-read grant is recorded as a warning on the
	// returned artifact and does not fail the upload.
	Upload(ctx context.Context, sourceURL, name, jobID string) (*model.Artifact, error)
}

type uploaderUC struct {
	store   adapter.ObjectStore
	fetcher adapter.SourceFetcher
	folder  *FolderResolver
	library LibraryUseCase
	stats   StatsUseCase
	log     *zerolog.Logger
}

func NewUploaderUseCase(store adapter.ObjectStore, fetcher adapter.SourceFetcher, folder *FolderResolver, library LibraryUseCase, stats StatsUseCase, logger *zerolog.Logger) *uploaderUC {
	l := logger.With().Str("component", "uploader").Logger()
	return &uploaderUC{store: store, fetcher: fetcher, folder: folder, library: library, stats: stats, log: &l}
}

func (u *uploaderUC) Upload(ctx context.Context, sourceURL, name, jobID string) (*model.Artifact, error) {
	if !adapter.IsConnected(u.store) {
		return nil, domain.NewStepError(domain.StepUpload, domain.ErrNotAuthenticated, nil)
	}
	if sourceURL == "" {
		return nil, domain.NewStepError(domain.StepFetch, domain.ErrInvalidArgument, nil)
	}
	if name == "" {
		name = "image_" + time.Now().Format("20060102_150405") + model.ImageExtForURL(sourceURL)
	}
	log := u.log.With().Str("job_id", jobID).Str("name", name).Logger()

	data, err := u.fetcher.Fetch(ctx, sourceURL)
	if err != nil {
		metrics.IncUpload("fetch")
		log.Warn().Err(err).Msg("source fetch failed")
		return nil, domain.NewStepError(domain.StepFetch, domain.ErrSourceFetchFailed, err)
	}

	folderID, err := u.folder.FolderID(ctx)
	if err != nil {
		metrics.IncUpload("folder")
		log.Warn().Err(err).Msg("folder resolution failed")
		return nil, err
	}

	in := adapter.PutObjectInput{
		FolderID: folderID,
		Name:     path.Base(name),
		MimeType: model.MimeTypeForName(name),
		JobID:    jobID,
		Data:     data,
	}
	obj, err := u.store.PutObject(ctx, in)
	if errors.Is(err, domain.ErrNotFound) {
		log.Warn().Err(err).Str("folder_id", folderID).Msg("folder missing remotely, resolving again")
		if in.FolderID, err = u.folder.Resolve(ctx); err != nil {
			metrics.IncUpload("folder")
			return nil, err
		}
		obj, err = u.store.PutObject(ctx, in)
	}
	if err != nil {
		metrics.IncUpload("upload")
		log.Warn().Err(err).Msg("object upload failed")
		return nil, domain.NewStepError(domain.StepUpload, domain.ErrUploadFailed, err)
	}

	a := model.Artifact{
		ID:        obj.ID,
		Name:      obj.Name,
		JobID:     jobID,
		MimeType:  obj.MimeType,
		URLs:      u.store.URLs(obj.ID),
		Size:      obj.Size,
		CreatedAt: obj.CreatedAt,
	}
	if a.Name == "" {
		a.Name = path.Base(name)
	}
	if a.MimeType == "" {
		a.MimeType = model.MimeTypeForName(name)
	}
	if a.Size == 0 {
		a.Size = int64(len(data))
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	if a.URLs.View == "" {
		a.URLs.View = obj.ViewLink
	}
	a.URLs.Origin = sourceURL

	outcome := "ok"
	if err := u.store.GrantPublicRead(ctx, obj.ID); err != nil {
		outcome = "permission_warning"
		perr := domain.Retag(domain.StepPermission, domain.ErrPermissionDenied, err)
		a.Warnings = append(a.Warnings, perr.Error())
		log.Warn().Err(err).Str("artifact_id", obj.ID).Msg("public read grant failed; artifact kept")
	}
	metrics.IncUpload(outcome)

	if u.stats != nil {
		u.stats.ArtifactUploaded()
	}
	if u.library != nil {
		u.library.Prepend(a)
	}
	log.Info().Str("artifact_id", a.ID).Int64("size", a.Size).Msg("artifact uploaded")
	return &a, nil
}
