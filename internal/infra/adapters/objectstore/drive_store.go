package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"imagegen-dashboard/internal/domain"
	"imagegen-dashboard/internal/domain/model"
	"imagegen-dashboard/internal/domain/ports/adapter"
	"imagegen-dashboard/internal/infra/httpx"

	"github.com/rs/zerolog"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

var _ adapter.ObjectStore = (*DriveStore)(nil)

const (
	driveFolderMime = "application/vnd.google-apps.folder"
	driveFileFields = "id, name, mimeType, size, createdTime, webViewLink, properties"
	driveListPage   = 100
)

// DriveStore keeps artifacts in a Google Drive folder using a service account.
type DriveStore struct {
	srv *drive.Service
	log *zerolog.Logger
}

// NewDriveStore authenticates with the given client options
// (typically option.WithCredentialsFile or option.WithCredentialsJSON).
func NewDriveStore(ctx context.Context, log *zerolog.Logger, opts ...option.ClientOption) (*DriveStore, error) {
	opts = append(opts, option.WithScopes(drive.DriveScope))
	srv, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("init drive service: %w", err)
	}
	l := log.With().Str("adapter", "drive").Logger()
	return &DriveStore{srv: srv, log: &l}, nil
}

func (d *DriveStore) FindFolder(ctx context.Context, name string) (string, bool, error) {
	q := fmt.Sprintf("name='%s' and mimeType='%s' and trashed=false", quoteQuery(name), driveFolderMime)
	res, err := d.srv.Files.List().Q(q).Spaces("drive").Fields("files(id, name)").PageSize(1).Context(ctx).Do()
	if err != nil {
		return "", false, driveErr(domain.StepFolder, err)
	}
	if len(res.Files) == 0 {
		return "", false, nil
	}
	return res.Files[0].Id, true, nil
}

func (d *DriveStore) CreateFolder(ctx context.Context, name string) (string, error) {
	f, err := d.srv.Files.Create(&drive.File{Name: name, MimeType: driveFolderMime}).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", driveErr(domain.StepFolder, err)
	}
	d.log.Info().Str("folder_id", f.Id).Str("name", name).Msg("folder created")
	return f.Id, nil
}

func (d *DriveStore) PutObject(ctx context.Context, in adapter.PutObjectInput) (adapter.StoredObject, error) {
	if in.Name == "" {
		return adapter.StoredObject{}, domain.NewStepError(domain.StepUpload, domain.ErrInvalidArgument, errors.New("object name is required"))
	}
	mime := in.MimeType
	if mime == "" {
		mime = model.MimeTypeForName(in.Name)
	}
	meta := &drive.File{Name: in.Name, MimeType: mime}
	if in.FolderID != "" {
		meta.Parents = []string{in.FolderID}
	}
	if in.JobID != "" {
		meta.Properties = map[string]string{"job_id": in.JobID}
	}
	f, err := d.srv.Files.Create(meta).
		Media(bytes.NewReader(in.Data), googleapi.ContentType(mime)).
		Fields(driveFileFields).
		Context(ctx).
		Do()
	if err != nil {
		return adapter.StoredObject{}, driveErr(domain.StepUpload, err)
	}
	return toStored(f), nil
}

func (d *DriveStore) GrantPublicRead(ctx context.Context, objectID string) error {
	_, err := d.srv.Permissions.Create(objectID, &drive.Permission{Type: "anyone", Role: "reader"}).Context(ctx).Do()
	if err != nil {
		return driveErr(domain.StepPermission, err)
	}
	return nil
}

func (d *DriveStore) ListObjects(ctx context.Context, folderID, mimePrefix string) ([]adapter.StoredObject, error) {
	q := fmt.Sprintf("'%s' in parents and mimeType contains '%s' and trashed=false", quoteQuery(folderID), quoteQuery(mimePrefix))
	var out []adapter.StoredObject
	err := d.srv.Files.List().
		Q(q).
		Spaces("drive").
		Fields(googleapi.Field("nextPageToken, files(" + driveFileFields + ")")).
		OrderBy("createdTime desc").
		PageSize(driveListPage).
		Pages(ctx, func(page *drive.FileList) error {
			for _, f := range page.Files {
				out = append(out, toStored(f))
			}
			return nil
		})
	if err != nil {
		return nil, driveErr(domain.StepList, err)
	}
	return out, nil
}

func (d *DriveStore) GetObject(ctx context.Context, objectID string) ([]byte, error) {
	resp, err := d.srv.Files.Get(objectID).Context(ctx).Download()
	if err != nil {
		return nil, driveErr(domain.StepDownload, err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return nil, httpx.Classify(domain.StepDownload, err)
	}
	return buf.Bytes(), nil
}

func (d *DriveStore) DeleteObject(ctx context.Context, objectID string) error {
	if err := d.srv.Files.Delete(objectID).Context(ctx).Do(); err != nil {
		return driveErr(domain.StepDelete, err)
	}
	return nil
}

// URLs are fixed Drive patterns over the file id.
func (d *DriveStore) URLs(objectID string) model.URLSet { return driveURLs(objectID) }

func driveURLs(id string) model.URLSet {
	if id == "" {
		return model.URLSet{}
	}
	return model.URLSet{
		View:      "https://drive.google.com/file/d/" + id + "/view",
		Content:   "https://drive.google.com/uc?export=download&id=" + id,
		Public:    "https://drive.google.com/uc?export=view&id=" + id,
		Thumbnail: "https://drive.google.com/thumbnail?id=" + id + "&sz=w400",
		Direct:    "https://lh3.googleusercontent.com/d/" + id,
	}
}

func toStored(f *drive.File) adapter.StoredObject {
	created, _ := time.Parse(time.RFC3339, f.CreatedTime)
	return adapter.StoredObject{
		ID:        f.Id,
		Name:      f.Name,
		MimeType:  f.MimeType,
		JobID:     f.Properties["job_id"],
		Size:      f.Size,
		CreatedAt: created,
		ViewLink:  f.WebViewLink,
	}
}

func quoteQuery(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}

// driveErr maps googleapi errors onto the domain kinds.
func driveErr(step domain.Step, err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return httpx.Classify(step, err)
	}
	switch {
	case gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500:
		return domain.NewStepError(step, domain.ErrTransient, err)
	case gerr.Code == http.StatusNotFound:
		return domain.NewStepError(step, domain.ErrRemoteRejected, fmt.Errorf("%w: %v", domain.ErrNotFound, err))
	case gerr.Code == http.StatusUnauthorized:
		return domain.NewStepError(step, domain.ErrNotAuthenticated, err)
	case step == domain.StepPermission:
		return domain.NewStepError(step, domain.ErrPermissionDenied, err)
	default:
		return domain.NewStepError(step, domain.ErrRemoteRejected, err)
	}
}
