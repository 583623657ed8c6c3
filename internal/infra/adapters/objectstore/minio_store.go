package objectstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strings"
	"sync"

	"imagegen-dashboard/internal/domain"
	"imagegen-dashboard/internal/domain/model"
	"imagegen-dashboard/internal/domain/ports/adapter"
	"imagegen-dashboard/internal/infra/httpx"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
)

var _ adapter.ObjectStore = (*MinioStore)(nil)

// folderMarker is the object that makes an empty prefix exist as a folder.
const folderMarker = ".folder"

const jobIDMetaKey = "Job-Id"

type MinioConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	Region        string
	Secure        bool
	PublicBaseURL string // overrides scheme://endpoint for object links
	CDNBaseURL    string // thumbnails, "<cdn>/<bucket>/<key>"
}

// MinioStore maps the object store port onto an S3 compatible bucket.
// A folder is a key prefix holding a marker object. Object ids are full keys.
type MinioStore struct {
	client *minio.Client
	cfg    MinioConfig
	log    *zerolog.Logger

	policyMu sync.Mutex
}

func NewMinioStore(ctx context.Context, cfg MinioConfig, log *zerolog.Logger) (*MinioStore, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, errors.New("minio endpoint and bucket are required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}
	l := log.With().Str("adapter", "minio").Str("bucket", cfg.Bucket).Logger()
	return &MinioStore{client: client, cfg: cfg, log: &l}, nil
}

func (m *MinioStore) FindFolder(ctx context.Context, name string) (string, bool, error) {
	prefix := folderPrefix(name)
	_, err := m.client.StatObject(ctx, m.cfg.Bucket, prefix+folderMarker, minio.StatObjectOptions{})
	if err == nil {
		return prefix, true, nil
	}
	if isNoSuchKey(err) {
		return "", false, nil
	}
	return "", false, minioErr(domain.StepFolder, err)
}

func (m *MinioStore) CreateFolder(ctx context.Context, name string) (string, error) {
	prefix := folderPrefix(name)
	_, err := m.client.PutObject(ctx, m.cfg.Bucket, prefix+folderMarker, bytes.NewReader(nil), 0,
		minio.PutObjectOptions{ContentType: "application/x-directory"})
	if err != nil {
		return "", minioErr(domain.StepFolder, err)
	}
	return prefix, nil
}

func (m *MinioStore) PutObject(ctx context.Context, in adapter.PutObjectInput) (adapter.StoredObject, error) {
	if in.Name == "" {
		return adapter.StoredObject{}, domain.NewStepError(domain.StepUpload, domain.ErrInvalidArgument, errors.New("object name is required"))
	}
	mime := in.MimeType
	if mime == "" {
		mime = model.MimeTypeForName(in.Name)
	}
	key := in.FolderID + uuid.NewString() + "/" + path.Base(in.Name)
	opts := minio.PutObjectOptions{ContentType: mime}
	if in.JobID != "" {
		opts.UserMetadata = map[string]string{jobIDMetaKey: in.JobID}
	}

	info, err := m.client.PutObject(ctx, m.cfg.Bucket, key, bytes.NewReader(in.Data), int64(len(in.Data)), opts)
	if err != nil {
		return adapter.StoredObject{}, minioErr(domain.StepUpload, err)
	}
	return adapter.StoredObject{
		ID:        key,
		Name:      path.Base(in.Name),
		MimeType:  mime,
		JobID:     in.JobID,
		Size:      info.Size,
		CreatedAt: info.LastModified,
		ViewLink:  m.URLs(key).View,
	}, nil
}

type bucketPolicy struct {
	Version   string            `json:"Version"`
	Statement []policyStatement `json:"Statement"`
}

type policyStatement struct {
	Sid       string              `json:"Sid,omitempty"`
	Effect    string              `json:"Effect"`
	Principal map[string][]string `json:"Principal"`
	Action    []string            `json:"Action"`
	Resource  []string            `json:"Resource"`
}

// GrantPublicRead makes the object's folder anonymously readable by merging a
// GetObject statement for the prefix into the bucket policy.
func (m *MinioStore) GrantPublicRead(ctx context.Context, objectID string) error {
	folder := strings.SplitN(objectID, "/", 2)[0]
	resource := fmt.Sprintf("arn:aws:s3:::%s/%s/*", m.cfg.Bucket, folder)

	m.policyMu.Lock()
	defer m.policyMu.Unlock()

	current, err := m.client.GetBucketPolicy(ctx, m.cfg.Bucket)
	if err != nil && !isNoSuchPolicy(err) {
		return minioErr(domain.StepPermission, err)
	}
	policy := bucketPolicy{Version: "2012-10-17"}
	if strings.TrimSpace(current) != "" {
		if err := json.Unmarshal([]byte(current), &policy); err != nil {
			return domain.NewStepError(domain.StepPermission, domain.ErrPermissionDenied, fmt.Errorf("decode bucket policy: %w", err))
		}
	}
	for _, st := range policy.Statement {
		for _, r := range st.Resource {
			if r == resource && st.Effect == "Allow" {
				return nil
			}
		}
	}
	policy.Statement = append(policy.Statement, policyStatement{
		Effect:    "Allow",
		Principal: map[string][]string{"AWS": {"*"}},
		Action:    []string{"s3:GetObject"},
		Resource:  []string{resource},
	})
	raw, err := json.Marshal(policy)
	if err != nil {
		return domain.NewStepError(domain.StepPermission, domain.ErrPermissionDenied, err)
	}
	if err := m.client.SetBucketPolicy(ctx, m.cfg.Bucket, string(raw)); err != nil {
		return minioErr(domain.StepPermission, err)
	}
	m.log.Info().Str("prefix", folder).Msg("public read granted")
	return nil
}

func (m *MinioStore) ListObjects(ctx context.Context, folderID, mimePrefix string) ([]adapter.StoredObject, error) {
	objectsCh := m.client.ListObjects(ctx, m.cfg.Bucket, minio.ListObjectsOptions{
		Prefix:       folderID,
		Recursive:    true,
		WithMetadata: true,
	})

	var out []adapter.StoredObject
	for obj := range objectsCh {
		if obj.Err != nil {
			return nil, minioErr(domain.StepList, obj.Err)
		}
		if path.Base(obj.Key) == folderMarker {
			continue
		}
		mime := obj.ContentType
		if mime == "" || mime == "application/octet-stream" {
			mime = model.MimeTypeForName(obj.Key)
		}
		if !strings.HasPrefix(mime, mimePrefix) {
			continue
		}
		out = append(out, adapter.StoredObject{
			ID:        obj.Key,
			Name:      path.Base(obj.Key),
			MimeType:  mime,
			JobID:     userMeta(obj.UserMetadata, jobIDMetaKey),
			Size:      obj.Size,
			CreatedAt: obj.LastModified,
			ViewLink:  m.URLs(obj.Key).View,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MinioStore) GetObject(ctx context.Context, objectID string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, m.cfg.Bucket, objectID, minio.GetObjectOptions{})
	if err != nil {
		return nil, minioErr(domain.StepDownload, err)
	}
	defer obj.Close()

	// minio streams the body in parts as it is read.
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, minioErr(domain.StepDownload, err)
	}
	return data, nil
}

func (m *MinioStore) DeleteObject(ctx context.Context, objectID string) error {
	if err := m.client.RemoveObject(ctx, m.cfg.Bucket, objectID, minio.RemoveObjectOptions{}); err != nil {
		return minioErr(domain.StepDelete, err)
	}
	return nil
}

func (m *MinioStore) URLs(objectID string) model.URLSet {
	if objectID == "" {
		return model.URLSet{}
	}
	base := m.cfg.PublicBaseURL
	if base == "" {
		scheme := "http"
		if m.cfg.Secure {
			scheme = "https"
		}
		base = scheme + "://" + m.cfg.Endpoint
	}
	direct := fmt.Sprintf("%s/%s/%s", strings.TrimRight(base, "/"), m.cfg.Bucket, escapeKey(objectID))
	thumb := direct
	if m.cfg.CDNBaseURL != "" {
		thumb = fmt.Sprintf("%s/%s/%s", strings.TrimRight(m.cfg.CDNBaseURL, "/"), m.cfg.Bucket, escapeKey(objectID))
	}
	return model.URLSet{
		View:      direct,
		Content:   direct + "?response-content-disposition=attachment",
		Public:    direct,
		Thumbnail: thumb,
		Direct:    direct,
	}
}

func folderPrefix(name string) string {
	return strings.Trim(name, "/") + "/"
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

func userMeta(meta map[string]string, key string) string {
	for k, v := range meta {
		if strings.EqualFold(k, key) || strings.EqualFold(k, "X-Amz-Meta-"+key) {
			return v
		}
	}
	return ""
}

func isNoSuchKey(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound
}

func isNoSuchPolicy(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchBucketPolicy"
}

// minioErr classifies S3 error responses; transport failures go through httpx.Classify.
func minioErr(step domain.Step, err error) error {
	resp := minio.ToErrorResponse(err)
	switch {
	case resp.StatusCode == 0 && resp.Code == "":
		return httpx.Classify(step, err)
	case resp.StatusCode >= 500 || resp.Code == "SlowDown":
		return domain.NewStepError(step, domain.ErrTransient, err)
	case resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound:
		return domain.NewStepError(step, domain.ErrRemoteRejected, fmt.Errorf("%w: %v", domain.ErrNotFound, err))
	case step == domain.StepPermission:
		return domain.NewStepError(step, domain.ErrPermissionDenied, err)
	default:
		return domain.NewStepError(step, domain.ErrRemoteRejected, err)
	}
}
