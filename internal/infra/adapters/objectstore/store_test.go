package objectstore

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"imagegen-dashboard/internal/domain"

	"github.com/minio/minio-go/v7"
	"google.golang.org/api/googleapi"
)

func TestDriveURLs_DerivedFromID(t *testing.T) {
	u := driveURLs("abc")
	if u.Public != "https://drive.google.com/uc?export=view&id=abc" {
		t.Fatalf("public=%q", u.Public)
	}
	if u.Thumbnail != "https://drive.google.com/thumbnail?id=abc&sz=w400" {
		t.Fatalf("thumbnail=%q", u.Thumbnail)
	}
	if u.Origin != "" {
		t.Fatal("origin is never derived")
	}
	if driveURLs("").View != "" {
		t.Fatal("empty id yields no urls")
	}
}

func TestDriveErr_Kinds(t *testing.T) {
	cases := []struct {
		code int
		step domain.Step
		kind error
	}{
		{429, domain.StepList, domain.ErrTransient},
		{503, domain.StepDownload, domain.ErrTransient},
		{404, domain.StepDownload, domain.ErrRemoteRejected},
		{401, domain.StepUpload, domain.ErrNotAuthenticated},
		{403, domain.StepPermission, domain.ErrPermissionDenied},
		{400, domain.StepUpload, domain.ErrRemoteRejected},
	}
	for _, tc := range cases {
		err := driveErr(tc.step, fmt.Errorf("wrapped: %w", &googleapi.Error{Code: tc.code}))
		if !errors.Is(err, tc.kind) || domain.StepOf(err) != tc.step {
			t.Errorf("code %d: got %v", tc.code, err)
		}
	}
	if err := driveErr(domain.StepDownload, &googleapi.Error{Code: 404}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("404 should unwrap to not found, got %v", err)
	}
}

func TestQuoteQuery(t *testing.T) {
	if got := quoteQuery(`it's`); got != `it\'s` {
		t.Fatalf("got %q", got)
	}
}

func TestMinioURLs(t *testing.T) {
	m := &MinioStore{cfg: MinioConfig{Endpoint: "s3.local:9000", Bucket: "img", CDNBaseURL: "https://cdn.example.com/"}}
	u := m.URLs("AI Images/u1/a b.png")
	if u.Direct != "http://s3.local:9000/img/AI%20Images/u1/a%20b.png" {
		t.Fatalf("direct=%q", u.Direct)
	}
	if !strings.HasPrefix(u.Thumbnail, "https://cdn.example.com/img/") {
		t.Fatalf("thumbnail=%q", u.Thumbnail)
	}

	m.cfg.Secure = true
	m.cfg.PublicBaseURL = ""
	if !strings.HasPrefix(m.URLs("k").View, "https://s3.local:9000/img/k") {
		t.Fatalf("secure view=%q", m.URLs("k").View)
	}
}

func TestMinioErr_Kinds(t *testing.T) {
	notFound := minio.ErrorResponse{Code: "NoSuchKey", StatusCode: 404}
	if err := minioErr(domain.StepDownload, notFound); !errors.Is(err, domain.ErrNotFound) || !errors.Is(err, domain.ErrRemoteRejected) {
		t.Fatalf("got %v", err)
	}
	slow := minio.ErrorResponse{Code: "SlowDown", StatusCode: 503}
	if err := minioErr(domain.StepUpload, slow); !errors.Is(err, domain.ErrTransient) {
		t.Fatalf("got %v", err)
	}
	denied := minio.ErrorResponse{Code: "AccessDenied", StatusCode: 403}
	if err := minioErr(domain.StepPermission, denied); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("got %v", err)
	}
	if err := minioErr(domain.StepList, errors.New("dial tcp: refused")); !errors.Is(err, domain.ErrTransport) {
		t.Fatalf("got %v", err)
	}
}

func TestUserMeta(t *testing.T) {
	meta := map[string]string{"X-Amz-Meta-Job-Id": "j1"}
	if userMeta(meta, jobIDMetaKey) != "j1" {
		t.Fatal("job id not found in metadata")
	}
}
