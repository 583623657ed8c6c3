package objectstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"imagegen-dashboard/internal/domain"
	"imagegen-dashboard/internal/domain/ports/adapter"
)

func TestMemoryStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore("http://localhost:8080/api/v1/artifacts")

	if _, found, _ := s.FindFolder(ctx, "F"); found {
		t.Fatal("folder should not exist yet")
	}
	fid, err := s.CreateFolder(ctx, "F")
	if err != nil {
		t.Fatal(err)
	}
	if id, found, _ := s.FindFolder(ctx, "F"); !found || id != fid {
		t.Fatalf("FindFolder=%q,%v want %q", id, found, fid)
	}

	a, _ := s.PutObject(ctx, adapter.PutObjectInput{FolderID: fid, Name: "a.png", Data: []byte("A")})
	time.Sleep(2 * time.Millisecond)
	b, _ := s.PutObject(ctx, adapter.PutObjectInput{FolderID: fid, Name: "b.jpg", Data: []byte("BB"), JobID: "job"})
	_, _ = s.PutObject(ctx, adapter.PutObjectInput{FolderID: "other", Name: "c.png", Data: []byte("C")})

	if b.MimeType != "image/jpeg" || b.Size != 2 || b.JobID != "job" {
		t.Fatalf("unexpected meta %+v", b)
	}
	if b.ViewLink == "" || s.URLs(b.ID).View != b.ViewLink {
		t.Fatalf("view link should come from URLs: %+v", b)
	}

	list, _ := s.ListObjects(ctx, fid, "image/")
	if len(list) != 2 || list[0].ID != b.ID || list[1].ID != a.ID {
		t.Fatalf("expected newest first within folder, got %+v", list)
	}

	if err := s.GrantPublicRead(ctx, a.ID); err != nil || !s.IsPublic(a.ID) {
		t.Fatalf("grant: %v", err)
	}

	data, err := s.GetObject(ctx, a.ID)
	if err != nil || string(data) != "A" {
		t.Fatalf("GetObject=%q,%v", data, err)
	}

	if err := s.DeleteObject(ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetObject(ctx, a.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestNoopStore_NotAuthenticated(t *testing.T) {
	ctx := context.Background()
	var s NoopStore
	if _, err := s.GetObject(ctx, "x"); !errors.Is(err, domain.ErrNotAuthenticated) || domain.StepOf(err) != domain.StepDownload {
		t.Fatalf("got %v", err)
	}
	if _, _, err := s.FindFolder(ctx, "x"); !errors.Is(err, domain.ErrNotAuthenticated) {
		t.Fatalf("got %v", err)
	}
	if err := s.DeleteObject(ctx, "x"); !errors.Is(err, domain.ErrNotAuthenticated) {
		t.Fatalf("got %v", err)
	}
}
