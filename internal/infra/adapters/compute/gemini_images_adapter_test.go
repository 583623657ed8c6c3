package compute

import (
	"strings"
	"testing"
	"time"

	"imagegen-dashboard/internal/domain/model"

	"google.golang.org/genai"
)

func TestGeminiSnapshot(t *testing.T) {
	t.Parallel()

	ok := geminiSnapshot(&genai.GenerateImagesResponse{GeneratedImages: []*genai.GeneratedImage{
		{Image: &genai.Image{ImageBytes: []byte{1, 2, 3}, MIMEType: "image/jpeg"}},
		{RAIFilteredReason: "filtered"},
	}})
	if ok.State != model.JobStateSucceeded || len(ok.ResultURLs) != 1 {
		t.Fatalf("unexpected snapshot: %+v", ok)
	}
	if !strings.HasPrefix(ok.ResultURLs[0], "data:image/jpeg;base64,") {
		t.Fatalf("want jpeg data url, got %q", ok.ResultURLs[0])
	}

	blocked := geminiSnapshot(&genai.GenerateImagesResponse{GeneratedImages: []*genai.GeneratedImage{
		{RAIFilteredReason: "safety filter"},
	}})
	if blocked.State != model.JobStateFailed || blocked.FailureReason != "safety filter" {
		t.Fatalf("want failed with filter reason, got %+v", blocked)
	}

	empty := geminiSnapshot(nil)
	if empty.State != model.JobStateFailed || empty.FailureReason != "no images returned" {
		t.Fatalf("want failed for empty response, got %+v", empty)
	}
}

func TestLocalJobs_Lifecycle(t *testing.T) {
	t.Parallel()
	jobs := newLocalJobs(-time.Second)

	id := jobs.start()
	snap, err := jobs.status(id)
	if err != nil || snap.State != model.JobStatePending {
		t.Fatalf("want pending, got %+v err=%v", snap, err)
	}

	jobs.finish(id, model.JobSnapshot{State: model.JobStateSucceeded, ResultURLs: []string{"u"}})
	snap, _ = jobs.status(id)
	snap.ResultURLs[0] = "mutated"
	again, _ := jobs.status(id)
	if again.ResultURLs[0] != "u" {
		t.Fatal("status must return a copy of result urls")
	}

	// a negative retention prunes finished jobs on the next start
	jobs.start()
	if _, err := jobs.status(id); err == nil {
		t.Fatal("finished job should have been pruned")
	}
}
