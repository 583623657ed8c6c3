package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"imagegen-dashboard/internal/domain"
	"imagegen-dashboard/internal/domain/model"
)

type generationFixture struct {
	compute *scriptedCompute
	store   *memStore
	lib     *libraryUC
	stats   *statsUC
	rows    *memRowLog
	csv     *memRowLog
	gen     *generationUC
}

func newGenerationFixture(t *testing.T, compute *scriptedCompute, maxAttempts int, fetcher *fakeFetcher) *generationFixture {
	t.Helper()
	f := &generationFixture{compute: compute, store: newMemStore(), rows: &memRowLog{}, csv: &memRowLog{}}
	f.lib = newTestLibrary(f.store, LibraryConfig{})
	f.stats = NewStatsUseCase()
	up := NewUploaderUseCase(f.store, fetcher, f.lib.folder, f.lib, f.stats, nopLogger())
	persister := NewPersister(up, f.rows, f.csv, f.stats, PersistConfig{AutoUpload: true, AutoLog: true}, nopLogger())
	poller := NewPoller(compute, PollerConfig{MaxAttempts: maxAttempts, Delay: time.Millisecond}, noRetry, nopLogger())
	f.gen = NewGenerationUseCase(compute, poller, persister, f.stats, &syncRunner{ctx: context.Background()}, "flux-kontext-pro", nopLogger())
	return f
}

func redCircleRequest() SubmitRequest {
	return SubmitRequest{Model: "black-forest-labs/flux", Input: map[string]any{"prompt": "a red circle"}, Tags: "shapes"}
}

func TestGenerate_RedCircle(t *testing.T) {
	compute := &scriptedCompute{script: pendingThen(3, model.JobSnapshot{
		State:      model.JobStateSucceeded,
		ResultURLs: []string{srcURL},
	})}
	f := newGenerationFixture(t, compute, 10, newFakeFetcher(map[string][]byte{srcURL: []byte("png")}))

	job, rep, err := f.gen.Generate(context.Background(), redCircleRequest(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.State != model.JobStateSucceeded || len(job.ResultURLs) != 1 {
		t.Fatalf("unexpected job %+v", job)
	}
	if rep == nil || rep.Uploaded != 1 || len(rep.Errors) != 0 {
		t.Fatalf("unexpected report %+v", rep)
	}
	if f.store.putCalls.Load() != 1 {
		t.Fatalf("expected one upload, got %d", f.store.putCalls.Load())
	}
	a := rep.Artifacts[0]
	if a.Name != "black-forest-labs_flux_task-1_1.png" {
		t.Fatalf("unexpected name %q", a.Name)
	}
	if _, ok := f.lib.Find(a.ID); !ok || len(f.lib.items) != 1 {
		t.Fatalf("expected exactly one mirrored artifact, got %+v", f.lib.items)
	}
	if f.rows.Len() != 1 || f.csv.Len() != 1 {
		t.Fatalf("expected one row per sink, got rows=%d csv=%d", f.rows.Len(), f.csv.Len())
	}
	row := f.rows.rows[0]
	if row.Prompt != "a red circle" || row.StoreLink != a.URLs.View || row.Status != "success" || row.Tags != "shapes" {
		t.Fatalf("unexpected row %+v", row)
	}
	s := f.stats.Snapshot()
	if s.TotalJobs != 1 || s.Succeeded != 1 || s.Failed != 0 || s.GeneratedImages != 1 || s.Uploaded != 1 || s.RowLogEntries != 1 || s.CSVEntries != 1 {
		t.Fatalf("unexpected stats %+v", s)
	}
}

func TestGenerate_AlwaysPendingTimesOut(t *testing.T) {
	compute := &scriptedCompute{}
	f := newGenerationFixture(t, compute, 5, newFakeFetcher(nil))

	job, rep, err := f.gen.Generate(context.Background(), redCircleRequest(), nil)
	if !errors.Is(err, domain.ErrTimedOut) {
		t.Fatalf("expected ErrTimedOut, got %v", err)
	}
	if compute.Calls() != 5 {
		t.Fatalf("expected 5 status calls, got %d", compute.Calls())
	}
	if job.State != model.JobStateTimedOut || job.FailureReason != "timed out" || rep != nil {
		t.Fatalf("unexpected job %+v report %+v", job, rep)
	}
	if f.store.putCalls.Load() != 0 || len(f.lib.items) != 0 {
		t.Fatal("a failed job must not touch the mirror")
	}
	if s := f.stats.Snapshot(); s.Failed != 1 || s.Succeeded != 0 || s.TotalJobs != 1 {
		t.Fatalf("unexpected stats %+v", s)
	}
}

func TestGenerate_FailedJob(t *testing.T) {
	compute := &scriptedCompute{script: []model.JobSnapshot{{State: model.JobStateFailed, FailureReason: "nsfw"}}}
	f := newGenerationFixture(t, compute, 5, newFakeFetcher(nil))

	job, _, err := f.gen.Generate(context.Background(), redCircleRequest(), nil)
	if !errors.Is(err, domain.ErrRemoteRejected) {
		t.Fatalf("expected ErrRemoteRejected, got %v", err)
	}
	if job.State != model.JobStateFailed || job.FailureReason != "nsfw" {
		t.Fatalf("unexpected job %+v", job)
	}
}

func TestGenerate_UploadFailureDoesNotFailJob(t *testing.T) {
	compute := &scriptedCompute{script: []model.JobSnapshot{{State: model.JobStateSucceeded, ResultURLs: []string{srcURL}}}}
	f := newGenerationFixture(t, compute, 5, newFakeFetcher(nil))

	job, rep, err := f.gen.Generate(context.Background(), redCircleRequest(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.State != model.JobStateSucceeded || len(rep.Errors) != 1 || rep.Uploaded != 0 {
		t.Fatalf("unexpected job %+v report %+v", job, rep)
	}
	if f.csv.Len() != 1 || f.rows.rows[0].StoreLink != "" {
		t.Fatal("row should still be logged without a store link")
	}
}

func TestSubmit_RequiresPrompt(t *testing.T) {
	compute := &scriptedCompute{}
	f := newGenerationFixture(t, compute, 5, newFakeFetcher(nil))

	_, err := f.gen.Submit(context.Background(), SubmitRequest{Model: "m", Input: map[string]any{"prompt": "  "}})
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if len(compute.created) != 0 {
		t.Fatal("remote job created for an invalid request")
	}
}

func TestHistory_MostRecentFirst(t *testing.T) {
	f := newGenerationFixture(t, &scriptedCompute{}, 5, newFakeFetcher(nil))
	for i := 0; i < 3; i++ {
		if _, err := f.gen.Submit(context.Background(), redCircleRequest()); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	h := f.gen.History()
	if len(h) != 3 || h[0].ID != "task-3" || h[2].ID != "task-1" {
		t.Fatalf("unexpected history %+v", h)
	}
	if h[0].Model != "black-forest-labs/flux" {
		t.Fatalf("unexpected model %q", h[0].Model)
	}
}

func TestSubmit_ReusedIDKeepsOneHistoryEntry(t *testing.T) {
	f := newGenerationFixture(t, &scriptedCompute{fixedID: "task-same"}, 5, newFakeFetcher(nil))
	for i := 0; i < 2; i++ {
		if _, err := f.gen.Submit(context.Background(), redCircleRequest()); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	if h := f.gen.History(); len(h) != 1 || h[0].ID != "task-same" {
		t.Fatalf("expected one history entry, got %+v", h)
	}
}

func TestAwait_CancelAfterSuccessStillPersists(t *testing.T) {
	compute := &scriptedCompute{script: []model.JobSnapshot{{State: model.JobStateSucceeded, ResultURLs: []string{srcURL}}}}
	f := newGenerationFixture(t, compute, 5, newFakeFetcher(map[string][]byte{srcURL: []byte("png")}))
	job, err := f.gen.Submit(context.Background(), redCircleRequest())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got, rep, err := f.gen.Await(ctx, job.ID, func(p PollProgress) {
		if p.State == model.JobStateSucceeded {
			cancel()
		}
	})
	if err != nil || got.State != model.JobStateSucceeded {
		t.Fatalf("unexpected %+v %v", got, err)
	}
	if rep == nil || rep.Uploaded != 1 || len(rep.Errors) != 0 {
		t.Fatalf("results of a finished job were dropped: %+v", rep)
	}
	if f.rows.Len() != 1 || f.csv.Len() != 1 {
		t.Fatalf("expected one row per sink, got rows=%d csv=%d", f.rows.Len(), f.csv.Len())
	}
}

func TestStartAndCancel(t *testing.T) {
	compute := &scriptedCompute{}
	f := newGenerationFixture(t, compute, 1000, newFakeFetcher(nil))
	runner := f.gen.tasks.(*syncRunner)

	job, err := f.gen.Submit(context.Background(), redCircleRequest())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := f.gen.Start(context.Background(), job.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := f.gen.Start(context.Background(), job.ID); !errors.Is(err, ErrJobRunning) {
		t.Fatalf("expected ErrJobRunning, got %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, ok := f.gen.Progress(job.ID); ok {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if !f.gen.Cancel(job.ID) {
		t.Fatal("expected a running task to cancel")
	}
	runner.wg.Wait()

	got, _ := f.gen.Job(job.ID)
	if got.State != model.JobStatePending {
		t.Fatalf("cancelled job should stay pending, got %s", got.State)
	}
	if f.gen.Cancel(job.ID) {
		t.Fatal("nothing should be running after cancel")
	}
	if p, ok := f.gen.Progress(job.ID); !ok || p.Attempt == 0 {
		t.Fatalf("progress not recorded: %+v", p)
	}
}

func TestStart_UnknownJob(t *testing.T) {
	f := newGenerationFixture(t, &scriptedCompute{}, 5, newFakeFetcher(nil))
	if err := f.gen.Start(context.Background(), "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
