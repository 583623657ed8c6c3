// File: internal/usecase/mocks_test.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"imagegen-dashboard/internal/domain"
	"imagegen-dashboard/internal/domain/model"
	"imagegen-dashboard/internal/domain/ports/adapter"
	"imagegen-dashboard/internal/infra/retry"
	"imagegen-dashboard/internal/infra/worker"

	"github.com/rs/zerolog"
)

func nopLogger() *zerolog.Logger { l := zerolog.Nop(); return &l }

var noRetry = retry.Policy{MaxAttempts: 3, Backoff: 0}

// scriptedCompute returns the scripted snapshots in order, repeating the last one.
type scriptedCompute struct {
	mu        sync.Mutex
	script    []model.JobSnapshot
	errs      []error // per call; nil entries fall through to script
	calls     int
	createErr error
	created   []string
	fixedID   string // when set, every job gets this id
}

func (c *scriptedCompute) CreateJob(ctx context.Context, modelName string, input map[string]any) (string, error) {
	if c.createErr != nil {
		return "", c.createErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	id := fmt.Sprintf("task-%d", len(c.created)+1)
	if c.fixedID != "" {
		id = c.fixedID
	}
	c.created = append(c.created, id)
	return id, nil
}

func (c *scriptedCompute) GetStatus(ctx context.Context, jobID string) (model.JobSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.calls
	c.calls++
	if i < len(c.errs) && c.errs[i] != nil {
		return model.JobSnapshot{}, c.errs[i]
	}
	if len(c.script) == 0 {
		return model.JobSnapshot{State: model.JobStatePending}, nil
	}
	if i >= len(c.script) {
		i = len(c.script) - 1
	}
	return c.script[i], nil
}

func (c *scriptedCompute) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func pendingThen(n int, final model.JobSnapshot) []model.JobSnapshot {
	out := make([]model.JobSnapshot, 0, n+1)
	for i := 0; i < n; i++ {
		out = append(out, model.JobSnapshot{State: model.JobStatePending})
	}
	return append(out, final)
}

// memStore is an in-memory ObjectStore with call counters and injectable failures.
type memStore struct {
	mu      sync.Mutex
	folders map[string]string
	objects map[string]adapter.StoredObject
	data    map[string][]byte
	public  map[string]bool
	seq     int

	findCalls, createCalls, putCalls, getCalls, deleteCalls, listCalls atomic.Int32

	grantErr  error
	deleteErr error
	getGate   chan struct{} // when set, GetObject waits on it

	// hold parks GetObject and ListObjects after they have read their result,
	// announcing each park on parked.
	hold   chan struct{}
	parked chan struct{}

	// strictFolders makes PutObject and ListObjects reject unknown folder ids.
	strictFolders bool
}

func newMemStore() *memStore {
	return &memStore{
		folders: make(map[string]string),
		objects: make(map[string]adapter.StoredObject),
		data:    make(map[string][]byte),
		public:  make(map[string]bool),
	}
}

func (s *memStore) park(ctx context.Context) error {
	if s.hold == nil {
		return nil
	}
	if s.parked != nil {
		s.parked <- struct{}{}
	}
	select {
	case <-s.hold:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// dropFolder removes the folder as if it was deleted remotely.
func (s *memStore) dropFolder(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.folders, name)
}

// checkFolder reports a missing folder. Caller holds mu.
func (s *memStore) checkFolder(step domain.Step, id string) error {
	if !s.strictFolders {
		return nil
	}
	for _, f := range s.folders {
		if f == id {
			return nil
		}
	}
	return domain.NewStepError(step, domain.ErrRemoteRejected, fmt.Errorf("%w: folder %s", domain.ErrNotFound, id))
}

func (s *memStore) FindFolder(ctx context.Context, name string) (string, bool, error) {
	s.findCalls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.folders[name]
	return id, ok, nil
}

func (s *memStore) CreateFolder(ctx context.Context, name string) (string, error) {
	s.createCalls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	id := fmt.Sprintf("folder-%d", s.seq)
	s.folders[name] = id
	return id, nil
}

func (s *memStore) PutObject(ctx context.Context, in adapter.PutObjectInput) (adapter.StoredObject, error) {
	s.putCalls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkFolder(domain.StepUpload, in.FolderID); err != nil {
		return adapter.StoredObject{}, err
	}
	s.seq++
	o := adapter.StoredObject{
		ID:        fmt.Sprintf("obj-%d", s.seq),
		Name:      in.Name,
		MimeType:  in.MimeType,
		JobID:     in.JobID,
		Size:      int64(len(in.Data)),
		CreatedAt: time.Now(),
	}
	s.objects[o.ID] = o
	s.data[o.ID] = in.Data
	return o, nil
}

func (s *memStore) GrantPublicRead(ctx context.Context, id string) error {
	if s.grantErr != nil {
		return s.grantErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.public[id] = true
	return nil
}

func (s *memStore) ListObjects(ctx context.Context, folderID, mimePrefix string) ([]adapter.StoredObject, error) {
	s.listCalls.Add(1)
	s.mu.Lock()
	if err := s.checkFolder(domain.StepList, folderID); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	out := make([]adapter.StoredObject, 0, len(s.objects))
	for _, o := range s.objects {
		out = append(out, o)
	}
	s.mu.Unlock()
	if err := s.park(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *memStore) GetObject(ctx context.Context, id string) ([]byte, error) {
	s.getCalls.Add(1)
	if s.getGate != nil {
		select {
		case <-s.getGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	s.mu.Lock()
	b, ok := s.data[id]
	s.mu.Unlock()
	if !ok {
		return nil, domain.NewStepError(domain.StepDownload, domain.ErrNotFound, nil)
	}
	if err := s.park(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *memStore) DeleteObject(ctx context.Context, id string) error {
	s.deleteCalls.Add(1)
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, id)
	delete(s.data, id)
	return nil
}

func (s *memStore) URLs(id string) model.URLSet {
	return model.URLSet{
		View:      "https://store.test/" + id + "/view",
		Content:   "https://store.test/" + id + "/content",
		Public:    "https://store.test/" + id + "/public",
		Thumbnail: "https://store.test/" + id + "/thumb",
		Direct:    "https://store.test/" + id + "/direct",
	}
}

// offlineStore reports no connection.
type offlineStore struct{ *memStore }

func (offlineStore) Connected() bool { return false }

// fakeFetcher serves bytes per URL and records the order of requests.
type fakeFetcher struct {
	mu    sync.Mutex
	body  map[string][]byte
	calls []string
}

func newFakeFetcher(body map[string][]byte) *fakeFetcher {
	if body == nil {
		body = map[string][]byte{}
	}
	return &fakeFetcher{body: body}
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewStepError(domain.StepFetch, domain.ErrTransport, err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	b, ok := f.body[url]
	if !ok {
		return nil, domain.NewStepError(domain.StepFetch, domain.ErrRemoteRejected, errors.New("http 404"))
	}
	return b, nil
}

func (f *fakeFetcher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type memRowLog struct {
	mu   sync.Mutex
	rows []model.LogRow
	err  error
}

func (l *memRowLog) Append(ctx context.Context, row model.LogRow) error {
	if l.err != nil {
		return l.err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rows = append(l.rows, row)
	return nil
}

func (l *memRowLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.rows)
}

// syncRunner runs submitted tasks in their own goroutine.
type syncRunner struct {
	ctx context.Context
	wg  sync.WaitGroup
}

func (r *syncRunner) Submit(task worker.Task) error {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		_ = task(r.ctx)
	}()
	return nil
}
