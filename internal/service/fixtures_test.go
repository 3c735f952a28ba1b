package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"annotation-service/internal/entity"
	"annotation-service/internal/keyspace"
	"annotation-service/internal/repository/pebbledb"
	"annotation-service/internal/service"
	"annotation-service/internal/storage"
)

type fakeDatasets struct {
	items    map[string][]string
	deleted  []string
	thumbErr error
}

func (f *fakeDatasets) ResolveOrCreate(ctx context.Context, spec entity.DatasetSpec) (*entity.Dataset, []string, error) {
	ids, ok := f.items[spec.Path]
	if !ok {
		return nil, nil, errors.New("no such dataset")
	}
	return &entity.Dataset{ID: "ds-" + spec.Path, Path: spec.Path, Size: len(ids)}, ids, nil
}

func (f *fakeDatasets) Thumbnail(ctx context.Context, datasetID, dataID string) ([]byte, error) {
	if f.thumbErr != nil {
		return nil, f.thumbErr
	}
	return []byte("thumb:" + dataID), nil
}

func (f *fakeDatasets) Delete(ctx context.Context, datasetID string) error {
	f.deleted = append(f.deleted, datasetID)
	return nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type countingObserver struct {
	mu          sync.Mutex
	assigned    int
	closed      map[entity.Status]int
	interrupted int
}

func (o *countingObserver) JobAssigned(entity.Status) {
	o.mu.Lock()
	o.assigned++
	o.mu.Unlock()
}

func (o *countingObserver) JobClosed(s entity.Status) {
	o.mu.Lock()
	if o.closed == nil {
		o.closed = map[entity.Status]int{}
	}
	o.closed[s]++
	o.mu.Unlock()
}

func (o *countingObserver) JobInterrupted() {
	o.mu.Lock()
	o.interrupted++
	o.mu.Unlock()
}

type env struct {
	engine   storage.Engine
	clock    *fakeClock
	datasets *fakeDatasets
	observer *countingObserver
	users    *service.UserService
	tasks    *service.TaskService
	jobs     *service.JobService
	results  *service.ResultService
	labels   *service.LabelService
}

const admin = "root"

func newEnv(t *testing.T) *env {
	t.Helper()
	eng, err := pebbledb.OpenInMemory()
	if err != nil {
		t.Fatalf("open engine: %v", err)
	}
	t.Cleanup(func() { eng.Close() })

	e := &env{
		engine:   eng,
		clock:    &fakeClock{now: time.UnixMilli(1_700_000_000_000)},
		datasets: &fakeDatasets{items: map[string][]string{"ds1": {"item-1", "item-2", "item-3"}}},
		observer: &countingObserver{},
	}
	opts := []service.Option{service.WithClock(e.clock.Now), service.WithObserver(e.observer)}
	locker := service.NewLocalLocker()
	e.users = service.NewUserService(eng, opts...).WithCost(bcrypt.MinCost)
	e.tasks = service.NewTaskService(eng, e.datasets, e.users, locker, opts...)
	e.jobs = service.NewJobService(eng, locker, opts...)
	e.results = service.NewResultService(eng, e.datasets, e.users, locker, opts...)
	e.labels = service.NewLabelService(eng, opts...)

	e.mustUser(t, admin, entity.RoleAdmin)
	for _, name := range []string{"alice", "bob"} {
		e.mustUser(t, name, entity.RoleUser)
	}
	return e
}

func (e *env) mustUser(t *testing.T, name string, role entity.UserRole) {
	t.Helper()
	if _, err := e.users.Create(context.Background(), name, "secret", role); err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
}

func (e *env) mustTask(t *testing.T, name string) *entity.Task {
	t.Helper()
	task, err := e.tasks.Create(context.Background(), admin, service.CreateTaskRequest{
		Name:    name,
		Dataset: entity.DatasetSpec{Path: "ds1"},
		Spec:    service.SpecRequest{DataType: "image"},
	})
	if err != nil {
		t.Fatalf("create task %s: %v", name, err)
	}
	return task
}

func (e *env) mustAssign(t *testing.T, task string, goal entity.Status, user string) *entity.Job {
	t.Helper()
	job, ok, err := e.jobs.AssignNext(context.Background(), task, goal, user)
	if err != nil {
		t.Fatalf("assign %s to %s: %v", goal, user, err)
	}
	if !ok {
		t.Fatalf("assign %s to %s: no job available", goal, user)
	}
	return job
}

func (e *env) mustClose(t *testing.T, task string, job *entity.Job, user string, status entity.Status) *service.UpdateOutcome {
	t.Helper()
	out, err := e.jobs.UpdateJob(context.Background(), task, job.ID, user, service.JobUpdate{Status: &status})
	if err != nil {
		t.Fatalf("close job %s as %s: %v", job.ID, status, err)
	}
	return out
}

func (e *env) mustResult(t *testing.T, task, dataID string) *entity.Result {
	t.Helper()
	r, err := e.results.Get(context.Background(), task, dataID)
	if err != nil {
		t.Fatalf("get result %s: %v", dataID, err)
	}
	return r
}

func (e *env) mustUserRecord(t *testing.T, name string) *entity.User {
	t.Helper()
	u, err := e.users.Get(context.Background(), name)
	if err != nil {
		t.Fatalf("get user %s: %v", name, err)
	}
	return u
}

func (e *env) listJobs(t *testing.T, task string) []entity.Job {
	t.Helper()
	var jobs []entity.Job
	err := storage.ScanRecords(context.Background(), e.engine, keyspace.Under(keyspace.Job, task), false, func(_ []byte, j *entity.Job) error {
		jobs = append(jobs, *j)
		return nil
	})
	if err != nil {
		t.Fatalf("scan jobs: %v", err)
	}
	return jobs
}

func (e *env) countKeys(t *testing.T, kind keyspace.Kind, parts ...string) int {
	t.Helper()
	keys, err := storage.ScanKeys(context.Background(), e.engine, keyspace.Under(kind, parts...))
	if err != nil {
		t.Fatalf("scan keys: %v", err)
	}
	return len(keys)
}

func statusPtr(s entity.Status) *entity.Status { return &s }
