package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"annotation-service/internal/entity"
	"annotation-service/internal/keyspace"
	"annotation-service/internal/storage"
)

// specNamespace scopes the name-based ids of specs.
var specNamespace = uuid.MustParse("6f1c2a3e-8d47-4b4e-9b57-3a52c0f1d9a4")

// CreateTaskRequest describes a task to create.
type CreateTaskRequest struct {
	Name    string             `json:"name"`
	Dataset entity.DatasetSpec `json:"dataset"`
	Spec    SpecRequest        `json:"spec"`
}

type SpecRequest struct {
	DataType    string          `json:"data_type"`
	LabelSchema json.RawMessage `json:"label_schema,omitempty"`
}

// TaskService creates and deletes tasks together with their jobs, results
// and labels.
type TaskService struct {
	engine   storage.Engine
	datasets DatasetResolver
	auth     Authorizer
	locker   Locker
	opts     options
}

func NewTaskService(engine storage.Engine, datasets DatasetResolver, auth Authorizer, locker Locker, opts ...Option) *TaskService {
	return &TaskService{engine: engine, datasets: datasets, auth: auth, locker: locker, opts: buildOptions(opts)}
}

func (s *TaskService) Get(ctx context.Context, name string) (*entity.Task, error) {
	if err := validateIDs(name); err != nil {
		return nil, err
	}
	return loadTask(ctx, s.engine, name)
}

func (s *TaskService) List(ctx context.Context) ([]entity.Task, error) {
	tasks := []entity.Task{}
	err := storage.ScanRecords(ctx, s.engine, keyspace.Under(keyspace.Task), false, func(_ []byte, t *entity.Task) error {
		tasks = append(tasks, *t)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan tasks: %w", err)
	}
	return tasks, nil
}

func (s *TaskService) Spec(ctx context.Context, id string) (*entity.Spec, error) {
	if err := validateIDs(id); err != nil {
		return nil, err
	}
	var spec entity.Spec
	if err := storage.GetRecord(ctx, s.engine, keyspace.SpecKey(id), &spec); err != nil {
		return nil, translate(err, "spec "+id)
	}
	return &spec, nil
}

// Create resolves the dataset and spec, then writes one to_annotate job,
// one result and one empty label per data item. A task left unready by an
// interrupted Create is resumed: items that already have a result are
// skipped.
func (s *TaskService) Create(ctx context.Context, caller string, req CreateTaskRequest) (*entity.Task, error) {
	if err := requireAdmin(ctx, s.auth, caller); err != nil {
		return nil, err
	}
	if err := validateIDs(req.Name); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Spec.DataType) == "" {
		return nil, validationf("spec.data_type is required")
	}
	if len(req.Spec.LabelSchema) > 0 && !json.Valid(req.Spec.LabelSchema) {
		return nil, validationf("spec.label_schema is not valid JSON")
	}

	existing, err := loadTask(ctx, s.engine, req.Name)
	switch {
	case err == nil && existing.Ready:
		return nil, fmt.Errorf("%w: task %s", ErrAlreadyExists, req.Name)
	case err != nil && !errors.Is(err, ErrNotFound):
		return nil, err
	}

	ds, dataIDs, err := s.datasets.ResolveOrCreate(ctx, req.Dataset)
	if err != nil {
		return nil, fmt.Errorf("resolve dataset: %w", err)
	}
	if existing != nil && existing.DatasetID != ds.ID {
		return nil, validationf("task %s was started on dataset %s", req.Name, existing.DatasetID)
	}
	if err := validateIDs(dataIDs...); err != nil {
		return nil, err
	}

	spec, err := s.putSpec(ctx, req.Spec)
	if err != nil {
		return nil, err
	}

	now := s.opts.now()
	task := existing
	if task != nil {
		task.SpecID = spec.ID
	} else {
		task = &entity.Task{Name: req.Name, DatasetID: ds.ID, SpecID: spec.ID, CreatedAt: now.UnixMilli()}
		if err := storage.PutRecord(ctx, s.engine, keyspace.TaskKey(task.Name), task); err != nil {
			return nil, fmt.Errorf("write task: %w", err)
		}
	}

	bm := storage.NewBatchManager(s.engine, append([]storage.BatchOption{storage.WithBatchLogger(s.opts.logger)}, s.opts.batchOpts...)...)
	created, skipped := 0, 0
	for _, dataID := range dataIDs {
		done, err := storage.Exists(ctx, s.engine, keyspace.ResultKey(task.Name, dataID))
		if err != nil {
			return nil, err
		}
		if done {
			skipped++
			continue
		}
		if err := s.queueItem(ctx, bm, task.Name, dataID); err != nil {
			return nil, fmt.Errorf("item %s: %w", dataID, err)
		}
		created++
	}
	if err := bm.Flush(ctx); err != nil {
		return nil, fmt.Errorf("write items: %w", err)
	}

	task.Ready = true
	if err := storage.PutRecord(ctx, s.engine, keyspace.TaskKey(task.Name), task); err != nil {
		return nil, fmt.Errorf("mark task ready: %w", err)
	}
	s.opts.logger.Info("task created",
		"task", task.Name,
		"dataset", ds.ID,
		"items", len(dataIDs),
		"created", created,
		"resumed", skipped,
		"flushes", bm.Flushes(),
		"by", caller,
	)
	return task, nil
}

func (s *TaskService) putSpec(ctx context.Context, req SpecRequest) (*entity.Spec, error) {
	content := append([]byte(req.DataType+"\x00"), req.LabelSchema...)
	spec := &entity.Spec{
		ID:          uuid.NewSHA1(specNamespace, content).String(),
		DataType:    req.DataType,
		LabelSchema: req.LabelSchema,
	}
	if err := storage.PutRecord(ctx, s.engine, keyspace.SpecKey(spec.ID), spec); err != nil {
		return nil, fmt.Errorf("write spec: %w", err)
	}
	return spec, nil
}

// queueItem emits the job, result and label of one data item. The result
// goes last so that its presence marks the item as complete.
func (s *TaskService) queueItem(ctx context.Context, bm *storage.BatchManager, taskName, dataID string) error {
	job, err := entity.NewJob(taskName, dataID, entity.StatusToAnnotate, s.opts.now())
	if err != nil {
		return err
	}
	if err := bm.PutRecord(ctx, keyspace.JobKey(taskName, job.ID), job); err != nil {
		return err
	}
	if err := bm.PutRecord(ctx, keyspace.LabelKey(taskName, dataID), entity.NewLabel(taskName, dataID)); err != nil {
		return err
	}
	return bm.PutRecord(ctx, keyspace.ResultKey(taskName, dataID), entity.NewResult(taskName, dataID, job.ID))
}

// Delete removes the task's jobs, results and labels, scrubs user queues
// and drops the dataset and spec once no other task references them. The
// task record goes last so that an interrupted Delete can be re-run.
func (s *TaskService) Delete(ctx context.Context, caller, name string) error {
	if err := requireAdmin(ctx, s.auth, caller); err != nil {
		return err
	}
	if err := validateIDs(name); err != nil {
		return err
	}
	task, err := loadTask(ctx, s.engine, name)
	if err != nil {
		return err
	}

	unlock, err := s.locker.Lock(ctx, taskLockKey(name))
	if err != nil {
		return fmt.Errorf("lock task %s: %w", name, err)
	}
	defer unlock()

	bm := storage.NewBatchManager(s.engine, append([]storage.BatchOption{storage.WithBatchLogger(s.opts.logger)}, s.opts.batchOpts...)...)
	removed := 0
	for _, kind := range []keyspace.Kind{keyspace.Job, keyspace.Result, keyspace.Label} {
		err := storage.ScanRange(ctx, s.engine, keyspace.Under(kind, name), false, func(key, _ []byte) error {
			removed++
			return bm.Delete(ctx, key)
		})
		if err != nil {
			return fmt.Errorf("scan %c records of %s: %w", kind, name, err)
		}
	}

	scrubbed := 0
	err = storage.ScanRecords(ctx, s.engine, keyspace.Under(keyspace.User), false, func(key []byte, u *entity.User) error {
		if !u.ForgetTask(name) {
			return nil
		}
		scrubbed++
		return bm.PutRecord(ctx, key, u)
	})
	if err != nil {
		return fmt.Errorf("scrub users: %w", err)
	}
	if err := bm.Flush(ctx); err != nil {
		return fmt.Errorf("delete records of %s: %w", name, err)
	}

	datasetShared, specShared, err := s.references(ctx, task)
	if err != nil {
		return err
	}
	if !datasetShared {
		if err := s.datasets.Delete(ctx, task.DatasetID); err != nil {
			return fmt.Errorf("delete dataset %s: %w", task.DatasetID, err)
		}
	}
	if !specShared {
		if err := s.engine.Delete(ctx, keyspace.SpecKey(task.SpecID)); err != nil {
			return fmt.Errorf("delete spec %s: %w", task.SpecID, err)
		}
	}
	if err := s.engine.Delete(ctx, keyspace.TaskKey(name)); err != nil {
		return fmt.Errorf("delete task %s: %w", name, err)
	}

	s.opts.logger.Info("task deleted",
		"task", name,
		"records", removed,
		"users_scrubbed", scrubbed,
		"dataset_dropped", !datasetShared,
		"flushes", bm.Flushes(),
		"by", caller,
	)
	return nil
}

// references reports whether another task shares task's dataset or spec.
func (s *TaskService) references(ctx context.Context, task *entity.Task) (dataset, spec bool, err error) {
	err = storage.ScanRecords(ctx, s.engine, keyspace.Under(keyspace.Task), false, func(_ []byte, other *entity.Task) error {
		if other.Name == task.Name {
			return nil
		}
		dataset = dataset || other.DatasetID == task.DatasetID
		spec = spec || other.SpecID == task.SpecID
		return nil
	})
	if err != nil {
		return false, false, fmt.Errorf("scan tasks: %w", err)
	}
	return dataset, spec, nil
}
