package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"annotation-service/internal/entity"
	"annotation-service/internal/keyspace"
	"annotation-service/internal/storage"
)

// JobService owns job assignment and the annotation/validation/correction
// state machine.
type JobService struct {
	engine storage.Engine
	locker Locker
	opts   options
}

func NewJobService(engine storage.Engine, locker Locker, opts ...Option) *JobService {
	return &JobService{engine: engine, locker: locker, opts: buildOptions(opts)}
}

// JobUpdate is the body of an update. Exactly one of Interrupt or Status is set.
type JobUpdate struct {
	Interrupt bool
	Status    *entity.Status
}

// UpdateOutcome reports what an update left behind.
type UpdateOutcome struct {
	Job    *entity.Job
	Next   *entity.Job
	Result *entity.Result
}

// candidateObjectives lists the objectives a goal may be served from, highest priority first.
func candidateObjectives(goal entity.Status) ([]entity.Status, error) {
	switch goal {
	case entity.StatusToAnnotate:
		return []entity.Status{entity.StatusToCorrect, entity.StatusToAnnotate}, nil
	case entity.StatusToValidate:
		return []entity.Status{entity.StatusToValidate}, nil
	default:
		return nil, validationf("objective %q cannot be requested", goal)
	}
}

// AssignNext hands username a job for taskName. The user's recorded job for
// each candidate objective is resumed first; otherwise the first open job in
// creation order is taken. ok is false when nothing is available.
func (s *JobService) AssignNext(ctx context.Context, taskName string, goal entity.Status, username string) (job *entity.Job, ok bool, err error) {
	if err := validateIDs(taskName, username); err != nil {
		return nil, false, err
	}
	candidates, err := candidateObjectives(goal)
	if err != nil {
		return nil, false, err
	}
	task, err := loadTask(ctx, s.engine, taskName)
	if err != nil {
		return nil, false, err
	}
	if !task.Ready {
		return nil, false, validationf("task %s is still being created", taskName)
	}

	unlock, err := s.locker.Lock(ctx, taskLockKey(taskName))
	if err != nil {
		return nil, false, fmt.Errorf("lock task %s: %w", taskName, err)
	}
	defer unlock()

	user, err := loadUser(ctx, s.engine, username)
	if err != nil {
		return nil, false, err
	}

	userDirty := false
	for _, objective := range candidates {
		jobID := user.AssignedJob(taskName, objective)
		if jobID == "" {
			continue
		}
		job, err := loadJob(ctx, s.engine, taskName, jobID)
		if errors.Is(err, ErrNotFound) {
			userDirty = user.ReleaseJob(taskName, objective, jobID) || userDirty
			continue
		}
		if err != nil {
			return nil, false, err
		}
		if job.AssignedTo != "" && job.AssignedTo != username {
			userDirty = user.ReleaseJob(taskName, objective, jobID) || userDirty
			continue
		}
		if err := s.assign(ctx, user, job); err != nil {
			return nil, false, err
		}
		s.opts.logger.Debug("job resumed", "task", taskName, "job_id", job.ID, "user", username)
		return job, true, nil
	}

	job, err = s.findOpenJob(ctx, taskName, candidates, username)
	if err != nil {
		return nil, false, err
	}
	if job == nil {
		if userDirty {
			if err := storage.PutRecord(ctx, s.engine, keyspace.UserKey(username), user); err != nil {
				return nil, false, err
			}
		}
		return nil, false, nil
	}
	if err := s.assign(ctx, user, job); err != nil {
		return nil, false, err
	}
	s.opts.logger.Info("job assigned", "task", taskName, "job_id", job.ID, "data_id", job.DataID, "objective", job.Objective, "user", username)
	return job, true, nil
}

// findOpenJob scans the task's jobs in creation order and returns the first
// job of the highest-priority candidate objective that is unassigned or
// pre-assigned to username.
func (s *JobService) findOpenJob(ctx context.Context, taskName string, candidates []entity.Status, username string) (*entity.Job, error) {
	var (
		best     *entity.Job
		bestRank = len(candidates)
	)
	err := storage.ScanRecords(ctx, s.engine, keyspace.Under(keyspace.Job, taskName), false, func(_ []byte, job *entity.Job) error {
		rank := slices.Index(candidates, job.Objective)
		if rank < 0 || rank >= bestRank {
			return nil
		}
		if job.AssignedTo != "" && job.AssignedTo != username {
			return nil
		}
		best, bestRank = job, rank
		if rank == 0 {
			return storage.ErrStopScan
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan jobs of %s: %w", taskName, err)
	}
	return best, nil
}

// assign starts job for user and records the holder on the user and result,
// all in one batch.
func (s *JobService) assign(ctx context.Context, user *entity.User, job *entity.Job) error {
	result, err := loadResult(ctx, s.engine, job.TaskName, job.DataID)
	if err != nil {
		return err
	}

	job.AssignedTo = user.Username
	job.Start(s.opts.now())
	user.RecordJob(job.TaskName, job.Objective, job.ID)
	result.SetHolder(job.Objective.Role(), user.Username)
	result.InProgress = true

	ops, err := recordOps(
		keyed{keyspace.JobKey(job.TaskName, job.ID), job},
		keyed{keyspace.UserKey(user.Username), user},
		keyed{keyspace.ResultKey(job.TaskName, job.DataID), result},
	)
	if err != nil {
		return err
	}
	if err := s.engine.Write(ctx, ops); err != nil {
		return fmt.Errorf("write assignment: %w", err)
	}
	s.opts.observer.JobAssigned(job.Objective)
	return nil
}

// GetJob returns a job of a task.
func (s *JobService) GetJob(ctx context.Context, taskName, jobID string) (*entity.Job, error) {
	if err := validateIDs(taskName, jobID); err != nil {
		return nil, err
	}
	return loadJob(ctx, s.engine, taskName, jobID)
}

// UpdateJob pauses or closes a job held by caller. Closing folds the job's
// time into its result and either finishes the item or replaces the job by
// one for the next stage.
func (s *JobService) UpdateJob(ctx context.Context, taskName, jobID, caller string, upd JobUpdate) (*UpdateOutcome, error) {
	if err := validateIDs(taskName, jobID); err != nil {
		return nil, err
	}
	if upd.Interrupt == (upd.Status != nil) {
		return nil, validationf("exactly one of interrupt or status must be set")
	}

	unlock, err := s.locker.Lock(ctx, taskLockKey(taskName))
	if err != nil {
		return nil, fmt.Errorf("lock task %s: %w", taskName, err)
	}
	defer unlock()

	job, err := loadJob(ctx, s.engine, taskName, jobID)
	if err != nil {
		return nil, err
	}
	if caller == "" || job.AssignedTo != caller {
		return nil, fmt.Errorf("%w: job %s", ErrStaleAssignment, jobID)
	}

	now := s.opts.now()
	if upd.Interrupt {
		job.Pause(now)
		if err := storage.PutRecord(ctx, s.engine, keyspace.JobKey(taskName, jobID), job); err != nil {
			return nil, fmt.Errorf("write job: %w", err)
		}
		s.opts.observer.JobInterrupted()
		return &UpdateOutcome{Job: job}, nil
	}

	status := *upd.Status
	if !job.Objective.CanTransitionTo(status) {
		return nil, validationf("cannot move a %s job to %s", job.Objective, status)
	}
	return s.close(ctx, job, caller, status, now)
}

func (s *JobService) close(ctx context.Context, job *entity.Job, caller string, status entity.Status, now time.Time) (*UpdateOutcome, error) {
	taskName := job.TaskName
	job.Pause(now)

	users := newUserCache(s.engine)
	holder, err := users.get(ctx, caller)
	if err != nil {
		return nil, err
	}
	if holder.ReleaseJob(taskName, job.Objective, job.ID) {
		users.markDirty(caller)
	}

	result, err := loadResult(ctx, s.engine, taskName, job.DataID)
	if err != nil {
		return nil, err
	}
	result.FinishJob(job)
	result.InProgress = false
	result.Status = status

	out := &UpdateOutcome{Job: job, Result: result}
	bm := storage.NewBatchManager(s.engine, s.opts.batchOpts...)
	if err := bm.Delete(ctx, keyspace.JobKey(taskName, job.ID)); err != nil {
		return nil, err
	}

	if status == entity.StatusDone {
		result.CurrentJobID = ""
	} else {
		next, err := entity.NewJob(taskName, job.DataID, status, now)
		if err != nil {
			return nil, err
		}
		if status == entity.StatusToCorrect && result.Annotator != "" {
			annotator, err := users.get(ctx, result.Annotator)
			if err != nil && !errors.Is(err, ErrNotFound) {
				return nil, err
			}
			if annotator != nil && preassignCorrection(next, annotator) {
				users.markDirty(annotator.Username)
			}
		}
		if err := bm.PutRecord(ctx, keyspace.JobKey(taskName, next.ID), next); err != nil {
			return nil, err
		}
		result.CurrentJobID = next.ID
		out.Next = next
	}

	if err := bm.PutRecord(ctx, keyspace.ResultKey(taskName, job.DataID), result); err != nil {
		return nil, err
	}
	if err := users.flushTo(ctx, bm); err != nil {
		return nil, err
	}
	if err := bm.Flush(ctx); err != nil {
		return nil, fmt.Errorf("write transition: %w", err)
	}

	s.opts.observer.JobClosed(status)
	s.opts.logger.Info("job closed",
		"task", taskName,
		"job_id", job.ID,
		"data_id", job.DataID,
		"from", job.Objective,
		"to", status,
		"duration_ms", job.Duration,
		"user", caller,
	)
	return out, nil
}

// StaleJobs returns, per task, the ids of running jobs started before cutoff.
func (s *JobService) StaleJobs(ctx context.Context, cutoff time.Time) (map[string][]string, error) {
	stale := map[string][]string{}
	err := storage.ScanRecords(ctx, s.engine, keyspace.Under(keyspace.Job), false, func(_ []byte, job *entity.Job) error {
		if job.IsRunning() && job.StartAt < cutoff.UnixMilli() {
			stale[job.TaskName] = append(stale[job.TaskName], job.ID)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan jobs: %w", err)
	}
	return stale, nil
}

// PauseStale pauses the listed jobs of one task that are still running
// and still older than cutoff.
func (s *JobService) PauseStale(ctx context.Context, taskName string, ids []string, cutoff time.Time, maxSession time.Duration) (int, error) {
	unlock, err := s.locker.Lock(ctx, taskLockKey(taskName))
	if err != nil {
		return 0, fmt.Errorf("lock task %s: %w", taskName, err)
	}
	defer unlock()

	now := s.opts.now()
	bm := storage.NewBatchManager(s.engine, s.opts.batchOpts...)
	paused := 0
	for _, id := range ids {
		job, err := loadJob(ctx, s.engine, taskName, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return paused, err
		}
		// re-check under the lock: the job may have been paused or closed meanwhile
		if !job.IsRunning() || job.StartAt >= cutoff.UnixMilli() {
			continue
		}
		job.PauseCapped(now, maxSession)
		if err := bm.PutRecord(ctx, keyspace.JobKey(taskName, id), job); err != nil {
			return paused, err
		}
		paused++
		s.opts.observer.JobInterrupted()
	}
	return paused, bm.Flush(ctx)
}

type keyed struct {
	key    []byte
	record any
}

func recordOps(records ...keyed) ([]storage.Op, error) {
	ops := make([]storage.Op, 0, len(records))
	for _, r := range records {
		op, err := storage.PutRecordOp(r.key, r.record)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}
