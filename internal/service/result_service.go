package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"annotation-service/internal/entity"
	"annotation-service/internal/keyspace"
	"annotation-service/internal/storage"
)

const (
	DefaultPageSize = 100
	MaxPageSize     = 1000
)

// Filters maps a Result field to accepted values. Values of one field are
// OR-ed, distinct fields are AND-ed.
type Filters map[string][]string

// ParseFilters builds Filters from field -> "a;b;c" pairs.
func ParseFilters(raw map[string]string) (Filters, error) {
	filters := Filters{}
	for field, value := range raw {
		if !slices.Contains(entity.FilterFields, field) {
			return nil, validationf("unknown filter field %q", field)
		}
		filters[field] = strings.Split(value, ";")
	}
	return filters, nil
}

// Match reports whether r satisfies every filter.
func (f Filters) Match(r *entity.Result) bool {
	for field, accepted := range f {
		value, ok := r.Field(field)
		if !ok || !slices.Contains(accepted, value) {
			return false
		}
	}
	return true
}

// Direction selects the neighbour searched by Neighbor.
type Direction int

const (
	Next Direction = iota
	Previous
)

// ParseDirection accepts "next" (default) and "previous".
func ParseDirection(value string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "next":
		return Next, nil
	case "previous", "prev":
		return Previous, nil
	default:
		return Next, validationf("unknown direction %q", value)
	}
}

// ResultItem is one listed result with its thumbnail.
type ResultItem struct {
	entity.Result
	Thumbnail []byte `json:"thumbnail,omitempty"`
}

// ResultPage is one page of a filtered listing. Counts covers every result
// of the task regardless of filters.
type ResultPage struct {
	Items  []ResultItem          `json:"items"`
	Total  int                   `json:"total"`
	Counts map[entity.Status]int `json:"counts"`
}

// ResultService lists, traverses and bulk-edits results.
type ResultService struct {
	engine   storage.Engine
	datasets DatasetResolver
	auth     Authorizer
	locker   Locker
	opts     options
}

func NewResultService(engine storage.Engine, datasets DatasetResolver, auth Authorizer, locker Locker, opts ...Option) *ResultService {
	return &ResultService{engine: engine, datasets: datasets, auth: auth, locker: locker, opts: buildOptions(opts)}
}

// Get returns the result of one item.
func (s *ResultService) Get(ctx context.Context, taskName, dataID string) (*entity.Result, error) {
	if err := validateIDs(taskName, dataID); err != nil {
		return nil, err
	}
	return loadResult(ctx, s.engine, taskName, dataID)
}

// List scans every result of the task in key order and materializes the
// requested page (0-based). The scan is O(results) for every page.
func (s *ResultService) List(ctx context.Context, taskName string, page, pageSize int, filters Filters) (*ResultPage, error) {
	if err := validateIDs(taskName); err != nil {
		return nil, err
	}
	if page < 0 {
		return nil, validationf("page must be >= 0")
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	task, err := loadTask(ctx, s.engine, taskName)
	if err != nil {
		return nil, err
	}

	out := &ResultPage{Items: []ResultItem{}, Counts: map[entity.Status]int{}}
	first, last := page*pageSize, (page+1)*pageSize
	err = storage.ScanRecords(ctx, s.engine, keyspace.Under(keyspace.Result, taskName), false, func(_ []byte, r *entity.Result) error {
		out.Counts[r.Status]++
		if !filters.Match(r) {
			return nil
		}
		if out.Total >= first && out.Total < last {
			out.Items = append(out.Items, ResultItem{Result: *r})
		}
		out.Total++
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan results of %s: %w", taskName, err)
	}

	for i := range out.Items {
		thumb, err := s.datasets.Thumbnail(ctx, task.DatasetID, out.Items[i].DataID)
		if err != nil {
			s.opts.logger.Warn("thumbnail unavailable", "task", taskName, "data_id", out.Items[i].DataID, "error", err)
			continue
		}
		out.Items[i].Thumbnail = thumb
	}
	return out, nil
}

// Neighbor returns the first result after (or before) dataID in key order
// that matches filters. ok is false when the scan reaches the task bound.
func (s *ResultService) Neighbor(ctx context.Context, taskName, dataID string, filters Filters, dir Direction) (*entity.Result, bool, error) {
	if err := validateIDs(taskName, dataID); err != nil {
		return nil, false, err
	}
	key := keyspace.ResultKey(taskName, dataID)
	bounds := keyspace.Under(keyspace.Result, taskName)
	reverse := dir == Previous
	if reverse {
		bounds = bounds.Before(key)
	} else {
		bounds = bounds.After(key)
	}

	var found *entity.Result
	err := storage.ScanRecords(ctx, s.engine, bounds, reverse, func(_ []byte, r *entity.Result) error {
		if filters.Match(r) {
			found = r
			return storage.ErrStopScan
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return found, found != nil, nil
}

// BulkStatus edits many results at once (admin only). With a nil status it
// unassigns every listed item; otherwise it moves each item whose status
// differs to status, replacing its job. It returns how many results changed.
func (s *ResultService) BulkStatus(ctx context.Context, caller, taskName string, dataIDs []string, status *entity.Status) (int, error) {
	if err := requireAdmin(ctx, s.auth, caller); err != nil {
		return 0, err
	}
	if err := validateIDs(taskName); err != nil {
		return 0, err
	}
	if err := validateIDs(dataIDs...); err != nil {
		return 0, err
	}
	if status != nil {
		if _, ok := entity.ParseStatus(string(*status)); !ok {
			return 0, validationf("unknown status %q", *status)
		}
	}
	if _, err := loadTask(ctx, s.engine, taskName); err != nil {
		return 0, err
	}

	unlock, err := s.locker.Lock(ctx, taskLockKey(taskName))
	if err != nil {
		return 0, fmt.Errorf("lock task %s: %w", taskName, err)
	}
	defer unlock()

	// resolve everything before the first write
	results := make([]*entity.Result, 0, len(dataIDs))
	seen := make(map[string]struct{}, len(dataIDs))
	for _, id := range dataIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		r, err := loadResult(ctx, s.engine, taskName, id)
		if err != nil {
			return 0, err
		}
		results = append(results, r)
	}

	bm := storage.NewBatchManager(s.engine, s.opts.batchOpts...)
	users := newUserCache(s.engine)
	changed := 0
	for _, r := range results {
		var (
			ok  bool
			err error
		)
		if status == nil {
			ok, err = s.unassign(ctx, bm, users, r)
		} else {
			ok, err = s.moveTo(ctx, bm, users, r, *status)
		}
		if err != nil {
			return changed, fmt.Errorf("result %s: %w", r.DataID, err)
		}
		if ok {
			changed++
		}
	}
	if err := users.flushTo(ctx, bm); err != nil {
		return changed, err
	}
	if err := bm.Flush(ctx); err != nil {
		return changed, err
	}

	s.opts.logger.Info("bulk status applied", "task", taskName, "items", len(dataIDs), "changed", changed, "status", statusLabel(status), "by", caller)
	return changed, nil
}

func statusLabel(status *entity.Status) string {
	if status == nil {
		return "unassign"
	}
	return string(*status)
}

// releaseHolder drops the holder's queue entry for job.
func releaseHolder(ctx context.Context, users *userCache, job *entity.Job) error {
	if job.AssignedTo == "" {
		return nil
	}
	holder, err := users.get(ctx, job.AssignedTo)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if holder.ReleaseJob(job.TaskName, job.Objective, job.ID) {
		users.markDirty(holder.Username)
	}
	return nil
}

func (s *ResultService) currentJob(ctx context.Context, r *entity.Result) (*entity.Job, error) {
	if r.CurrentJobID == "" {
		return nil, nil
	}
	job, err := loadJob(ctx, s.engine, r.TaskName, r.CurrentJobID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return job, err
}

// unassign frees the item's open job and clears its holders.
func (s *ResultService) unassign(ctx context.Context, bm *storage.BatchManager, users *userCache, r *entity.Result) (bool, error) {
	job, err := s.currentJob(ctx, r)
	if err != nil {
		return false, err
	}
	changed := r.InProgress || r.Annotator != "" || r.Validator != ""
	if job != nil && job.AssignedTo != "" {
		if err := releaseHolder(ctx, users, job); err != nil {
			return false, err
		}
		job.Pause(s.opts.now())
		job.AssignedTo = ""
		if err := bm.PutRecord(ctx, keyspace.JobKey(job.TaskName, job.ID), job); err != nil {
			return false, err
		}
		changed = true
	}
	if !changed {
		return false, nil
	}
	r.Annotator, r.Validator = "", ""
	r.InProgress = false
	return true, bm.PutRecord(ctx, keyspace.ResultKey(r.TaskName, r.DataID), r)
}

// moveTo replaces the item's job by one at status (none for done).
func (s *ResultService) moveTo(ctx context.Context, bm *storage.BatchManager, users *userCache, r *entity.Result, status entity.Status) (bool, error) {
	if r.Status == status {
		return false, nil
	}
	now := s.opts.now()
	job, err := s.currentJob(ctx, r)
	if err != nil {
		return false, err
	}
	if job != nil {
		if err := releaseHolder(ctx, users, job); err != nil {
			return false, err
		}
		job.Pause(now)
		r.CumulatedTime += job.Duration
		if err := bm.Delete(ctx, keyspace.JobKey(job.TaskName, job.ID)); err != nil {
			return false, err
		}
	}

	r.Status = status
	r.InProgress = false
	r.CurrentJobID = ""
	if status != entity.StatusDone {
		next, err := entity.NewJob(r.TaskName, r.DataID, status, now)
		if err != nil {
			return false, err
		}
		if status == entity.StatusToCorrect && r.Annotator != "" {
			annotator, err := users.get(ctx, r.Annotator)
			if err != nil && !errors.Is(err, ErrNotFound) {
				return false, err
			}
			if annotator != nil && preassignCorrection(next, annotator) {
				users.markDirty(annotator.Username)
			}
		}
		if err := bm.PutRecord(ctx, keyspace.JobKey(r.TaskName, next.ID), next); err != nil {
			return false, err
		}
		r.CurrentJobID = next.ID
	}
	return true, bm.PutRecord(ctx, keyspace.ResultKey(r.TaskName, r.DataID), r)
}
