package entity

import (
	"time"

	"github.com/google/uuid"
)

// Job is a single unit of assignable work for one data item. Timestamps and
// durations are unix milliseconds; StartAt == 0 means the job is not running.
type Job struct {
	ID         string `json:"id"`
	TaskName   string `json:"task_name"`
	DataID     string `json:"data_id"`
	Objective  Status `json:"objective"`
	CreatedAt  int64  `json:"created_at"`
	AssignedTo string `json:"assigned_to"`
	StartAt    int64  `json:"start_at"`
	Duration   int64  `json:"duration"`
}

// NewJob builds an unassigned job. Ids are UUIDv7 so that job keys sort in
// creation order.
func NewJob(taskName, dataID string, objective Status, now time.Time) (*Job, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}
	return &Job{
		ID:        id.String(),
		TaskName:  taskName,
		DataID:    dataID,
		Objective: objective,
		CreatedAt: now.UnixMilli(),
	}, nil
}

// IsRunning reports whether the job timer is active.
func (j *Job) IsRunning() bool {
	return j.StartAt > 0
}

// Start begins timing unless the timer is already running.
func (j *Job) Start(now time.Time) {
	if j.StartAt == 0 {
		j.StartAt = now.UnixMilli()
	}
}

// Pause stops the timer and folds elapsed time into Duration. Pausing a
// stopped job is a no-op; a negative delta (clock skew) counts as zero.
func (j *Job) Pause(now time.Time) int64 {
	return j.PauseCapped(now, 0)
}

// PauseCapped is Pause with the accumulated delta bounded by limit
// (limit <= 0 means unbounded).
func (j *Job) PauseCapped(now time.Time, limit time.Duration) int64 {
	if j.StartAt == 0 {
		return 0
	}
	delta := now.UnixMilli() - j.StartAt
	if delta < 0 {
		delta = 0
	}
	if limit > 0 && delta > limit.Milliseconds() {
		delta = limit.Milliseconds()
	}
	j.Duration += delta
	j.StartAt = 0
	return delta
}
