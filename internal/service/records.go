package service

import (
	"context"
	"fmt"

	"annotation-service/internal/entity"
	"annotation-service/internal/keyspace"
	"annotation-service/internal/storage"
)

func loadTask(ctx context.Context, eng storage.Engine, name string) (*entity.Task, error) {
	var task entity.Task
	if err := storage.GetRecord(ctx, eng, keyspace.TaskKey(name), &task); err != nil {
		return nil, translate(err, "task "+name)
	}
	return &task, nil
}

func loadJob(ctx context.Context, eng storage.Engine, taskName, id string) (*entity.Job, error) {
	var job entity.Job
	if err := storage.GetRecord(ctx, eng, keyspace.JobKey(taskName, id), &job); err != nil {
		return nil, translate(err, "job "+id)
	}
	return &job, nil
}

func loadResult(ctx context.Context, eng storage.Engine, taskName, dataID string) (*entity.Result, error) {
	var result entity.Result
	if err := storage.GetRecord(ctx, eng, keyspace.ResultKey(taskName, dataID), &result); err != nil {
		return nil, translate(err, "result "+dataID)
	}
	return &result, nil
}

func loadUser(ctx context.Context, eng storage.Engine, username string) (*entity.User, error) {
	var user entity.User
	if err := storage.GetRecord(ctx, eng, keyspace.UserKey(username), &user); err != nil {
		return nil, translate(err, "user "+username)
	}
	return &user, nil
}

// userCache defers user writes of a bulk operation to a single put per user.
type userCache struct {
	eng   storage.Engine
	users map[string]*entity.User
	dirty map[string]bool
}

func newUserCache(eng storage.Engine) *userCache {
	return &userCache{eng: eng, users: map[string]*entity.User{}, dirty: map[string]bool{}}
}

func (c *userCache) get(ctx context.Context, username string) (*entity.User, error) {
	if u, ok := c.users[username]; ok {
		return u, nil
	}
	u, err := loadUser(ctx, c.eng, username)
	if err != nil {
		return nil, err
	}
	c.users[username] = u
	return u, nil
}

func (c *userCache) put(u *entity.User) {
	c.users[u.Username] = u
	c.dirty[u.Username] = true
}

func (c *userCache) markDirty(username string) {
	c.dirty[username] = true
}

func (c *userCache) flushTo(ctx context.Context, bm *storage.BatchManager) error {
	for name := range c.dirty {
		if err := bm.PutRecord(ctx, keyspace.UserKey(name), c.users[name]); err != nil {
			return fmt.Errorf("queue user %s: %w", name, err)
		}
	}
	c.dirty = map[string]bool{}
	return nil
}

// preassignCorrection hands a fresh to_correct job back to the item's
// annotator. The annotator's queue entry is only taken when free so a
// previous correction is not orphaned; the job is still found by the
// annotator's own scan.
func preassignCorrection(job *entity.Job, annotator *entity.User) bool {
	if job.Objective != entity.StatusToCorrect || annotator == nil {
		return false
	}
	job.AssignedTo = annotator.Username
	if annotator.AssignedJob(job.TaskName, job.Objective) == "" {
		annotator.RecordJob(job.TaskName, job.Objective, job.ID)
		return true
	}
	return false
}
