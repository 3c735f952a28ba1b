package entity_test

import (
	"testing"
	"time"

	"annotation-service/internal/entity"
)

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to entity.Status
		ok       bool
	}{
		{entity.StatusToAnnotate, entity.StatusToValidate, true},
		{entity.StatusToAnnotate, entity.StatusDone, false},
		{entity.StatusToValidate, entity.StatusDone, true},
		{entity.StatusToValidate, entity.StatusToCorrect, true},
		{entity.StatusToCorrect, entity.StatusToValidate, true},
		{entity.StatusToCorrect, entity.StatusToAnnotate, false},
		{entity.StatusDone, entity.StatusToAnnotate, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.ok {
			t.Fatalf("%s -> %s: expected %v, got %v", tc.from, tc.to, tc.ok, got)
		}
	}
}

func TestParseStatus(t *testing.T) {
	if s, ok := entity.ParseStatus(" TO_VALIDATE "); !ok || s != entity.StatusToValidate {
		t.Fatalf("expected to_validate, got %q ok=%v", s, ok)
	}
	if _, ok := entity.ParseStatus("archived"); ok {
		t.Fatal("expected unknown status to be rejected")
	}
}

func TestJobPauseIsIdempotent(t *testing.T) {
	start := time.UnixMilli(10_000)
	job := &entity.Job{}
	job.Start(start)
	job.Start(start.Add(time.Second))
	if job.StartAt != start.UnixMilli() {
		t.Fatalf("expected start to stay at %d, got %d", start.UnixMilli(), job.StartAt)
	}

	job.Pause(start.Add(1500 * time.Millisecond))
	job.Pause(start.Add(5 * time.Second))
	if job.Duration != 1500 {
		t.Fatalf("expected duration=1500, got %d", job.Duration)
	}
	if job.IsRunning() {
		t.Fatal("expected job to be stopped")
	}
}

func TestJobPauseClampsSkew(t *testing.T) {
	job := &entity.Job{StartAt: 5_000}
	job.Pause(time.UnixMilli(4_000))
	if job.Duration != 0 || job.StartAt != 0 {
		t.Fatalf("expected zero duration and stopped timer, got %+v", job)
	}
}

func TestJobPauseCapped(t *testing.T) {
	job := &entity.Job{StartAt: 1_000}
	job.PauseCapped(time.UnixMilli(1_000+60_000), 10*time.Second)
	if job.Duration != 10_000 {
		t.Fatalf("expected capped duration=10000, got %d", job.Duration)
	}
}

func TestNewJobIDsSortByCreation(t *testing.T) {
	now := time.Now()
	prev := ""
	for i := 0; i < 50; i++ {
		job, err := entity.NewJob("t", "d", entity.StatusToAnnotate, now)
		if err != nil {
			t.Fatalf("NewJob: %v", err)
		}
		if job.ID <= prev {
			t.Fatalf("expected increasing ids, %s after %s", job.ID, prev)
		}
		prev = job.ID
	}
}

func TestUserReleaseJob(t *testing.T) {
	u := &entity.User{Username: "alice"}
	u.RecordJob("t1", entity.StatusToAnnotate, "j1")
	u.RecordJob("t2", entity.StatusToAnnotate, "j2")

	if u.ReleaseJob("t1", entity.StatusToAnnotate, "other") {
		t.Fatal("expected release of a different job id to be ignored")
	}
	if !u.ReleaseJob("t1", entity.StatusToAnnotate, "j1") {
		t.Fatal("expected release to succeed")
	}
	if !u.ForgetTask("t2") || len(u.LastAssignedJobs) != 0 {
		t.Fatalf("expected empty map, got %#v", u.LastAssignedJobs)
	}
}

func TestUserForgetTaskKeepsPrefixedNames(t *testing.T) {
	u := &entity.User{Username: "alice"}
	u.RecordJob("a", entity.StatusToAnnotate, "j1")
	u.RecordJob("a", entity.StatusToValidate, "j2")
	u.RecordJob("a/b", entity.StatusToAnnotate, "j3")
	u.RecordJob("ab", entity.StatusToCorrect, "j4")

	if !u.ForgetTask("a") {
		t.Fatal("expected entries of a to be dropped")
	}
	if got := u.AssignedJob("a/b", entity.StatusToAnnotate); got != "j3" {
		t.Fatalf("expected a/b entry kept, got %q", got)
	}
	if got := u.AssignedJob("ab", entity.StatusToCorrect); got != "j4" {
		t.Fatalf("expected ab entry kept, got %q", got)
	}
	if len(u.LastAssignedJobs) != 2 {
		t.Fatalf("expected 2 entries left, got %#v", u.LastAssignedJobs)
	}
	if u.ForgetTask("a") {
		t.Fatal("expected second forget to change nothing")
	}
}
