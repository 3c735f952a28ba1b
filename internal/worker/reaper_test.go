package worker

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"
)

type fakePauser struct {
	mu     sync.Mutex
	stale  map[string][]string
	calls  []string
	failOn string
	cutoff time.Time
	limit  time.Duration
}

func (f *fakePauser) StaleJobs(ctx context.Context, cutoff time.Time) (map[string][]string, error) {
	f.cutoff = cutoff
	return f.stale, nil
}

func (f *fakePauser) PauseStale(ctx context.Context, task string, ids []string, cutoff time.Time, max time.Duration) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, task)
	f.limit = max
	if task == f.failOn {
		return 0, errors.New("boom")
	}
	return len(ids), nil
}

func TestReaperSweep(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	f := &fakePauser{
		stale:  map[string][]string{"t1": {"a", "b"}, "t2": {"c"}, "t3": {"d"}},
		failOn: "t3",
	}
	r := NewReaper(f, 10*time.Minute, time.Minute, 2, nil)
	r.now = func() time.Time { return now }

	n, err := r.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 paused jobs, got %d", n)
	}
	sort.Strings(f.calls)
	if len(f.calls) != 3 || f.calls[0] != "t1" || f.calls[2] != "t3" {
		t.Fatalf("calls = %v", f.calls)
	}
	if !f.cutoff.Equal(now.Add(-10*time.Minute)) || f.limit != 10*time.Minute {
		t.Fatalf("cutoff=%v limit=%v", f.cutoff, f.limit)
	}
}

func TestReaperDisabled(t *testing.T) {
	r := NewReaper(&fakePauser{}, 0, time.Minute, 1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop")
	}
}

func TestPoolStopsOnCancel(t *testing.T) {
	p := NewPool(1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	handled := 0
	failed := p.Run(ctx, []string{"a", "b", "c"}, func(ctx context.Context, item string) error {
		handled++
		cancel()
		return nil
	})
	if failed != 0 {
		t.Fatalf("failed = %d", failed)
	}
	if handled > 2 {
		t.Fatalf("expected feeding to stop after cancel, handled %d", handled)
	}
}
