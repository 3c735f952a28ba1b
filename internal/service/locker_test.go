package service_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"annotation-service/internal/service"
)

func exerciseLocker(t *testing.T, locker service.Locker) {
	t.Helper()
	ctx := context.Background()

	var (
		inside  atomic.Int32
		maxSeen atomic.Int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(ctx, "task:t1")
			if err != nil {
				t.Errorf("lock: %v", err)
				return
			}
			n := inside.Add(1)
			if n > maxSeen.Load() {
				maxSeen.Store(n)
			}
			time.Sleep(2 * time.Millisecond)
			inside.Add(-1)
			unlock()
			unlock()
		}()
	}
	wg.Wait()
	if maxSeen.Load() != 1 {
		t.Fatalf("expected mutual exclusion, saw %d holders", maxSeen.Load())
	}

	// other keys are independent
	unlock, err := locker.Lock(ctx, "task:t1")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	defer unlock()
	other, err := locker.Lock(ctx, "task:t2")
	if err != nil {
		t.Fatalf("lock other key: %v", err)
	}
	other()

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if _, err := locker.Lock(short, "task:t1"); err == nil {
		t.Fatal("expected lock to time out while held")
	}
}

func TestLocalLocker(t *testing.T) {
	exerciseLocker(t, service.NewLocalLocker())
}

func TestRedisLocker(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	exerciseLocker(t, service.NewRedisLocker(rdb, "annotation:lock:", 5*time.Second))

	if keys := mr.Keys(); len(keys) != 0 {
		t.Fatalf("expected all leases released, got %v", keys)
	}
}

func TestRedisLockerExtendsHeldLease(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	ttl := 300 * time.Millisecond
	locker := service.NewRedisLocker(rdb, "annotation:lock:", ttl)
	unlock, err := locker.Lock(context.Background(), "task:t1")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}

	const key = "annotation:lock:task:t1"
	// leave 50ms of the lease on the server clock
	mr.FastForward(250 * time.Millisecond)

	deadline := time.Now().Add(2 * time.Second)
	for mr.TTL(key) <= 100*time.Millisecond {
		if time.Now().After(deadline) {
			t.Fatalf("lease was not extended, ttl %v", mr.TTL(key))
		}
		time.Sleep(10 * time.Millisecond)
	}

	unlock()
	if mr.Exists(key) {
		t.Fatal("expected lease released on unlock")
	}
}
