package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only if it still carries our token, so an
// expired lease taken over by another process is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript renews the lease only while it still carries our token.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker implements Locker with SET NX PX leases, serializing
// assignment across processes sharing one store. A held lease is extended
// every ttl/3 until unlock, so long bulk operations keep it; a holder that
// dies loses it after ttl.
type RedisLocker struct {
	rdb       *redis.Client
	keyPrefix string
	ttl       time.Duration
	retry     time.Duration
}

func NewRedisLocker(rdb *redis.Client, keyPrefix string, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisLocker{
		rdb:       rdb,
		keyPrefix: keyPrefix,
		ttl:       ttl,
		retry:     25 * time.Millisecond,
	}
}

// Lock polls until the lease is acquired or ctx ends.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	lockKey := l.keyPrefix + key
	token := uuid.NewString()

	for {
		ok, err := l.rdb.SetNX(ctx, lockKey, token, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			stop := make(chan struct{})
			done := make(chan struct{})
			go l.keepAlive(lockKey, token, stop, done)

			var once sync.Once
			return func() {
				once.Do(func() {
					close(stop)
					<-done
					// the caller's ctx may already be done when unlocking
					ctx, cancel := context.WithTimeout(context.Background(), time.Second)
					defer cancel()
					_ = releaseScript.Run(ctx, l.rdb, []string{lockKey}, token).Err()
				})
			}, nil
		}

		select {
		case <-time.After(l.retry):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// keepAlive extends the lease until stop is closed or the lease is lost.
func (l *RedisLocker) keepAlive(lockKey, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), l.ttl/3)
			n, err := extendScript.Run(ctx, l.rdb, []string{lockKey}, token, l.ttl.Milliseconds()).Int()
			cancel()
			if err == nil && n == 0 {
				// taken over after expiry; nothing left to extend
				return
			}
		}
	}
}
