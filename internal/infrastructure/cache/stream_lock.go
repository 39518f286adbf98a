package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/hszk-dev/dashstream/internal/domain/repository"
	"github.com/hszk-dev/dashstream/internal/infrastructure/metrics"
)

const (
	// streamKeyPrefix is the prefix for stream lock keys in Redis.
	streamKeyPrefix = "stream:"

	// DefaultStreamLockTTL bounds how long a lock outlives a worker that died
	// without releasing it.
	DefaultStreamLockTTL = 3 * time.Hour
)

// releaseLockScript deletes the lock only while it still names the job.
//
// KEYS[1] stream key, ARGV[1] job id. Returns 1 when deleted.
var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisStreamLock implements repository.StreamLock with SET NX keys, so the
// API and every worker see the same reservations.
type RedisStreamLock struct {
	client *redis.Client
	ttl    time.Duration
}

// Compile-time verification that RedisStreamLock implements StreamLock.
var _ repository.StreamLock = (*RedisStreamLock)(nil)

// NewRedisStreamLock creates a Redis-backed stream lock.
// A non-positive ttl falls back to DefaultStreamLockTTL.
func NewRedisStreamLock(client *redis.Client, ttl time.Duration) *RedisStreamLock {
	if ttl <= 0 {
		ttl = DefaultStreamLockTTL
	}
	return &RedisStreamLock{
		client: client,
		ttl:    ttl,
	}
}

// Acquire reserves name for jobID.
func (l *RedisStreamLock) Acquire(ctx context.Context, name string, jobID uuid.UUID) error {
	ok, err := l.client.SetNX(ctx, streamKeyPrefix+name, jobID.String(), l.ttl).Result()
	if err != nil {
		recordLockOp(metrics.StreamLockOpAcquire, metrics.StreamLockStatusError)
		return fmt.Errorf("redis acquire stream lock: %w", err)
	}
	if !ok {
		recordLockOp(metrics.StreamLockOpAcquire, metrics.StreamLockStatusLocked)
		return fmt.Errorf("%w: %s", repository.ErrStreamLocked, name)
	}

	recordLockOp(metrics.StreamLockOpAcquire, metrics.StreamLockStatusSuccess)
	return nil
}

// Release frees name if jobID still holds it.
func (l *RedisStreamLock) Release(ctx context.Context, name string, jobID uuid.UUID) error {
	if err := releaseLockScript.Run(ctx, l.client, []string{streamKeyPrefix + name}, jobID.String()).Err(); err != nil {
		recordLockOp(metrics.StreamLockOpRelease, metrics.StreamLockStatusError)
		return fmt.Errorf("redis release stream lock: %w", err)
	}

	recordLockOp(metrics.StreamLockOpRelease, metrics.StreamLockStatusSuccess)
	return nil
}

func recordLockOp(operation, status string) {
	metrics.StreamLockOperationsTotal.WithLabelValues(operation, status).Inc()
}
