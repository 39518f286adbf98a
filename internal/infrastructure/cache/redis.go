package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/hszk-dev/dashstream/internal/domain/model"
	"github.com/hszk-dev/dashstream/internal/domain/repository"
	"github.com/hszk-dev/dashstream/internal/infrastructure/metrics"
)

const (
	// jobKeyPrefix is the prefix for job status keys in Redis.
	jobKeyPrefix = "job:"
)

// setStatusScript writes a status unless the key already holds a terminal one.
// Terminal writes carry the retention as a PX expiry; pending writes never expire.
//
// KEYS[1] job key, ARGV[1] status, ARGV[2] "1" when terminal, ARGV[3] retention ms.
// Returns 1 on write, 0 when rejected.
var setStatusScript = redis.NewScript(`
local current = redis.call("GET", KEYS[1])
if current == "Complete" or current == "Failed" then
	return 0
end
if ARGV[2] == "1" then
	redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[3])
else
	redis.call("SET", KEYS[1], ARGV[1])
end
return 1
`)

// RedisJobRegistry implements repository.JobRegistry using Redis as the backing store.
// It is shared by the API and workers when jobs are dispatched over the queue.
type RedisJobRegistry struct {
	client    *redis.Client
	retention time.Duration
}

// Compile-time verification that RedisJobRegistry implements JobRegistry.
var _ repository.JobRegistry = (*RedisJobRegistry)(nil)

// NewRedisJobRegistry creates a new Redis-backed job registry.
// A non-positive retention falls back to DefaultRetention.
func NewRedisJobRegistry(client *redis.Client, retention time.Duration) *RedisJobRegistry {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &RedisJobRegistry{
		client:    client,
		retention: retention,
	}
}

// Set records status for the job.
func (r *RedisJobRegistry) Set(ctx context.Context, id uuid.UUID, status model.Status) error {
	if !status.IsValid() {
		recordOp(metrics.RegistryOpSet, metrics.RegistryStatusRejected, metrics.RegistryBackendRedis)
		return fmt.Errorf("%w: unknown status %q", model.ErrInvalidTransition, status)
	}

	terminal := "0"
	if status.IsTerminal() {
		terminal = "1"
	}

	written, err := setStatusScript.Run(ctx, r.client,
		[]string{r.buildKey(id)},
		status.String(), terminal, strconv.FormatInt(r.retention.Milliseconds(), 10),
	).Int()
	if err != nil {
		recordOp(metrics.RegistryOpSet, metrics.RegistryStatusError, metrics.RegistryBackendRedis)
		return fmt.Errorf("redis set status: %w", err)
	}
	if written == 0 {
		recordOp(metrics.RegistryOpSet, metrics.RegistryStatusRejected, metrics.RegistryBackendRedis)
		return fmt.Errorf("%w: job %s is already terminal", model.ErrInvalidTransition, id)
	}

	recordOp(metrics.RegistryOpSet, metrics.RegistryStatusSuccess, metrics.RegistryBackendRedis)
	return nil
}

// Get returns the current status of the job.
// Expired keys are dropped by Redis, so they read exactly like unknown ids.
func (r *RedisJobRegistry) Get(ctx context.Context, id uuid.UUID) (model.Status, error) {
	val, err := r.client.Get(ctx, r.buildKey(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			recordOp(metrics.RegistryOpGet, metrics.RegistryStatusNotFound, metrics.RegistryBackendRedis)
			return "", repository.ErrJobNotFound
		}
		recordOp(metrics.RegistryOpGet, metrics.RegistryStatusError, metrics.RegistryBackendRedis)
		return "", fmt.Errorf("redis get: %w", err)
	}

	status := model.Status(val)
	if !status.IsValid() {
		recordOp(metrics.RegistryOpGet, metrics.RegistryStatusError, metrics.RegistryBackendRedis)
		return "", fmt.Errorf("redis get: corrupt status %q for job %s", val, id)
	}

	recordOp(metrics.RegistryOpGet, metrics.RegistryStatusSuccess, metrics.RegistryBackendRedis)
	return status, nil
}

// Evict removes the job immediately.
func (r *RedisJobRegistry) Evict(ctx context.Context, id uuid.UUID) error {
	if err := r.client.Del(ctx, r.buildKey(id)).Err(); err != nil {
		recordOp(metrics.RegistryOpEvict, metrics.RegistryStatusError, metrics.RegistryBackendRedis)
		return fmt.Errorf("redis del: %w", err)
	}

	recordOp(metrics.RegistryOpEvict, metrics.RegistryStatusSuccess, metrics.RegistryBackendRedis)
	return nil
}

// buildKey constructs the Redis key for a job.
func (r *RedisJobRegistry) buildKey(id uuid.UUID) string {
	return jobKeyPrefix + id.String()
}
