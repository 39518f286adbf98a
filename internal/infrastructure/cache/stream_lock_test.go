package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hszk-dev/dashstream/internal/domain/repository"
)

func TestRedisStreamLock_AcquireAndRelease(t *testing.T) {
	mr, client, cleanup := setupTestRedis(t)
	defer cleanup()

	lock := NewRedisStreamLock(client, time.Hour)
	ctx := context.Background()
	first, second := uuid.New(), uuid.New()

	if err := lock.Acquire(ctx, "demo", first); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if got, _ := mr.Get(streamKeyPrefix + "demo"); got != first.String() {
		t.Errorf("lock value: got %q, expected %q", got, first.String())
	}
	if ttl := mr.TTL(streamKeyPrefix + "demo"); ttl != time.Hour {
		t.Errorf("TTL: got %v, expected %v", ttl, time.Hour)
	}

	if err := lock.Acquire(ctx, "demo", second); !errors.Is(err, repository.ErrStreamLocked) {
		t.Fatalf("expected ErrStreamLocked, got %v", err)
	}
	if err := lock.Acquire(ctx, "other", second); err != nil {
		t.Fatalf("Acquire of another stream failed: %v", err)
	}

	if err := lock.Release(ctx, "demo", first); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if err := lock.Acquire(ctx, "demo", second); err != nil {
		t.Errorf("Acquire after release failed: %v", err)
	}
}

func TestRedisStreamLock_ReleaseKeepsOtherHolder(t *testing.T) {
	mr, client, cleanup := setupTestRedis(t)
	defer cleanup()

	lock := NewRedisStreamLock(client, time.Hour)
	ctx := context.Background()
	holder := uuid.New()

	if err := lock.Acquire(ctx, "demo", holder); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if err := lock.Release(ctx, "demo", uuid.New()); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if !mr.Exists(streamKeyPrefix + "demo") {
		t.Error("lock held by another job was released")
	}

	if err := lock.Release(ctx, "missing", holder); err != nil {
		t.Errorf("Release of an unheld stream: got %v, expected nil", err)
	}
}

func TestRedisStreamLock_Expires(t *testing.T) {
	mr, client, cleanup := setupTestRedis(t)
	defer cleanup()

	lock := NewRedisStreamLock(client, time.Minute)
	ctx := context.Background()

	if err := lock.Acquire(ctx, "demo", uuid.New()); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	mr.FastForward(2 * time.Minute)

	if err := lock.Acquire(ctx, "demo", uuid.New()); err != nil {
		t.Errorf("Acquire after expiry failed: %v", err)
	}
}

func TestNewRedisStreamLock_DefaultTTL(t *testing.T) {
	_, client, cleanup := setupTestRedis(t)
	defer cleanup()

	if lock := NewRedisStreamLock(client, 0); lock.ttl != DefaultStreamLockTTL {
		t.Errorf("ttl: got %v, expected %v", lock.ttl, DefaultStreamLockTTL)
	}
}

func TestRedisStreamLock_ConnectionError(t *testing.T) {
	mr, client, cleanup := setupTestRedis(t)
	defer cleanup()

	lock := NewRedisStreamLock(client, time.Hour)
	mr.Close()

	err := lock.Acquire(context.Background(), "demo", uuid.New())
	if err == nil || errors.Is(err, repository.ErrStreamLocked) {
		t.Errorf("expected a connection error, got %v", err)
	}
}
