package distlock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	return client, mr, func() {
		client.Close()
		mr.Close()
	}
}

func TestRedisLockMutualExclusion(t *testing.T) {
	client, _, cleanup := setupTestRedis(t)
	defer cleanup()
	ctx := context.Background()

	lockA := NewRedisLock(client, "drip:batch", time.Minute)
	lockB := NewRedisLock(client, "drip:batch", time.Minute)

	ok, err := lockA.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire A: %v", err)
	}
	if !ok {
		t.Fatal("expected A to acquire the lock")
	}

	ok, err = lockB.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire B: %v", err)
	}
	if ok {
		t.Fatal("expected B to be blocked while A holds the lock")
	}

	if err := lockA.Release(ctx); err != nil {
		t.Fatalf("release A: %v", err)
	}

	ok, err = lockB.Acquire(ctx)
	if err != nil {
		t.Fatalf("re-acquire B: %v", err)
	}
	if !ok {
		t.Fatal("expected B to acquire after A released")
	}
}

func TestRedisLockReleaseOnlyIfOwner(t *testing.T) {
	client, _, cleanup := setupTestRedis(t)
	defer cleanup()
	ctx := context.Background()

	lockA := NewRedisLock(client, "drip:batch", time.Minute)
	lockB := NewRedisLock(client, "drip:batch", time.Minute)

	if ok, _ := lockA.Acquire(ctx); !ok {
		t.Fatal("expected A to acquire the lock")
	}

	// B never acquired the lock, so its release must be a no-op.
	if err := lockB.Release(ctx); err != nil {
		t.Fatalf("release B: %v", err)
	}

	if ok, _ := lockB.Acquire(ctx); ok {
		t.Fatal("B release must not free a lock owned by A")
	}
}

func TestRedisLockExpiry(t *testing.T) {
	client, mr, cleanup := setupTestRedis(t)
	defer cleanup()
	ctx := context.Background()

	lockA := NewRedisLock(client, "drip:batch", 30*time.Second)
	lockB := NewRedisLock(client, "drip:batch", 30*time.Second)

	if ok, _ := lockA.Acquire(ctx); !ok {
		t.Fatal("expected A to acquire the lock")
	}

	mr.FastForward(31 * time.Second)

	ok, err := lockB.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire B after expiry: %v", err)
	}
	if !ok {
		t.Fatal("expected B to acquire after the TTL expired")
	}
}

func TestRedisLockExtend(t *testing.T) {
	client, mr, cleanup := setupTestRedis(t)
	defer cleanup()
	ctx := context.Background()

	lock := NewRedisLock(client, "drip:batch", 30*time.Second)
	if ok, _ := lock.Acquire(ctx); !ok {
		t.Fatal("expected to acquire the lock")
	}

	if err := lock.Extend(ctx, 5*time.Minute); err != nil {
		t.Fatalf("extend: %v", err)
	}

	mr.FastForward(31 * time.Second)

	other := NewRedisLock(client, "drip:batch", 30*time.Second)
	if ok, _ := other.Acquire(ctx); ok {
		t.Fatal("expected the extended lease to still be held")
	}
}
