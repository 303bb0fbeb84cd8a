package cache

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestMemorySetGetDelete(t *testing.T) {
	ctx := context.Background()
	c := NewMemory("test")

	if err := c.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := c.Get(ctx, "k")
	if err != nil || got != "v" {
		t.Fatalf("get = %q, %v", got, err)
	}
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := c.Get(ctx, "k"); !IsNotFound(err) {
		t.Fatalf("want ErrNotFound after delete, got %v", err)
	}
	// borrar dos veces no es error
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}

func TestMemoryTTLExpires(t *testing.T) {
	ctx := context.Background()
	c := NewMemory("")
	_ = c.Set(ctx, "short", "1", 20*time.Millisecond)
	_ = c.Set(ctx, "forever", "1", 0)

	time.Sleep(60 * time.Millisecond)

	if ok, _ := c.Exists(ctx, "short"); ok {
		t.Fatalf("short-lived key should have expired")
	}
	if ok, _ := c.Exists(ctx, "forever"); !ok {
		t.Fatalf("ttl=0 key should not expire")
	}
}

func TestMemoryTakeIsExclusive(t *testing.T) {
	ctx := context.Background()
	c := NewMemory("")
	_ = c.Set(ctx, "code", "user-1", time.Minute)

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.Take(ctx, "code")
			if err == nil {
				if v != "user-1" {
					t.Errorf("unexpected value %q", v)
				}
				atomic.AddInt32(&wins, 1)
			} else if !IsNotFound(err) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("Take must succeed exactly once, got %d", wins)
	}
	if _, err := c.Get(ctx, "code"); !IsNotFound(err) {
		t.Fatalf("key should be gone after Take")
	}
}

func TestNewUnknownDriver(t *testing.T) {
	if _, err := New(Config{Driver: "memcached"}); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}

func closedAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()
	return addr
}

func TestRedisConnectionFailuresSurface(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        closedAddr(t),
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	c := newRedisClient(rdb, "caishen")
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := c.Get(ctx, "k"); !IsUnavailable(err) {
		t.Fatalf("get: want ErrUnavailable, got %v", err)
	}
	if err := c.Set(ctx, "k", "v", time.Minute); !IsUnavailable(err) {
		t.Fatalf("set: want ErrUnavailable, got %v", err)
	}
	if _, err := c.Take(ctx, "k"); !IsUnavailable(err) {
		t.Fatalf("take: want ErrUnavailable, got %v", err)
	}
	if err := c.Delete(ctx, "k"); !IsUnavailable(err) {
		t.Fatalf("delete: want ErrUnavailable, got %v", err)
	}
	if _, err := NewRedis(Config{Driver: "redis", URL: "redis://" + closedAddr(t) + "/0"}); !IsUnavailable(err) {
		t.Fatalf("NewRedis: want ErrUnavailable, got %v", err)
	}
}
