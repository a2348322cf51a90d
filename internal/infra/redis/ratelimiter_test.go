package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/kursadbilgin/issuance-engine/internal/ratelimit"
	goredis "github.com/redis/go-redis/v9"
)

func TestRedisRateLimiterAllowWithinWindow(t *testing.T) {
	t.Parallel()

	rdb, _ := newTestRedis(t)

	now := time.Unix(1_700_000_000, 0)
	limiter, err := newRedisRateLimiter(rdb, 2, func() time.Time { return now }, sleepWithContext)
	if err != nil {
		t.Fatalf("newRedisRateLimiter() error = %v", err)
	}

	for i := 0; i < 2; i++ {
		allowed, err := limiter.Allow(context.Background(), ratelimit.ScopeIssuance)
		if err != nil {
			t.Fatalf("Allow() error = %v", err)
		}
		if !allowed {
			t.Fatalf("call %d should be allowed", i+1)
		}
	}

	allowed, err := limiter.Allow(context.Background(), ratelimit.ScopeIssuance)
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if allowed {
		t.Fatal("third call should be rejected by rate limit")
	}

	now = now.Add(time.Second)
	allowed, err = limiter.Allow(context.Background(), ratelimit.ScopeIssuance)
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if !allowed {
		t.Fatal("new second window should allow call")
	}
}

func TestRedisRateLimiterKeysExpire(t *testing.T) {
	t.Parallel()

	rdb, mr := newTestRedis(t)

	now := time.Unix(1_700_000_050, 0)
	limiter, err := newRedisRateLimiter(rdb, 5, func() time.Time { return now }, sleepWithContext)
	if err != nil {
		t.Fatalf("newRedisRateLimiter() error = %v", err)
	}

	if _, err := limiter.Allow(context.Background(), "Issuance"); err != nil {
		t.Fatalf("Allow() error = %v", err)
	}

	key := windowKey("issuance", now)
	if !mr.Exists(key) {
		t.Fatalf("expected key %q to exist", key)
	}
	if ttl := mr.TTL(key); ttl <= 0 || ttl > time.Second {
		t.Fatalf("TTL(%q) = %s, want (0, 1s]", key, ttl)
	}
}

func TestRedisRateLimiterScopesAreIndependent(t *testing.T) {
	t.Parallel()

	rdb, _ := newTestRedis(t)

	now := time.Unix(1_700_000_100, 0)
	limiter, err := newRedisRateLimiter(rdb, 1, func() time.Time { return now }, sleepWithContext)
	if err != nil {
		t.Fatalf("newRedisRateLimiter() error = %v", err)
	}

	if allowed, _ := limiter.Allow(context.Background(), ratelimit.ScopeIssuance); !allowed {
		t.Fatal("issuance should be allowed on first request")
	}
	if allowed, _ := limiter.Allow(context.Background(), "webhook"); !allowed {
		t.Fatal("webhook should be allowed on first request")
	}
	if allowed, _ := limiter.Allow(context.Background(), ratelimit.ScopeIssuance); allowed {
		t.Fatal("issuance second request should be rejected")
	}
}

func TestRedisRateLimiterWaitBacksOffUntilNextWindow(t *testing.T) {
	t.Parallel()

	rdb, _ := newTestRedis(t)

	now := time.Unix(1_700_000_200, 0)
	var sleeps []time.Duration
	limiter, err := newRedisRateLimiter(
		rdb,
		1,
		func() time.Time { return now },
		func(ctx context.Context, d time.Duration) error {
			sleeps = append(sleeps, d)
			if len(sleeps) == 3 {
				now = now.Add(time.Second)
			}
			return nil
		},
	)
	if err != nil {
		t.Fatalf("newRedisRateLimiter() error = %v", err)
	}

	if allowed, _ := limiter.Allow(context.Background(), ratelimit.ScopeIssuance); !allowed {
		t.Fatal("expected first call to be allowed")
	}

	if err := limiter.Wait(context.Background(), ratelimit.ScopeIssuance); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	want := []time.Duration{backoffStep, 2 * backoffStep, 4 * backoffStep}
	if len(sleeps) != len(want) {
		t.Fatalf("sleep calls = %d, want %d", len(sleeps), len(want))
	}
	for i := range want {
		if sleeps[i] != want[i] {
			t.Fatalf("sleep[%d] = %s, want %s", i, sleeps[i], want[i])
		}
	}
}

func TestRedisRateLimiterWaitContextDeadline(t *testing.T) {
	t.Parallel()

	rdb, _ := newTestRedis(t)

	now := time.Unix(1_700_000_300, 0)
	limiter, err := newRedisRateLimiter(rdb, 1, func() time.Time { return now }, sleepWithContext)
	if err != nil {
		t.Fatalf("newRedisRateLimiter() error = %v", err)
	}

	if allowed, _ := limiter.Allow(context.Background(), ratelimit.ScopeIssuance); !allowed {
		t.Fatal("expected first call to be allowed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Millisecond)
	defer cancel()

	err = limiter.Wait(ctx, ratelimit.ScopeIssuance)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait() error = %v, want %v", err, context.DeadlineExceeded)
	}
}

func TestNewRedisRateLimiterRequiresClient(t *testing.T) {
	t.Parallel()

	if _, err := NewRedisRateLimiter(nil, 10); err == nil {
		t.Fatal("expected error for nil client")
	}
}

func newTestRedis(t *testing.T) (*goredis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run() error = %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := goredis.NewClient(&goredis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() {
		_ = rdb.Close()
	})

	return rdb, mr
}
