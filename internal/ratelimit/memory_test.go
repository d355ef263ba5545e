package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestMemoryLimiter_FixedWindow(t *testing.T) {
	l := NewMemoryLimiter()
	now := time.Unix(1_700_000_000, 0)

	for i := 0; i < 3; i++ {
		result, err := l.Allow(context.Background(), "acct:a", 3, now)
		if err != nil {
			t.Fatalf("Allow %d: %v", i, err)
		}
		if !result.Allowed {
			t.Fatalf("expected request %d allowed", i)
		}
		if result.Remaining != 3-(i+1) {
			t.Fatalf("expected remaining %d, got %d", 3-(i+1), result.Remaining)
		}
	}

	result, err := l.Allow(context.Background(), "acct:a", 3, now)
	if err != nil {
		t.Fatalf("Allow over limit: %v", err)
	}
	if result.Allowed {
		t.Fatal("expected request over the limit to be denied")
	}
	if result.Reset.Unix() != now.Unix()+1 {
		t.Fatalf("expected reset at next second, got %v", result.Reset)
	}
}

func TestMemoryLimiter_WindowResets(t *testing.T) {
	l := NewMemoryLimiter()
	now := time.Unix(1_700_000_000, 0)

	if result, _ := l.Allow(context.Background(), "acct:a", 1, now); !result.Allowed {
		t.Fatal("expected first request allowed")
	}
	if result, _ := l.Allow(context.Background(), "acct:a", 1, now); result.Allowed {
		t.Fatal("expected second request in same window denied")
	}
	if result, _ := l.Allow(context.Background(), "acct:a", 1, now.Add(time.Second)); !result.Allowed {
		t.Fatal("expected request allowed in the next window")
	}
}

func TestMemoryLimiter_KeysAreIndependent(t *testing.T) {
	l := NewMemoryLimiter()
	now := time.Unix(1_700_000_000, 0)

	if result, _ := l.Allow(context.Background(), "acct:a", 1, now); !result.Allowed {
		t.Fatal("expected acct:a allowed")
	}
	if result, _ := l.Allow(context.Background(), "acct:b", 1, now); !result.Allowed {
		t.Fatal("expected acct:b unaffected by acct:a's window")
	}
}

func TestMemoryLimiter_ZeroLimitPassesThrough(t *testing.T) {
	l := NewMemoryLimiter()
	now := time.Unix(1_700_000_000, 0)

	for i := 0; i < 10; i++ {
		result, err := l.Allow(context.Background(), "acct:a", 0, now)
		if err != nil || !result.Allowed {
			t.Fatalf("expected unlimited passthrough, got %v %v", result, err)
		}
	}
}

func TestKeyForAccount(t *testing.T) {
	if got := KeyForAccount("  abc  "); got != "acct:abc" {
		t.Fatalf("unexpected key %q", got)
	}
	if got := KeyForAccount("   "); got != "" {
		t.Fatalf("expected empty key, got %q", got)
	}
}

func TestManager_RedisFailureFallsBackToMemory(t *testing.T) {
	provider := func() SettingsConfig {
		return SettingsConfig{RedisEnabled: true, RedisAddr: "127.0.0.1:1"}
	}
	factory := func(options *redis.Options) *redis.Client {
		// Unroutable client so the ping fails and trips the breaker.
		return redis.NewClient(options)
	}

	now := time.Unix(1_700_000_000, 0)
	m := NewManager(provider, func() time.Time { return now }, factory)

	result, err := m.Allow(context.Background(), "acct:a", 2)
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if !result.Allowed {
		t.Fatal("expected memory fallback to allow the request")
	}

	// Redis is suspended; further checks stay on memory without dialing.
	m.mu.Lock()
	downTill := m.redisDownTill
	m.mu.Unlock()
	if downTill.IsZero() {
		t.Fatal("expected redis suspended after failure")
	}
	if result, _ = m.Allow(context.Background(), "acct:a", 2); !result.Allowed {
		t.Fatal("expected second request within memory limit allowed")
	}
	if result, _ = m.Allow(context.Background(), "acct:a", 2); result.Allowed {
		t.Fatal("expected third request denied by memory limiter")
	}
}

func TestManager_NilProviderStaysOnMemory(t *testing.T) {
	m := NewManager(nil, nil, nil)

	result, err := m.Allow(context.Background(), "acct:a", 1)
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if !result.Allowed {
		t.Fatal("expected first request allowed")
	}
	if result, _ = m.Allow(context.Background(), "acct:a", 1); result.Allowed {
		t.Fatal("expected second request denied")
	}
}

func TestManager_ZeroLimitBypassesBackends(t *testing.T) {
	provider := func() SettingsConfig {
		return SettingsConfig{RedisEnabled: true, RedisAddr: "127.0.0.1:1"}
	}
	m := NewManager(provider, nil, nil)

	result, err := m.Allow(context.Background(), "acct:a", 0)
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if !result.Allowed {
		t.Fatal("expected zero limit to pass through")
	}
	m.mu.Lock()
	downTill := m.redisDownTill
	m.mu.Unlock()
	if !downTill.IsZero() {
		t.Fatal("expected no redis dial for zero limit")
	}
}

func TestManager_RedisSuspensionExpires(t *testing.T) {
	provider := func() SettingsConfig {
		return SettingsConfig{RedisEnabled: true, RedisAddr: "127.0.0.1:1"}
	}

	now := time.Unix(1_700_000_000, 0)
	m := NewManager(provider, func() time.Time { return now }, nil)

	if _, err := m.Allow(context.Background(), "acct:a", 5); err != nil {
		t.Fatalf("Allow: %v", err)
	}
	m.mu.Lock()
	downTill := m.redisDownTill
	m.mu.Unlock()
	if want := now.Add(redisRetryDelay); !downTill.Equal(want) {
		t.Fatalf("expected suspension until %v, got %v", want, downTill)
	}

	// Within the suspension window the backend is not retried.
	now = now.Add(redisRetryDelay / 2)
	if limiter := m.redisBackend(context.Background(), provider(), now); limiter != nil {
		t.Fatal("expected no redis backend while suspended")
	}
}

func TestRedisLimiter_WindowKey(t *testing.T) {
	l := NewRedisLimiter(nil, "fsp:rl")
	if got := l.windowKey("acct:a", 42); got != "fsp:rl:acct:a:42" {
		t.Fatalf("unexpected key %q", got)
	}
	l = NewRedisLimiter(nil, "")
	if got := l.windowKey("acct:a", 42); got != "acct:a:42" {
		t.Fatalf("unexpected key %q", got)
	}
}
