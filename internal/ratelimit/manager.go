package ratelimit

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// After a Redis failure the manager stops trying Redis for this long and
// serves checks from the in-memory window instead.
const redisRetryDelay = 30 * time.Second

// SettingsProvider supplies the current rate limit settings. It is consulted
// on every check so admin edits take effect without a restart.
type SettingsProvider func() SettingsConfig

// RedisClientFactory builds a Redis client; swappable in tests.
type RedisClientFactory func(options *redis.Options) *redis.Client

// redisSettings is the subset of settings whose change forces a client
// rebuild.
type redisSettings struct {
	addr     string
	password string
	db       int
	prefix   string
}

func redisSettingsFrom(cfg SettingsConfig) redisSettings {
	s := redisSettings{
		addr:     strings.TrimSpace(cfg.RedisAddr),
		password: strings.TrimSpace(cfg.RedisPassword),
		db:       cfg.RedisDB,
		prefix:   strings.TrimSpace(cfg.RedisPrefix),
	}
	if s.db < 0 {
		s.db = 0
	}
	return s
}

// Manager enforces per-account request limits. It prefers Redis when the
// settings enable it and the server is reachable, and degrades to the
// in-memory window otherwise.
type Manager struct {
	provider  SettingsProvider
	nowFn     func() time.Time
	memory    Limiter
	newClient RedisClientFactory

	mu            sync.Mutex
	redisLimiter  *RedisLimiter
	redisSettings redisSettings
	redisDownTill time.Time
}

// NewManager constructs a Manager with default dependencies when nil. A nil
// provider disables Redis and serves every check from the in-memory window.
func NewManager(provider SettingsProvider, nowFn func() time.Time, newClient RedisClientFactory) *Manager {
	if provider == nil {
		provider = func() SettingsConfig { return SettingsConfig{} }
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	if newClient == nil {
		newClient = redis.NewClient
	}
	return &Manager{
		provider:  provider,
		nowFn:     nowFn,
		memory:    NewMemoryLimiter(),
		newClient: newClient,
	}
}

// Allow checks whether the account's request fits the current window.
func (m *Manager) Allow(ctx context.Context, key string, limit int) (Result, error) {
	if m == nil || key == "" || limit <= 0 {
		return Result{Allowed: true}, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	now := m.nowFn()
	cfg := m.provider()

	if cfg.RedisEnabled {
		if limiter := m.redisBackend(ctx, cfg, now); limiter != nil {
			result, errAllow := limiter.Allow(ctx, key, limit, now)
			if errAllow == nil {
				return result, nil
			}
			m.suspendRedis(errAllow, now)
		}
	}
	return m.memory.Allow(ctx, key, limit, now)
}

// redisBackend returns a ready Redis limiter, rebuilding the client when the
// settings changed, or nil when Redis is unconfigured or suspended.
func (m *Manager) redisBackend(ctx context.Context, cfg SettingsConfig, now time.Time) *RedisLimiter {
	next := redisSettingsFrom(cfg)
	if next.addr == "" {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if now.Before(m.redisDownTill) {
		return nil
	}
	m.redisDownTill = time.Time{}

	if m.redisLimiter != nil && m.redisSettings == next {
		return m.redisLimiter
	}
	if m.redisLimiter != nil {
		_ = m.redisLimiter.client.Close()
		m.redisLimiter = nil
	}

	client := m.newClient(&redis.Options{
		Addr:     next.addr,
		Password: next.password,
		DB:       next.db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if errPing := client.Ping(pingCtx).Err(); errPing != nil {
		_ = client.Close()
		m.redisDownTill = now.Add(redisRetryDelay)
		log.WithError(errPing).Warn("rate limit: redis unreachable, using in-memory window")
		return nil
	}

	m.redisLimiter = NewRedisLimiter(client, next.prefix)
	m.redisSettings = next
	return m.redisLimiter
}

// suspendRedis parks the Redis backend after a failed check.
func (m *Manager) suspendRedis(err error, now time.Time) {
	if m == nil || err == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if now.Before(m.redisDownTill) {
		return
	}
	m.redisDownTill = now.Add(redisRetryDelay)
	log.WithError(err).Warn("rate limit: redis check failed, using in-memory window")
}
