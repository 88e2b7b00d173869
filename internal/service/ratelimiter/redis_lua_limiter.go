package ratelimiter

import (
	"context"
	"log/slog"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
)

// BucketMirror is the slice of a pgx pool used to persist bucket state.
type BucketMirror interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// RedisLuaLimiter is a token bucket evaluated atomically in Redis, shared by
// every replica calling the provider with the same credential.
type RedisLuaLimiter struct {
	redis   redis.Scripter
	mirror  BucketMirror
	script  *redis.Script
	now     func() time.Time
	idleTTL time.Duration

	mu       sync.RWMutex
	fallback BucketConfig
	buckets  map[string]BucketConfig
}

// NewRedisLuaLimiter returns nil when rdb is nil so callers can fall back.
// fallback applies to keys without an explicit bucket.
func NewRedisLuaLimiter(rdb redis.Scripter, mirror BucketMirror, fallback BucketConfig) *RedisLuaLimiter {
	if rdb == nil {
		return nil
	}
	return &RedisLuaLimiter{
		redis:    rdb,
		mirror:   mirror,
		script:   redis.NewScript(luaTokenBucketScript),
		now:      time.Now,
		idleTTL:  time.Hour,
		fallback: fallback,
		buckets:  map[string]BucketConfig{},
	}
}

// KEYS[1] bucket hash; ARGV capacity, refill/s, now (s), cost, idle ttl (ms).
const luaTokenBucketScript = `
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local refill_rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local cost = tonumber(ARGV[4])
local ttl_ms = tonumber(ARGV[5])

local tokens = capacity
local last_refill = now

local data = redis.call("HMGET", key, "tokens", "last_refill")
if data[1] then
  tokens = tonumber(data[1])
end
if data[2] then
  last_refill = tonumber(data[2])
end

local delta = math.max(0, now - last_refill)
tokens = math.min(capacity, tokens + delta * refill_rate)

local allowed = 0
local retry_after = 0
if tokens >= cost then
  tokens = tokens - cost
  allowed = 1
elseif refill_rate > 0 then
  retry_after = (cost - tokens) / refill_rate
end

redis.call("HSET", key, "tokens", tokens, "last_refill", now)
if ttl_ms > 0 then
  redis.call("PEXPIRE", key, ttl_ms)
end

return { allowed, tostring(tokens), tostring(now), tostring(retry_after) }
`

func (l *RedisLuaLimiter) bucketFor(key string) BucketConfig {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if cfg, ok := l.buckets[key]; ok {
		return cfg
	}
	return l.fallback
}

func (l *RedisLuaLimiter) Allow(ctx context.Context, key string, cost int64) (bool, time.Duration, error) {
	if l == nil || l.redis == nil {
		return true, 0, nil
	}
	cfg := l.bucketFor(key)
	if !cfg.Enabled() {
		return true, 0, nil
	}
	if cost <= 0 {
		cost = 1
	}

	nowSec := float64(l.now().UnixNano()) / 1e9
	res, err := l.script.Run(ctx, l.redis, []string{"rate:" + key},
		cfg.Capacity, cfg.RefillRate, nowSec, cost, l.idleTTL.Milliseconds()).Result()
	if err != nil {
		slog.Error("redis rate limiter script error", slog.String("key", key), slog.Any("error", err))
		// Fail open; provider 429 handling still applies.
		return true, 0, err
	}

	vals, ok := res.([]interface{})
	if !ok || len(vals) < 4 {
		slog.Error("redis rate limiter unexpected script result", slog.String("key", key), slog.Any("result", res))
		return true, 0, nil
	}

	allowed := toInt64(vals[0]) == 1
	tokens := toFloat64(vals[1])
	lastRefill := toFloat64(vals[2])
	retryAfter := time.Duration(toFloat64(vals[3]) * float64(time.Second))

	if l.mirror != nil {
		l.mirrorToPostgres(ctx, key, cfg, tokens, lastRefill)
	}
	return allowed, retryAfter, nil
}

func (l *RedisLuaLimiter) mirrorToPostgres(ctx context.Context, key string, cfg BucketConfig, tokens, lastRefillSec float64) {
	sec, frac := math.Modf(lastRefillSec)
	lastRefill := time.Unix(int64(sec), int64(frac*1e9)).UTC()
	_, err := l.mirror.Exec(ctx,
		`INSERT INTO rate_limit_buckets (bucket_key, capacity, refill_rate, tokens, last_refill)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (bucket_key) DO UPDATE SET
		   capacity = EXCLUDED.capacity,
		   refill_rate = EXCLUDED.refill_rate,
		   tokens = EXCLUDED.tokens,
		   last_refill = EXCLUDED.last_refill`,
		key, cfg.Capacity, cfg.RefillRate, tokens, lastRefill,
	)
	if err != nil {
		slog.Error("failed to mirror rate limit bucket to postgres", slog.String("key", key), slog.Any("error", err))
	}
}

// HashSetter is the Redis surface WarmFromPostgres needs.
type HashSetter interface {
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// WarmFromPostgres restores mirrored bucket state into Redis after a Redis
// restart so a fresh Redis does not hand every credential a full burst.
func (l *RedisLuaLimiter) WarmFromPostgres(ctx context.Context) error {
	if l == nil || l.mirror == nil || l.redis == nil {
		return nil
	}
	hs, ok := l.redis.(HashSetter)
	if !ok {
		return nil
	}
	rows, err := l.mirror.Query(ctx, `SELECT bucket_key, tokens, EXTRACT(EPOCH FROM last_refill)::float8 FROM rate_limit_buckets`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var tokens, lastRefillSec float64
		if err := rows.Scan(&key, &tokens, &lastRefillSec); err != nil {
			return err
		}
		if err := hs.HSet(ctx, "rate:"+key, "tokens", tokens, "last_refill", lastRefillSec).Err(); err != nil {
			slog.Error("failed to warm Redis bucket from postgres", slog.String("key", key), slog.Any("error", err))
		}
	}
	return rows.Err()
}

// SetBucketConfig overrides the bucket for one key. Safe for concurrent use.
func (l *RedisLuaLimiter) SetBucketConfig(key string, cfg BucketConfig) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buckets[key] = cfg
}

func toInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	default:
		return 0
	}
}

func toFloat64(v interface{}) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int64:
		return float64(t)
	case int:
		return float64(t)
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}
