package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/md-rashed-zaman/clinicflow/services/scheduling-service/internal/model"
)

// RedisCache keeps active windows per provider and weekday. Redis errors
// degrade to cache misses. A per-provider generation counter, bumped on
// every invalidation, keeps a slow reader from writing back a list loaded
// before the change.
type RedisCache struct {
	rdb    redis.Cmdable
	ttl    time.Duration
	prefix string
	logger *slog.Logger
}

func NewRedisCache(rdb redis.Cmdable, ttl time.Duration, logger *slog.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache{rdb: rdb, ttl: ttl, prefix: "clinicflow:windows", logger: logger}
}

// Writes ARGV[2] to KEYS[2] only while KEYS[1] still holds ARGV[1].
var setIfGenerationScript = redis.NewScript(`
local current = redis.call("GET", KEYS[1]) or "0"
if current ~= ARGV[1] then
  return 0
end
redis.call("SET", KEYS[2], ARGV[2], "PX", ARGV[3])
return 1
`)

// Bumps the generation, then drops every weekday entry.
var invalidateScript = redis.NewScript(`
redis.call("INCR", KEYS[1])
for i = 2, #KEYS do
  redis.call("DEL", KEYS[i])
end
return 1
`)

func (c *RedisCache) key(providerID string, day time.Weekday) string {
	return fmt.Sprintf("%s:%s:%d", c.prefix, providerID, day)
}

func (c *RedisCache) generationKey(providerID string) string {
	return fmt.Sprintf("%s:%s:gen", c.prefix, providerID)
}

// Generation reports false when Redis is unreachable; the caller then skips
// the write-back.
func (c *RedisCache) Generation(ctx context.Context, providerID string) (string, bool) {
	gen, err := c.rdb.Get(ctx, c.generationKey(providerID)).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return "0", true
	case err != nil:
		c.logger.Warn("window cache generation read failed", "err", err, "provider_id", providerID)
		return "", false
	}
	return gen, true
}

func (c *RedisCache) Get(ctx context.Context, providerID string, day time.Weekday) ([]model.ScheduleWindow, bool) {
	raw, err := c.rdb.Get(ctx, c.key(providerID, day)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("window cache read failed", "err", err, "provider_id", providerID)
		}
		return nil, false
	}
	var ws []model.ScheduleWindow
	if err := json.Unmarshal(raw, &ws); err != nil {
		c.logger.Warn("window cache entry corrupt", "err", err, "provider_id", providerID)
		return nil, false
	}
	return ws, true
}

// Set stores windows unless the provider was invalidated after generation
// was read.
func (c *RedisCache) Set(ctx context.Context, providerID string, day time.Weekday, generation string, windows []model.ScheduleWindow) {
	if windows == nil {
		windows = []model.ScheduleWindow{}
	}
	raw, err := json.Marshal(windows)
	if err != nil {
		return
	}
	keys := []string{c.generationKey(providerID), c.key(providerID, day)}
	stored, err := setIfGenerationScript.Run(ctx, c.rdb, keys, generation, raw, c.ttl.Milliseconds()).Int()
	if err != nil {
		c.logger.Warn("window cache write failed", "err", err, "provider_id", providerID)
		return
	}
	if stored == 0 {
		c.logger.Debug("window cache write skipped after invalidation", "provider_id", providerID, "day", day)
	}
}

func (c *RedisCache) Invalidate(ctx context.Context, providerID string) {
	keys := make([]string, 0, 8)
	keys = append(keys, c.generationKey(providerID))
	for d := time.Sunday; d <= time.Saturday; d++ {
		keys = append(keys, c.key(providerID, d))
	}
	if err := invalidateScript.Run(ctx, c.rdb, keys).Err(); err != nil {
		c.logger.Warn("window cache invalidation failed", "err", err, "provider_id", providerID)
	}
}
