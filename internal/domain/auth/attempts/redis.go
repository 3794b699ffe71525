package attempts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// hitScript mirrors apply(): the key's TTL is the window, so an expired key
// is a fresh window.
var hitScript = redis.NewScript(`
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local count = tonumber(redis.call('GET', KEYS[1]) or '0')
local allowed = 0
if count < limit then
  count = redis.call('INCR', KEYS[1])
  allowed = 1
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], window)
  ttl = window
end
return {allowed, count, ttl}
`)

type redisStore struct {
	cfg    Config
	client *redis.Client
	prefix string
}

// NewRedis constructs a store shared by every instance pointing at the same redis.
func NewRedis(ctx context.Context, cfg Config) (Store, error) {
	if cfg.Redis == nil {
		return nil, fmt.Errorf("redis configuration missing")
	}
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis address required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "login:attempts:"
	}
	return &redisStore{cfg: cfg, client: client, prefix: prefix}, nil
}

func (s *redisStore) key(id string) string {
	return s.prefix + id
}

func (s *redisStore) Hit(ctx context.Context, key string, limit int, window time.Duration) (Record, bool, error) {
	res, err := hitScript.Run(ctx, s.client, []string{s.key(key)}, limit, window.Milliseconds()).Int64Slice()
	if err != nil {
		return Record{}, false, fmt.Errorf("redis hit: %w", err)
	}
	if len(res) != 3 {
		return Record{}, false, fmt.Errorf("redis hit: unexpected reply %v", res)
	}
	rec := Record{
		Key:           key,
		Count:         int(res[1]),
		WindowResetAt: s.cfg.now().Add(time.Duration(res[2]) * time.Millisecond),
	}
	return rec, res[0] == 1, nil
}

func (s *redisStore) Get(ctx context.Context, key string) (Record, error) {
	count, err := s.client.Get(ctx, s.key(key)).Int()
	if errors.Is(err, redis.Nil) {
		return Record{Key: key}, nil
	}
	if err != nil {
		return Record{}, err
	}
	ttl, err := s.client.PTTL(ctx, s.key(key)).Result()
	if err != nil {
		return Record{}, err
	}
	rec := Record{Key: key, Count: count}
	if ttl > 0 {
		rec.WindowResetAt = s.cfg.now().Add(ttl)
	}
	return rec, nil
}

func (s *redisStore) Reset(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}

func (s *redisStore) CleanupExpired(context.Context) error {
	// Redis expires windows via TTL.
	return nil
}

func (s *redisStore) Stats(ctx context.Context) (map[string]any, error) {
	var (
		cursor uint64
		total  int
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.prefix+"*", 100).Result()
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			if strings.HasPrefix(k, s.prefix) {
				total++
			}
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	return map[string]any{
		"type":   DriverRedis,
		"total":  total,
		"prefix": s.prefix,
	}, nil
}

func (s *redisStore) Close(context.Context) error {
	return s.client.Close()
}
