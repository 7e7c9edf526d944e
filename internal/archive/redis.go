package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	ttlGame       = 30 * 24 * time.Hour
	maxRecentKeep = 200
)

// RedisStore keeps each record under its own key and a capped list of recent ids.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "cheese-chess"
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

// DialRedis connects to a redis:// or rediss:// URL and pings it.
func DialRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

func (s *RedisStore) keyGame(id string) string { return s.prefix + ":game:" + strings.TrimSpace(id) }
func (s *RedisStore) keyRecent() string        { return s.prefix + ":recent" }

func (s *RedisStore) Save(ctx context.Context, rec Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	ok, err := s.rdb.SetNX(ctx, s.keyGame(rec.ID), raw, ttlGame).Result()
	if err != nil {
		return fmt.Errorf("save record: %w", err)
	}
	if !ok {
		return ErrDuplicateGame
	}

	pipe := s.rdb.TxPipeline()
	pipe.LPush(ctx, s.keyRecent(), rec.ID)
	pipe.LTrim(ctx, s.keyRecent(), 0, maxRecentKeep-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("index record: %w", err)
	}
	return nil
}

func (s *RedisStore) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	ids, err := s.rdb.LRange(ctx, s.keyRecent(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("list recent: %w", err)
	}
	out := make([]Record, 0, len(ids))
	for _, id := range ids {
		raw, err := s.rdb.Get(ctx, s.keyGame(id)).Bytes()
		if errors.Is(err, redis.Nil) {
			// expired record, index entry is stale
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load record %s: %w", id, err)
		}
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("unmarshal record %s: %w", id, err)
		}
		out = append(out, rec)
	}
	return out, nil
}
