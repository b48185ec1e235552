// Package redis provides a thin wrapper around go-redis/v9 with connection
// pooling, sorted-set and hash primitives with TTL refresh, pipelined
// batch operations, and pattern-based key deletion.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/config"
	"github.com/redis/go-redis/v9"
)

// Client wraps a go-redis client.
type Client struct {
	rdb *redis.Client
}

// ScoredMember is one member of a sorted set with its score.
type ScoredMember struct {
	Member string
	Score  float64
}

// ZEntry addresses a member of a named sorted set in batch operations.
// Score is ignored by removals.
type ZEntry struct {
	Key    string
	Member string
	Score  float64
}

// NewClient creates a Redis client and verifies the connection with a PING.
func NewClient(cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Client{rdb: rdb}, nil
}

// Del deletes one or more keys.
func (c *Client) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// HSetWithTTL writes every field of a hash and refreshes its expiry.
func (c *Client) HSetWithTTL(ctx context.Context, key string, fields map[string]string, ttl time.Duration) error {
	values := make(map[string]any, len(fields))
	for k, v := range fields {
		values[k] = v
	}
	_, err := c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, values)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("hset %s: %w", key, err)
	}
	return nil
}

// HGetAll returns every field of a hash. A missing key yields an empty map.
func (c *Client) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	fields, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", key, err)
	}
	return fields, nil
}

// HGetAllMany fetches several hashes in one pipeline. The result is aligned
// with keys; missing keys yield empty maps.
func (c *Client) HGetAllMany(ctx context.Context, keys []string) ([]map[string]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	pipe := c.rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(keys))
	for i, key := range keys {
		cmds[i] = pipe.HGetAll(ctx, key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("pipelined hgetall: %w", err)
	}
	result := make([]map[string]string, len(keys))
	for i, cmd := range cmds {
		result[i] = cmd.Val()
	}
	return result, nil
}

// ZAddWithTTL adds or re-scores a member and refreshes the key's expiry.
func (c *Client) ZAddWithTTL(ctx context.Context, key, member string, score float64, ttl time.Duration) error {
	return c.ZAddManyWithTTL(ctx, []ZEntry{{Key: key, Member: member, Score: score}}, ttl)
}

// ZAddManyWithTTL upserts every entry in one non-transactional pipeline,
// refreshing the expiry of each touched key.
func (c *Client) ZAddManyWithTTL(ctx context.Context, entries []ZEntry, ttl time.Duration) error {
	if len(entries) == 0 {
		return nil
	}
	_, err := c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, e := range entries {
			pipe.ZAdd(ctx, e.Key, redis.Z{Score: e.Score, Member: e.Member})
			pipe.Expire(ctx, e.Key, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("pipelined zadd (%d entries): %w", len(entries), err)
	}
	return nil
}

// ZIncrManyWithTTL increments each entry's member by its Score and refreshes
// the expiry of each touched key.
func (c *Client) ZIncrManyWithTTL(ctx context.Context, entries []ZEntry, ttl time.Duration) error {
	if len(entries) == 0 {
		return nil
	}
	_, err := c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, e := range entries {
			pipe.ZIncrBy(ctx, e.Key, e.Score, e.Member)
			pipe.Expire(ctx, e.Key, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("pipelined zincrby (%d entries): %w", len(entries), err)
	}
	return nil
}

// ZRemMany removes every entry's member from its key. Absent members are
// ignored.
func (c *Client) ZRemMany(ctx context.Context, entries []ZEntry) error {
	if len(entries) == 0 {
		return nil
	}
	_, err := c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, e := range entries {
			pipe.ZRem(ctx, e.Key, e.Member)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("pipelined zrem (%d entries): %w", len(entries), err)
	}
	return nil
}

// ZRevRangeWithScores returns up to limit members by descending score.
// A limit of zero or less returns the whole set.
func (c *Client) ZRevRangeWithScores(ctx context.Context, key string, limit int) ([]ScoredMember, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	zs, err := c.rdb.ZRevRangeWithScores(ctx, key, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("zrevrange %s: %w", key, err)
	}
	result := make([]ScoredMember, 0, len(zs))
	for _, z := range zs {
		member, ok := z.Member.(string)
		if !ok {
			member = fmt.Sprint(z.Member)
		}
		result = append(result, ScoredMember{Member: member, Score: z.Score})
	}
	return result, nil
}

// ZScores looks up members of one sorted set. Members that are not in the
// set are absent from the returned map.
func (c *Client) ZScores(ctx context.Context, key string, members []string) (map[string]float64, error) {
	result := make(map[string]float64, len(members))
	if len(members) == 0 {
		return result, nil
	}
	pipe := c.rdb.Pipeline()
	cmds := make([]*redis.FloatCmd, len(members))
	for i, m := range members {
		cmds[i] = pipe.ZScore(ctx, key, m)
	}
	if _, err := pipe.Exec(ctx); err != nil && !IsNilError(err) {
		return nil, fmt.Errorf("pipelined zscore %s: %w", key, err)
	}
	for i, cmd := range cmds {
		score, err := cmd.Result()
		if IsNilError(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("zscore %s %s: %w", key, members[i], err)
		}
		result[members[i]] = score
	}
	return result, nil
}

// FlushByPattern scans for keys matching the glob pattern and deletes them,
// returning the number of keys removed.
func (c *Client) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	var deleted int64
	iter := c.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return deleted, fmt.Errorf("deleting key %s: %w", iter.Val(), err)
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("scanning pattern %s: %w", pattern, err)
	}
	return deleted, nil
}

// CountByPattern scans for keys matching the glob pattern and counts them
// without loading their values.
func (c *Client) CountByPattern(ctx context.Context, pattern string) (int64, error) {
	var n int64
	iter := c.rdb.Scan(ctx, 0, pattern, 500).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return n, fmt.Errorf("scanning pattern %s: %w", pattern, err)
	}
	return n, nil
}

func (c *Client) ZCard(ctx context.Context, key string) (int64, error) {
	n, err := c.rdb.ZCard(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("zcard %s: %w", key, err)
	}
	return n, nil
}

// IsNilError reports whether err is a Redis nil (key-not-found) error.
func IsNilError(err error) bool {
	return errors.Is(err, redis.Nil)
}

// Close closes the underlying Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping sends a PING to Redis and returns any error.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
