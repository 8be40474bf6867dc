package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/procurehq/supplierscope/internal/discovery"
)

const (
	recordKeyPrefix = "supplier:"
	lockKeyPrefix   = "supplier:lock:"
	lockTTL         = 5 * time.Second
)

// Conn opens a redis client and verifies the connection.
func Conn(ctx context.Context, host, port, pass string, db int, timeout time.Duration) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        fmt.Sprintf("%s:%s", host, port),
		DialTimeout: timeout,
		Password:    pass,
		DB:          db,
	})

	pong, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, err
	}
	if pong != "PONG" {
		return nil, fmt.Errorf("expected PONG, got %s", pong)
	}
	return client, nil
}

// RedisStore backs the cache with redis so multiple pipeline instances share
// hits. Hit/miss counters are per-process.
type RedisStore struct {
	client     *redis.Client
	defaultTTL time.Duration
	hits       atomic.Int64
	misses     atomic.Int64
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, defaultTTL time.Duration) *RedisStore {
	if defaultTTL <= 0 {
		defaultTTL = 6 * time.Hour
	}
	return &RedisStore{client: client, defaultTTL: defaultTTL}
}

func (s *RedisStore) Get(ctx context.Context, key string) (*discovery.FusedRecord, error) {
	val, err := s.client.Get(ctx, recordKeyPrefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			s.misses.Add(1)
			return nil, nil
		}
		return nil, err
	}
	var rec discovery.FusedRecord
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return nil, err
	}
	s.hits.Add(1)
	return &rec, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, record *discovery.FusedRecord, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, recordKeyPrefix+key, data, ttl).Err()
}

func (s *RedisStore) Has(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, recordKeyPrefix+key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, recordKeyPrefix+key).Err()
}

func (s *RedisStore) DeleteAll(ctx context.Context, baseKey string) (int, error) {
	removed := 0
	for _, pattern := range []string{recordKeyPrefix + baseKey, recordKeyPrefix + baseKey + ":*"} {
		iter := s.client.Scan(ctx, 0, pattern, 0).Iterator()
		for iter.Next(ctx) {
			if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
				return removed, err
			}
			removed++
		}
		if err := iter.Err(); err != nil {
			return removed, err
		}
	}
	return removed, nil
}

// UpdateIfBetter takes a short SetNX lock on the key so two concurrent
// discoveries cannot both win the compare-and-swap.
func (s *RedisStore) UpdateIfBetter(ctx context.Context, key string, record *discovery.FusedRecord, ttl time.Duration) (bool, error) {
	lockKey := lockKeyPrefix + key
	ok, err := s.client.SetNX(ctx, lockKey, "1", lockTTL).Result()
	if err != nil {
		return false, err
	}
	if !ok {
		// Another writer holds the key; treat as not-better rather than
		// blocking the discovery path.
		return false, nil
	}
	defer s.client.Del(ctx, lockKey)

	existing, err := s.client.Get(ctx, recordKeyPrefix+key).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, err
	}
	if err == nil {
		var current discovery.FusedRecord
		if jsonErr := json.Unmarshal([]byte(existing), &current); jsonErr == nil {
			if current.Confidence.Overall >= record.Confidence.Overall {
				return false, nil
			}
		}
	}
	if err := s.Set(ctx, key, record, ttl); err != nil {
		return false, err
	}
	return true, nil
}

func (s *RedisStore) Scan(ctx context.Context, fn func(key string, record *discovery.FusedRecord) bool) error {
	iter := s.client.Scan(ctx, 0, recordKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		full := iter.Val()
		if len(full) >= len(lockKeyPrefix) && full[:len(lockKeyPrefix)] == lockKeyPrefix {
			continue
		}
		val, err := s.client.Get(ctx, full).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return err
		}
		var rec discovery.FusedRecord
		if err := json.Unmarshal([]byte(val), &rec); err != nil {
			continue
		}
		if !fn(full[len(recordKeyPrefix):], &rec) {
			return nil
		}
	}
	return iter.Err()
}

func (s *RedisStore) Stats() Stats {
	hits := s.hits.Load()
	misses := s.misses.Load()
	st := Stats{Hits: hits, Misses: misses}
	if total := hits + misses; total > 0 {
		st.HitRate = float64(hits) / float64(total)
	}
	return st
}

func (s *RedisStore) Len(ctx context.Context) (int, error) {
	count := 0
	iter := s.client.Scan(ctx, 0, recordKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if len(iter.Val()) >= len(lockKeyPrefix) && iter.Val()[:len(lockKeyPrefix)] == lockKeyPrefix {
			continue
		}
		count++
	}
	return count, iter.Err()
}
