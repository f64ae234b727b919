package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	keyPrefix       = "cache:"
	syncCompleteKey = "bridge:sync_complete"
)

// ErrCacheMiss is returned by Get when the key is absent.
var ErrCacheMiss = errors.New("cache miss")

// Service is a JSON cache-aside layer over Redis. A Redis outage is
// never fatal to a read path: GetOrSet falls through to the loader and
// Get reports a miss.
type Service struct {
	rdb    *redis.Client
	logger *logrus.Logger
}

// NewService wraps an existing Redis client.
func NewService(rdb *redis.Client, logger *logrus.Logger) *Service {
	return &Service{rdb: rdb, logger: logger}
}

func cacheKey(key string) string {
	return keyPrefix + key
}

// Get loads the value at key into dest. Returns ErrCacheMiss when the
// key is absent or Redis is unreachable.
func (s *Service) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := s.rdb.Get(ctx, cacheKey(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.WithError(err).WithField("key", key).Warn("cache get failed")
		}
		return ErrCacheMiss
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to decode cached value for %s: %w", key, err)
	}
	return nil
}

// Set stores value at key with the given TTL.
func (s *Service) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode value for %s: %w", key, err)
	}
	if err := s.rdb.Set(ctx, cacheKey(key), data, ttl).Err(); err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("cache set failed")
		return err
	}
	return nil
}

// Delete removes one key.
func (s *Service) Delete(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, cacheKey(key)).Err()
}

// DeletePattern removes every key matching the glob pattern, scanning
// in batches to avoid blocking Redis.
func (s *Service) DeletePattern(ctx context.Context, pattern string) (int64, error) {
	var deleted int64
	iter := s.rdb.Scan(ctx, 0, cacheKey(pattern), 100).Iterator()
	batch := make([]string, 0, 100)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 100 {
			n, err := s.rdb.Del(ctx, batch...).Result()
			if err != nil {
				return deleted, err
			}
			deleted += n
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, err
	}
	if len(batch) > 0 {
		n, err := s.rdb.Del(ctx, batch...).Result()
		if err != nil {
			return deleted, err
		}
		deleted += n
	}
	return deleted, nil
}

// Exists reports whether the key is present.
func (s *Service) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Exists(ctx, cacheKey(key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetOrSet returns the cached value at key, or calls loader and caches
// its result. Cache failures degrade to calling the loader directly.
func (s *Service) GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, loader func() (interface{}, error)) error {
	if err := s.Get(ctx, key, dest); err == nil {
		return nil
	}

	value, err := loader()
	if err != nil {
		return err
	}

	// Best effort: a failed write just means the next reader loads again.
	_ = s.Set(ctx, key, value, ttl)

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode loaded value for %s: %w", key, err)
	}
	return json.Unmarshal(data, dest)
}

// SetSyncComplete records whether the bridge worker has finished its
// initial sync. The flag has no TTL; the worker owns its lifecycle.
func (s *Service) SetSyncComplete(ctx context.Context, complete bool) error {
	value := "0"
	if complete {
		value = "1"
	}
	return s.rdb.Set(ctx, syncCompleteKey, value, 0).Err()
}

// IsSyncComplete reports whether the initial bridge sync has finished.
// An unreachable Redis reads as not complete.
func (s *Service) IsSyncComplete(ctx context.Context) bool {
	value, err := s.rdb.Get(ctx, syncCompleteKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.WithError(err).Warn("failed to read sync flag")
		}
		return false
	}
	return value == "1"
}
