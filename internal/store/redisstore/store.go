// Package redisstore wraps the few Redis primitives the app needs:
// debounce locks and unlock-attempt throttling.
package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Store struct {
	rdb *redis.Client
}

func New(addr, password string, db int) *Store {
	return &Store{rdb: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Debounce returns true when the caller won the debounce window for key.
// Until the TTL expires every other caller gets false.
func (s *Store) Debounce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.rdb.SetNX(ctx, "debounce:"+key, 1, ttl).Result()
}

// CountAttempt bumps a rolling attempt counter and reports the new total.
// The window starts with the first attempt.
func (s *Store) CountAttempt(ctx context.Context, key string, window time.Duration) (int64, error) {
	k := fmt.Sprintf("attempts:%s", key)
	n, err := s.rdb.Incr(ctx, k).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 {
		if err := s.rdb.Expire(ctx, k, window).Err(); err != nil {
			return n, err
		}
	}
	return n, nil
}

func (s *Store) ResetAttempts(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, fmt.Sprintf("attempts:%s", key)).Err()
}
