package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisValidationCacheStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisValidationCacheStore(client redis.UniversalClient, prefix string) *RedisValidationCacheStore {
	if prefix == "" {
		prefix = "session_validation"
	}
	return &RedisValidationCacheStore{client: client, prefix: prefix}
}

func (s *RedisValidationCacheStore) Get(ctx context.Context, tokenHash string) (uint, bool, error) {
	if s.client == nil {
		return 0, false, nil
	}
	raw, err := s.client.Get(ctx, s.key(tokenHash)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	userID, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		// Unparseable entries are treated as misses and dropped.
		_ = s.client.Del(ctx, s.key(tokenHash)).Err()
		return 0, false, nil
	}
	return uint(userID), true, nil
}

func (s *RedisValidationCacheStore) Set(ctx context.Context, tokenHash string, userID uint, ttl time.Duration) error {
	if s.client == nil || ttl <= 0 {
		return nil
	}
	return s.client.Set(ctx, s.key(tokenHash), strconv.FormatUint(uint64(userID), 10), ttl).Err()
}

func (s *RedisValidationCacheStore) Invalidate(ctx context.Context, tokenHash string) error {
	if s.client == nil {
		return nil
	}
	return s.client.Del(ctx, s.key(tokenHash)).Err()
}

func (s *RedisValidationCacheStore) key(tokenHash string) string {
	return fmt.Sprintf("%s:%s", s.prefix, tokenHash)
}
