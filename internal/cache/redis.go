package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/safelens/safelens/internal/model"
)

// RedisStore keeps each fingerprint's history in a redis list, newest entry
// at the head. Entries are never trimmed; append-only is the contract.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects a store to redis.
func NewRedisStore(cfg model.CacheConfig) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
			DB:   cfg.RedisDB,
		}),
		prefix: cfg.KeyPrefix,
	}
}

// Insert pushes the entry onto the head of its fingerprint's list.
func (s *RedisStore) Insert(ctx context.Context, entry model.CacheEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	if err := s.client.LPush(ctx, s.key(entry.Fingerprint), data).Err(); err != nil {
		return fmt.Errorf("redis lpush: %w", err)
	}
	return nil
}

// FindLatest reads the head of the fingerprint's list.
func (s *RedisStore) FindLatest(ctx context.Context, fingerprint string) (*model.CacheEntry, bool, error) {
	data, err := s.client.LIndex(ctx, s.key(fingerprint), 0).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis lindex: %w", err)
	}

	var entry model.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false, fmt.Errorf("unmarshal entry: %w", err)
	}
	return &entry, true, nil
}

// Close releases the redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) key(fingerprint string) string {
	return s.prefix + storageKey(fingerprint)
}
