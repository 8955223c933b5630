package chatmode

import (
	"context"
	"fmt"
	"time"

	"github.com/BaSui01/speechflow/internal/cache"
)

const keyPrefix = "speechflow:chat:"

// RedisStore 基于 Redis 的标记存储，多实例共享
type RedisStore struct {
	cache *cache.Manager
	ttl   time.Duration
}

// NewRedisStore creates a store backed by m. Pending marks expire after ttl.
func NewRedisStore(m *cache.Manager, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = -1
	}
	return &RedisStore{cache: m, ttl: ttl}
}

func pendingKey(chatID string) string { return fmt.Sprintf("%s%s:pending", keyPrefix, chatID) }
func alwaysKey(chatID string) string  { return fmt.Sprintf("%s%s:always", keyPrefix, chatID) }

func (s *RedisStore) MarkPending(ctx context.Context, chatID, emotion string) error {
	return s.cache.Set(ctx, pendingKey(chatID), normalizeEmotion(emotion), s.ttl)
}

func (s *RedisStore) ConsumePending(ctx context.Context, chatID string) (bool, string, error) {
	emotion, err := s.cache.GetDel(ctx, pendingKey(chatID))
	if cache.IsCacheMiss(err) {
		return false, "", nil
	}
	if err != nil {
		return false, "", err
	}
	return true, emotion, nil
}

func (s *RedisStore) SetAlways(ctx context.Context, chatID string, on bool) error {
	if !on {
		return s.cache.Delete(ctx, alwaysKey(chatID))
	}
	return s.cache.Set(ctx, alwaysKey(chatID), "1", -1)
}

func (s *RedisStore) IsAlways(ctx context.Context, chatID string) (bool, error) {
	n, err := s.cache.Exists(ctx, alwaysKey(chatID))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
