package cache

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// AudioCache 以 Redis 缓存合成音频，超过 maxBytes 的结果不缓存
type AudioCache struct {
	manager  *Manager
	ttl      time.Duration
	maxBytes int
	logger   *zap.Logger
}

// NewAudioCache creates an audio cache on top of m.
func NewAudioCache(m *Manager, ttl time.Duration, maxBytes int, logger *zap.Logger) *AudioCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AudioCache{manager: m, ttl: ttl, maxBytes: maxBytes, logger: logger}
}

// Get 读取缓存音频；未命中返回 ok=false 且无错误
func (c *AudioCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.manager.GetBytes(ctx, key)
	if IsCacheMiss(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Set 写入缓存音频
func (c *AudioCache) Set(ctx context.Context, key string, data []byte) error {
	if c.maxBytes > 0 && len(data) > c.maxBytes {
		c.logger.Debug("audio too large to cache", zap.Int("bytes", len(data)), zap.Int("max", c.maxBytes))
		return nil
	}
	return c.manager.SetBytes(ctx, key, data, c.ttl)
}
