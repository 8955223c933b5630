package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/BaSui01/speechflow/config"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// 🧪 Manager 测试
// =============================================================================

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *Manager) {
	t.Helper()
	mr := miniredis.RunT(t)

	manager, err := NewManager(Config{
		Addr:       mr.Addr(),
		DefaultTTL: time.Minute,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })

	return mr, manager
}

func TestConfigFromApp(t *testing.T) {
	redisCfg := config.DefaultRedisConfig()
	redisCfg.Addr = "redis:6380"
	redisCfg.DB = 3
	cacheCfg := config.DefaultCacheConfig()
	cacheCfg.TTL = 10 * time.Minute

	c := ConfigFromApp(redisCfg, cacheCfg)
	assert.Equal(t, "redis:6380", c.Addr)
	assert.Equal(t, 3, c.DB)
	assert.Equal(t, 10*time.Minute, c.DefaultTTL)
	assert.Equal(t, redisCfg.PoolSize, c.PoolSize)
	assert.Equal(t, 30*time.Second, c.HealthCheckInterval)
}

func TestManager_SetAndGet(t *testing.T) {
	_, manager := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, manager.Set(ctx, "k", "v", time.Minute))

	value, err := manager.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", value)
}

func TestManager_BytesRoundTrip(t *testing.T) {
	_, manager := setupTestRedis(t)
	ctx := context.Background()

	audio := []byte{0xff, 0xf3, 0x00, 0x01, 0x80}
	require.NoError(t, manager.SetBytes(ctx, "audio", audio, 0))

	got, err := manager.GetBytes(ctx, "audio")
	require.NoError(t, err)
	assert.Equal(t, audio, got)
}

func TestManager_Miss(t *testing.T) {
	_, manager := setupTestRedis(t)

	_, err := manager.Get(context.Background(), "absent")
	assert.True(t, IsCacheMiss(err))
}

func TestManager_DefaultAndNoTTL(t *testing.T) {
	mr, manager := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, manager.Set(ctx, "default", "v", 0))
	require.NoError(t, manager.Set(ctx, "forever", "v", -1))

	assert.Equal(t, time.Minute, mr.TTL("default"))
	assert.Equal(t, time.Duration(0), mr.TTL("forever"))
}

func TestManager_TTLExpiry(t *testing.T) {
	mr, manager := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, manager.Set(ctx, "short", "v", 100*time.Millisecond))
	mr.FastForward(200 * time.Millisecond)

	_, err := manager.Get(ctx, "short")
	assert.True(t, IsCacheMiss(err))
}

func TestManager_GetDel(t *testing.T) {
	_, manager := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, manager.Set(ctx, "flag", "happy", time.Minute))

	v, err := manager.GetDel(ctx, "flag")
	require.NoError(t, err)
	assert.Equal(t, "happy", v)

	_, err = manager.GetDel(ctx, "flag")
	assert.True(t, IsCacheMiss(err))
}

func TestManager_DeleteAndExists(t *testing.T) {
	_, manager := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, manager.Set(ctx, "a", "1", time.Minute))
	require.NoError(t, manager.Set(ctx, "b", "2", time.Minute))

	n, err := manager.Exists(ctx, "a", "b", "c")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.NoError(t, manager.Delete(ctx, "a", "b"))
	n, err = manager.Exists(ctx, "a", "b")
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.NoError(t, manager.Delete(ctx))
}

func TestManager_Closed(t *testing.T) {
	_, manager := setupTestRedis(t)
	require.NoError(t, manager.Close())
	require.NoError(t, manager.Close())

	_, err := manager.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, manager.Ping(context.Background()), ErrClosed)
}

func TestManager_ConnectFailure(t *testing.T) {
	manager, err := NewManager(Config{Addr: "127.0.0.1:1"}, zap.NewNop())
	assert.Nil(t, manager)
	assert.Error(t, err)
}

func TestManager_ConcurrentOperations(t *testing.T) {
	_, manager := setupTestRedis(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			key := fmt.Sprintf("concurrent-%d", id)
			assert.NoError(t, manager.Set(ctx, key, "value", time.Minute))
			v, err := manager.Get(ctx, key)
			assert.NoError(t, err)
			assert.Equal(t, "value", v)
		}(i)
	}
	wg.Wait()
}

// =============================================================================
// 🧪 AudioCache 测试
// =============================================================================

func TestAudioCache_GetSet(t *testing.T) {
	mr, manager := setupTestRedis(t)
	ac := NewAudioCache(manager, 5*time.Minute, 16, nil)
	ctx := context.Background()

	_, ok, err := ac.Get(ctx, "speech:audio:abc")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, ac.Set(ctx, "speech:audio:abc", []byte("mp3-bytes")))
	data, ok, err := ac.Get(ctx, "speech:audio:abc")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("mp3-bytes"), data)
	assert.Equal(t, 5*time.Minute, mr.TTL("speech:audio:abc"))
}

func TestAudioCache_SkipsOversized(t *testing.T) {
	mr, manager := setupTestRedis(t)
	ac := NewAudioCache(manager, time.Minute, 4, zap.NewNop())

	require.NoError(t, ac.Set(context.Background(), "big", []byte("too large")))
	assert.False(t, mr.Exists("big"))
}
