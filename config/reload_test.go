package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeConfig(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
}

func TestReloader_ReloadNotifiesCallbacks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "minimax:\n  rate_limit_rpm: 30\n")

	loader := NewLoader().WithConfigPath(path)
	cfg, err := loader.Load()
	require.NoError(t, err)

	r := NewReloader(path, loader, cfg, WithReloadLogger(zap.NewNop()))

	var gotOld, gotNew int
	r.OnReload(func(old, updated *Config) {
		gotOld = old.MiniMax.RateLimitRPM
		gotNew = updated.MiniMax.RateLimitRPM
	})

	writeConfig(t, path, "minimax:\n  rate_limit_rpm: 90\n")
	require.NoError(t, r.Reload())

	assert.Equal(t, 30, gotOld)
	assert.Equal(t, 90, gotNew)
	assert.Equal(t, 90, r.Current().MiniMax.RateLimitRPM)
}

func TestReloader_InvalidConfigKeepsPrevious(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "minimax:\n  rate_limit_rpm: 30\n")

	loader := NewLoader().WithConfigPath(path)
	cfg, err := loader.Load()
	require.NoError(t, err)

	r := NewReloader(path, loader, cfg)
	called := false
	r.OnReload(func(_, _ *Config) { called = true })

	writeConfig(t, path, "minimax:\n  rate_limit_rpm: -5\n")
	assert.Error(t, r.Reload())
	assert.False(t, called)
	assert.Equal(t, 30, r.Current().MiniMax.RateLimitRPM)
}

func TestReloader_PollsFileChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "log:\n  level: info\n")

	loader := NewLoader().WithConfigPath(path)
	cfg, err := loader.Load()
	require.NoError(t, err)

	r := NewReloader(path, loader, cfg,
		WithPollInterval(10*time.Millisecond),
		WithDebounceDelay(10*time.Millisecond))

	var mu sync.Mutex
	var level string
	r.OnReload(func(_, updated *Config) {
		mu.Lock()
		level = updated.Log.Level
		mu.Unlock()
	})

	require.NoError(t, r.Start(context.Background()))
	defer r.Stop()
	assert.Error(t, r.Start(context.Background()))

	writeConfig(t, path, "log:\n  level: debug\n")
	// 确保修改时间前进
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return level == "debug"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestReloader_StopIdempotent(t *testing.T) {
	r := NewReloader(filepath.Join(t.TempDir(), "missing.yaml"), nil, DefaultConfig())
	r.Stop()
	require.NoError(t, r.Start(context.Background()))
	r.Stop()
	r.Stop()
}
