package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_ContainsAllSubConfigs(t *testing.T) {
	cfg := DefaultConfig()
	require.NotNil(t, cfg)

	assert.NotEqual(t, ServerConfig{}, cfg.Server)
	assert.NotEqual(t, VoiceCloneConfig{}, cfg.VoiceClone)
	assert.NotEqual(t, AudioConfig{}, cfg.Audio)
	assert.NotEqual(t, ChatConfig{}, cfg.Chat)
	assert.NotEqual(t, CacheConfig{}, cfg.Cache)
	assert.NotEqual(t, RedisConfig{}, cfg.Redis)
	assert.NotEqual(t, DatabaseConfig{}, cfg.Database)
	assert.NotEqual(t, TelemetryConfig{}, cfg.Telemetry)
	assert.NotEmpty(t, cfg.MiniMax.BaseURL)
	assert.NotEmpty(t, cfg.Log.OutputPaths)
}

func TestDefaultMiniMaxConfig(t *testing.T) {
	cfg := DefaultMiniMaxConfig()

	assert.Equal(t, "https://api.minimaxi.com", cfg.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, "speech-2.8-hd", cfg.Model)
	assert.InDelta(t, 1.0, cfg.Speed, 1e-9)
	assert.InDelta(t, 1.0, cfg.Vol, 1e-9)
	assert.Equal(t, "auto", cfg.LanguageBoost)
	assert.Equal(t, "hex", cfg.OutputFormat)

	assert.Equal(t, 32000, cfg.SampleRate)
	assert.Equal(t, 128000, cfg.Bitrate)
	assert.Equal(t, "mp3", cfg.Format)
	assert.Equal(t, 1, cfg.Channel)

	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, time.Second, cfg.RetryDelay)
	assert.Equal(t, 60, cfg.RateLimitRPM)
	assert.Equal(t, 10000, cfg.MaxTextLength)

	assert.False(t, cfg.AsyncEnabled)
	assert.False(t, cfg.StreamEnabled)
	assert.Equal(t, 5000, cfg.AsyncThreshold)
	assert.Equal(t, 2*time.Second, cfg.AsyncPollInterval)
	assert.Equal(t, 5*time.Minute, cfg.AsyncMaxWait)
}

func TestDefaultVoiceCloneConfig(t *testing.T) {
	cfg := DefaultVoiceCloneConfig()
	assert.InDelta(t, 0.7, cfg.Accuracy, 1e-9)
	assert.Equal(t, 6, cfg.ExpiryWarnDays)
	assert.Equal(t, 2, cfg.BatchConcurrency)
	assert.NotEmpty(t, cfg.TestText)
}

func TestDefaultAudioConfig(t *testing.T) {
	cfg := DefaultAudioConfig()
	assert.Equal(t, "voice_audios", cfg.Dir)
	assert.Equal(t, 24*time.Hour, cfg.CacheMaxAge)
	assert.Equal(t, int64(20*1024*1024), cfg.MaxUploadBytes)
}

func TestDefaultDatabaseConfig(t *testing.T) {
	cfg := DefaultDatabaseConfig()
	assert.Equal(t, "sqlite", cfg.Driver)
	assert.True(t, cfg.AutoMigrate)
	assert.Equal(t, "data/speechflow.db", cfg.DSN())
}
