// =============================================================================
// 📦 speechflow 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:     DefaultServerConfig(),
		MiniMax:    DefaultMiniMaxConfig(),
		VoiceClone: DefaultVoiceCloneConfig(),
		Audio:      DefaultAudioConfig(),
		Chat:       DefaultChatConfig(),
		Cache:      DefaultCacheConfig(),
		Redis:      DefaultRedisConfig(),
		Database:   DefaultDatabaseConfig(),
		Log:        DefaultLogConfig(),
		Telemetry:  DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    6 * time.Minute,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    20,
		RateLimitBurst:  40,
	}
}

// DefaultMiniMaxConfig 返回默认 MiniMax 配置
func DefaultMiniMaxConfig() MiniMaxConfig {
	return MiniMaxConfig{
		BaseURL:       "https://api.minimaxi.com",
		Timeout:       30 * time.Second,
		Model:         "speech-2.8-hd",
		Speed:         1.0,
		Vol:           1.0,
		Pitch:         0,
		LanguageBoost: "auto",
		OutputFormat:  "hex",

		SampleRate: 32000,
		Bitrate:    128000,
		Format:     "mp3",
		Channel:    1,

		MaxTextLength: 10000,

		MaxRetries:   3,
		RetryDelay:   time.Second,
		RateLimitRPM: 60,

		StreamEnabled:      false,
		AsyncEnabled:       false,
		AsyncThreshold:     5000,
		AsyncMaxTextLength: 1000000,
		AsyncPollInterval:  2 * time.Second,
		AsyncMaxWait:       5 * time.Minute,
	}
}

// DefaultVoiceCloneConfig 返回默认音色克隆配置
func DefaultVoiceCloneConfig() VoiceCloneConfig {
	return VoiceCloneConfig{
		DemoText:            "",
		DemoModel:           "speech-2.8-hd",
		NoiseReduction:      false,
		VolumeNormalization: false,
		Accuracy:            0.7,
		ExpiryWarnDays:      6,
		BatchConcurrency:    2,
		TestText:            "你好，这是一段音色测试语音。",
	}
}

// DefaultAudioConfig 返回默认音频目录配置
func DefaultAudioConfig() AudioConfig {
	return AudioConfig{
		Dir:             "voice_audios",
		CacheDir:        "data/audio_cache",
		CacheMaxAge:     24 * time.Hour,
		CleanupInterval: time.Hour,
		MaxUploadBytes:  20 * 1024 * 1024,
	}
}

// DefaultChatConfig 返回默认会话配置
func DefaultChatConfig() ChatConfig {
	return ChatConfig{
		RandomVoiceProbability: 0,
		FlagTTL:                24 * time.Hour,
		UseRedis:               false,
	}
}

// DefaultCacheConfig 返回默认缓存配置
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:       false,
		TTL:           time.Hour,
		MaxEntryBytes: 4 * 1024 * 1024,
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// DefaultDatabaseConfig 返回默认数据库配置
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "sqlite",
		Host:            "localhost",
		Port:            5432,
		User:            "speechflow",
		Password:        "",
		Name:            "data/speechflow.db",
		SSLMode:         "disable",
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
		AutoMigrate:     true,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:        false,
		OTLPEndpoint:   "localhost:4317",
		ServiceName:    "speechflow",
		SampleRate:     0.1,
		Environment:    "development",
		Insecure:       true,
		MetricInterval: 60 * time.Second,
	}
}
