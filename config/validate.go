package config

import (
	"fmt"
	"strings"
)

// Validate 验证配置的结构性约束。
// 合成参数的取值范围由 speech 包在构造默认请求时校验。
func (c *Config) Validate() error {
	var errs []string

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}
	if c.Server.MetricsPort < 0 || c.Server.MetricsPort > 65535 {
		errs = append(errs, "invalid metrics port")
	}

	m := c.MiniMax
	if m.Timeout <= 0 {
		errs = append(errs, "minimax.timeout must be positive")
	}
	if m.MaxRetries < 0 {
		errs = append(errs, "minimax.max_retries must not be negative")
	}
	if m.RetryDelay < 0 {
		errs = append(errs, "minimax.retry_delay must not be negative")
	}
	if m.RateLimitRPM < 0 {
		errs = append(errs, "minimax.rate_limit_rpm must not be negative")
	}
	if m.MaxTextLength <= 0 {
		errs = append(errs, "minimax.max_text_length must be positive")
	}
	if m.AsyncEnabled {
		if m.AsyncThreshold <= 0 {
			errs = append(errs, "minimax.async_threshold must be positive")
		}
		if m.AsyncPollInterval <= 0 {
			errs = append(errs, "minimax.async_poll_interval must be positive")
		}
		if m.AsyncMaxWait <= 0 {
			errs = append(errs, "minimax.async_max_wait must be positive")
		}
		if m.AsyncMaxTextLength < m.AsyncThreshold {
			errs = append(errs, "minimax.async_max_text_length must be >= async_threshold")
		}
	}

	vc := c.VoiceClone
	if vc.Accuracy < 0 || vc.Accuracy > 1 {
		errs = append(errs, "voice_clone.accuracy must be between 0 and 1")
	}
	if vc.ExpiryWarnDays < 0 {
		errs = append(errs, "voice_clone.expiry_warn_days must not be negative")
	}

	if p := c.Chat.RandomVoiceProbability; p < 0 || p > 1 {
		errs = append(errs, "chat.random_voice_probability must be between 0 and 1")
	}

	if t := c.Telemetry; t.Enabled {
		if t.OTLPEndpoint == "" {
			errs = append(errs, "telemetry.otlp_endpoint is required when telemetry is enabled")
		}
		if t.SampleRate < 0 {
			errs = append(errs, "telemetry.sample_rate must not be negative")
		}
	}

	switch c.Database.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("unsupported database driver %q", c.Database.Driver))
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("invalid log level %q", c.Log.Level))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
