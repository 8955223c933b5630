// =============================================================================
// 📦 speechflow 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("SPEECHFLOW").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 speechflow 的完整配置结构
type Config struct {
	// Server 服务器配置
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// MiniMax 语音合成配置
	MiniMax MiniMaxConfig `yaml:"minimax" env:"MINIMAX"`

	// VoiceClone 音色克隆配置
	VoiceClone VoiceCloneConfig `yaml:"voice_clone" env:"VOICE_CLONE"`

	// Audio 本地音频目录与缓存
	Audio AudioConfig `yaml:"audio" env:"AUDIO"`

	// Chat 会话语音回复配置
	Chat ChatConfig `yaml:"chat" env:"CHAT"`

	// Cache 合成结果缓存
	Cache CacheConfig `yaml:"cache" env:"CACHE"`

	// Redis 缓存配置
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// Database 数据库配置
	Database DatabaseConfig `yaml:"database" env:"DATABASE"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	// HTTP 端口
	HTTPPort int `yaml:"http_port" env:"HTTP_PORT"`
	// Metrics 端口
	MetricsPort int `yaml:"metrics_port" env:"METRICS_PORT"`
	// 读取超时
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// 写入超时（流式响应需要足够长）
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// 优雅关闭超时
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// API Key 列表，为空时不启用认证
	APIKeys []string `yaml:"api_keys" env:"API_KEYS"`
	// 是否允许通过 query 参数传递 API Key
	AllowQueryAPIKey bool `yaml:"allow_query_api_key" env:"ALLOW_QUERY_API_KEY"`
	// JWT HMAC 密钥，为空时不启用 JWT 认证
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`
	// 每个客户端每秒请求数
	RateLimitRPS int `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	// 突发容量
	RateLimitBurst int `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	// CORS 允许的来源
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS"`
	// TLS 证书与私钥，均设置时以 HTTPS 启动
	TLSCertFile string `yaml:"tls_cert_file" env:"TLS_CERT_FILE"`
	TLSKeyFile  string `yaml:"tls_key_file" env:"TLS_KEY_FILE"`
}

// MiniMaxConfig MiniMax 接口、合成默认值与弹性参数
type MiniMaxConfig struct {
	// ---- 接口 ----
	APIKey  string        `yaml:"api_key" env:"API_KEY"`
	GroupID string        `yaml:"group_id" env:"GROUP_ID"`
	BaseURL string        `yaml:"base_url" env:"BASE_URL"`
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`

	// ---- 模型与音色 ----
	Model         string  `yaml:"model" env:"MODEL"`
	VoiceID       string  `yaml:"voice_id" env:"VOICE_ID"`
	Speed         float64 `yaml:"speed" env:"SPEED"`
	Vol           float64 `yaml:"vol" env:"VOL"`
	Pitch         int     `yaml:"pitch" env:"PITCH"`
	Emotion       string  `yaml:"emotion" env:"EMOTION"`
	LanguageBoost string  `yaml:"language_boost" env:"LANGUAGE_BOOST"`
	OutputFormat  string  `yaml:"output_format" env:"OUTPUT_FORMAT"`

	// ---- 音质 ----
	SampleRate int    `yaml:"sample_rate" env:"SAMPLE_RATE"`
	Bitrate    int    `yaml:"bitrate" env:"BITRATE"`
	Format     string `yaml:"format" env:"FORMAT"`
	Channel    int    `yaml:"channel" env:"CHANNEL"`

	// ---- 音效 ----
	SoundEffect     string `yaml:"sound_effect" env:"SOUND_EFFECT"`
	ModifyPitch     int    `yaml:"modify_pitch" env:"MODIFY_PITCH"`
	ModifyIntensity int    `yaml:"modify_intensity" env:"MODIFY_INTENSITY"`
	ModifyTimbre    int    `yaml:"modify_timbre" env:"MODIFY_TIMBRE"`

	// ---- 文本处理 ----
	TrailingPause        float64           `yaml:"trailing_pause" env:"TRAILING_PAUSE"`
	TextNormalization    bool              `yaml:"text_normalization" env:"TEXT_NORMALIZATION"`
	EnglishNormalization bool              `yaml:"english_normalization" env:"ENGLISH_NORMALIZATION"`
	LatexRead            bool              `yaml:"latex_read" env:"LATEX_READ"`
	PronunciationDict    map[string]string `yaml:"pronunciation_dict" env:"PRONUNCIATION_DICT"`
	MaxTextLength        int               `yaml:"max_text_length" env:"MAX_TEXT_LENGTH"`

	// ---- 背景音 ----
	AudioMix []AudioMixConfig `yaml:"audio_mix" env:"-"`

	// ---- 弹性 ----
	MaxRetries   int           `yaml:"max_retries" env:"MAX_RETRIES"`
	RetryDelay   time.Duration `yaml:"retry_delay" env:"RETRY_DELAY"`
	RateLimitRPM int           `yaml:"rate_limit_rpm" env:"RATE_LIMIT_RPM"`

	// ---- 合成模式 ----
	StreamEnabled      bool          `yaml:"stream_enabled" env:"STREAM_ENABLED"`
	AsyncEnabled       bool          `yaml:"async_enabled" env:"ASYNC_ENABLED"`
	AsyncThreshold     int           `yaml:"async_threshold" env:"ASYNC_THRESHOLD"`
	AsyncMaxTextLength int           `yaml:"async_max_text_length" env:"ASYNC_MAX_TEXT_LENGTH"`
	AsyncPollInterval  time.Duration `yaml:"async_poll_interval" env:"ASYNC_POLL_INTERVAL"`
	AsyncMaxWait       time.Duration `yaml:"async_max_wait" env:"ASYNC_MAX_WAIT"`
}

// AudioMixConfig 背景音配置
type AudioMixConfig struct {
	URL     string  `yaml:"url"`
	Volume  float64 `yaml:"volume"`
	StartMS int     `yaml:"start_ms"`
	EndMS   int     `yaml:"end_ms"`
	Loop    bool    `yaml:"loop"`
}

// VoiceCloneConfig 音色克隆配置
type VoiceCloneConfig struct {
	// 克隆时合成试听音频的文本
	DemoText string `yaml:"demo_text" env:"DEMO_TEXT"`
	// 试听音频使用的模型
	DemoModel string `yaml:"demo_model" env:"DEMO_MODEL"`
	// 降噪
	NoiseReduction bool `yaml:"noise_reduction" env:"NOISE_REDUCTION"`
	// 音量归一化
	VolumeNormalization bool `yaml:"volume_normalization" env:"VOLUME_NORMALIZATION"`
	// 相似度阈值
	Accuracy float64 `yaml:"accuracy" env:"ACCURACY"`
	// 未使用音色过期提醒天数
	ExpiryWarnDays int `yaml:"expiry_warn_days" env:"EXPIRY_WARN_DAYS"`
	// 批量克隆并发度
	BatchConcurrency int `yaml:"batch_concurrency" env:"BATCH_CONCURRENCY"`
	// 测试音色的默认文本
	TestText string `yaml:"test_text" env:"TEST_TEXT"`
}

// AudioConfig 本地音频目录配置
type AudioConfig struct {
	// 源音频根目录（包含 main/ 与 prompts/）
	Dir string `yaml:"dir" env:"DIR"`
	// 合成音频缓存目录
	CacheDir string `yaml:"cache_dir" env:"CACHE_DIR"`
	// 缓存文件最大保留时间
	CacheMaxAge time.Duration `yaml:"cache_max_age" env:"CACHE_MAX_AGE"`
	// 清理间隔
	CleanupInterval time.Duration `yaml:"cleanup_interval" env:"CLEANUP_INTERVAL"`
	// 单个源文件最大字节数
	MaxUploadBytes int64 `yaml:"max_upload_bytes" env:"MAX_UPLOAD_BYTES"`
}

// ChatConfig 会话语音回复配置
type ChatConfig struct {
	// 随机触发语音回复的概率 [0,1]
	RandomVoiceProbability float64 `yaml:"random_voice_probability" env:"RANDOM_VOICE_PROBABILITY"`
	// 会话标记过期时间
	FlagTTL time.Duration `yaml:"flag_ttl" env:"FLAG_TTL"`
	// 是否使用 Redis 存储会话标记
	UseRedis bool `yaml:"use_redis" env:"USE_REDIS"`
}

// CacheConfig 合成结果缓存配置
type CacheConfig struct {
	Enabled bool          `yaml:"enabled" env:"ENABLED"`
	TTL     time.Duration `yaml:"ttl" env:"TTL"`
	// 单条缓存最大字节数，超过不缓存
	MaxEntryBytes int `yaml:"max_entry_bytes" env:"MAX_ENTRY_BYTES"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// 地址
	Addr string `yaml:"addr" env:"ADDR"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库编号
	DB int `yaml:"db" env:"DB"`
	// 连接池大小
	PoolSize int `yaml:"pool_size" env:"POOL_SIZE"`
	// 最小空闲连接
	MinIdleConns int `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
	// 启用 TLS
	TLS bool `yaml:"tls" env:"TLS"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// 驱动类型: postgres, mysql, sqlite
	Driver string `yaml:"driver" env:"DRIVER"`
	// 主机
	Host string `yaml:"host" env:"HOST"`
	// 端口
	Port int `yaml:"port" env:"PORT"`
	// 用户名
	User string `yaml:"user" env:"USER"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库名（sqlite 时为文件路径）
	Name string `yaml:"name" env:"NAME"`
	// SSL 模式
	SSLMode string `yaml:"ssl_mode" env:"SSL_MODE"`
	// 最大连接数
	MaxOpenConns int `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	// 最大空闲连接
	MaxIdleConns int `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	// 连接最大生命周期
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
	// 启动时自动执行迁移
	AutoMigrate bool `yaml:"auto_migrate" env:"AUTO_MIGRATE"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率，>= 1 时全量采样
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
	// 部署环境，写入 deployment.environment 资源属性
	Environment string `yaml:"environment" env:"ENVIRONMENT"`
	// 明文连接 collector；关闭时使用 TLS
	Insecure bool `yaml:"insecure" env:"INSECURE"`
	// 指标导出周期
	MetricInterval time.Duration `yaml:"metric_interval" env:"METRIC_INTERVAL"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "SPEECHFLOW",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在，使用默认值
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv 从环境变量加载配置
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct && field.Type() != reflect.TypeOf(time.Time{}) {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue, ok := os.LookupEnv(envKey)
		if !ok || envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// 特殊处理 time.Duration，允许纯数字表示秒
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := parseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(u)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 支持逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}

	case reflect.Map:
		// 支持 "k1=v1,k2=v2" 形式的字符串映射
		if field.Type().Key().Kind() == reflect.String && field.Type().Elem().Kind() == reflect.String {
			m := make(map[string]string)
			for _, pair := range strings.Split(value, ",") {
				k, val, ok := strings.Cut(pair, "=")
				if !ok {
					return fmt.Errorf("invalid map entry %q", pair)
				}
				m[strings.TrimSpace(k)] = strings.TrimSpace(val)
			}
			field.Set(reflect.ValueOf(m))
		}
	}

	return nil
}

// parseDuration 解析时长，纯数字按秒处理
func parseDuration(value string) (time.Duration, error) {
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(f * float64(time.Second)), nil
	}
	return time.ParseDuration(value)
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// MustLoad 加载配置，失败时 panic
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// LoadFromEnv 仅从环境变量加载配置
func LoadFromEnv() (*Config, error) {
	return NewLoader().Load()
}

// DSN 返回数据库连接字符串
func (d *DatabaseConfig) DSN() string {
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
		)
	case "mysql":
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true",
			d.User, d.Password, d.Host, d.Port, d.Name,
		)
	case "sqlite":
		return d.Name
	default:
		return ""
	}
}
