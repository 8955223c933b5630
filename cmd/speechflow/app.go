package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/BaSui01/speechflow/config"
	"github.com/BaSui01/speechflow/internal/cache"
	"github.com/BaSui01/speechflow/internal/database"
	"github.com/BaSui01/speechflow/internal/metrics"
	"github.com/BaSui01/speechflow/internal/migration"
	"github.com/BaSui01/speechflow/speech"
	"github.com/BaSui01/speechflow/speech/async"
	"github.com/BaSui01/speechflow/speech/audiostore"
	"github.com/BaSui01/speechflow/speech/chatmode"
	"github.com/BaSui01/speechflow/speech/gate"
	"github.com/BaSui01/speechflow/speech/minimax"
	"github.com/BaSui01/speechflow/speech/orchestrator"
	"github.com/BaSui01/speechflow/speech/ratelimit"
	"github.com/BaSui01/speechflow/speech/retry"
	"github.com/BaSui01/speechflow/speech/voiceclone"
	"go.uber.org/zap"
)

// =============================================================================
// 🧩 组件装配
// =============================================================================

// defaultMetricsNamespace Prometheus 指标前缀
const defaultMetricsNamespace = "speechflow"

// App 持有进程内所有共享组件。限流器与 HTTP 连接池在所有请求间共享，
// 因此每分钟请求上限对整个进程生效。
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	collector *metrics.Collector
	pool      *database.PoolManager
	cache     *cache.Manager // 未配置 Redis 或连接失败时为 nil

	limiter      *ratelimit.Limiter
	client       *minimax.Client
	defaults     speech.Defaults
	orchestrator *orchestrator.Orchestrator
	audio        *audiostore.Store
	voices       *voiceclone.Manager
	chatStore    chatmode.Store
	responder    *chatmode.Responder
}

type appOptions struct {
	namespace string
}

// AppOption configures NewApp
type AppOption func(*appOptions)

// WithMetricsNamespace overrides the Prometheus namespace.
func WithMetricsNamespace(ns string) AppOption {
	return func(o *appOptions) { o.namespace = ns }
}

// NewApp builds every component from cfg. Callers must Close the app.
func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...AppOption) (app *App, err error) {
	o := appOptions{namespace: defaultMetricsNamespace}
	for _, opt := range opts {
		opt(&o)
	}

	defaults := speech.DefaultsFromConfig(cfg.MiniMax)
	if err := defaults.Check(); err != nil {
		return nil, fmt.Errorf("invalid synthesis defaults: %w", err)
	}

	app = &App{
		cfg:       cfg,
		logger:    logger,
		defaults:  defaults,
		collector: metrics.NewCollector(o.namespace, logger),
	}
	defer func() {
		if err != nil {
			_ = app.Close()
		}
	}()

	if err = app.openDatabase(ctx); err != nil {
		return nil, err
	}
	app.openCache()

	app.client, err = minimax.NewClient(minimax.ConfigFromApp(cfg.MiniMax), minimax.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("create minimax client: %w", err)
	}

	app.limiter = ratelimit.New(cfg.MiniMax.RateLimitRPM,
		ratelimit.WithObserver(app.collector.ObserveRateLimitWait),
		ratelimit.WithLogger(logger),
	)
	policy := retry.NewPolicy(cfg.MiniMax.MaxRetries, cfg.MiniMax.RetryDelay)
	policy.OnRetry = app.collector.ObserveRetry
	retryer := retry.NewBackoffRetryer(policy, logger)
	g := gate.New(app.limiter, retryer,
		gate.WithCallObserver(app.collector.ObserveProviderCall),
		gate.WithLogger(logger),
	)
	poller := async.NewPoller(app.client, g, cfg.MiniMax.AsyncPollInterval, cfg.MiniMax.AsyncMaxWait,
		async.WithObserver(app.collector),
		async.WithLogger(logger),
	)

	orchOpts := []orchestrator.Option{
		orchestrator.WithRecorder(app.collector),
		orchestrator.WithVoiceUsage(app.touchVoice),
		orchestrator.WithLogger(logger),
	}
	if cfg.Cache.Enabled && app.cache != nil {
		orchOpts = append(orchOpts, orchestrator.WithCache(
			cache.NewAudioCache(app.cache, cfg.Cache.TTL, cfg.Cache.MaxEntryBytes, logger)))
	}
	app.orchestrator = orchestrator.New(app.client, g, poller, orchestrator.Limits{
		Modes:              speech.ModeOptionsFromConfig(cfg.MiniMax),
		MaxTextLength:      cfg.MiniMax.MaxTextLength,
		AsyncMaxTextLength: cfg.MiniMax.AsyncMaxTextLength,
	}, orchOpts...)

	app.audio = audiostore.New(cfg.Audio, logger)
	app.voices = voiceclone.NewManager(
		app.client,
		g,
		voiceclone.NewGormStore(app.pool.DB()),
		app.audio,
		app.orchestrator,
		defaults,
		voiceclone.OptionsFromConfig(cfg.VoiceClone),
		logger,
	)
	app.voices.SetCloneObserver(app.collector.RecordVoiceClone)

	if cfg.Chat.UseRedis && app.cache != nil {
		app.chatStore = chatmode.NewRedisStore(app.cache, cfg.Chat.FlagTTL)
	} else {
		app.chatStore = chatmode.NewMemoryStore(cfg.Chat.FlagTTL)
	}
	app.responder = chatmode.NewResponder(
		chatmode.NewDecider(app.chatStore, cfg.Chat.RandomVoiceProbability),
		app.orchestrator,
		defaults,
		logger,
	)

	logger.Info("components ready",
		zap.Int("rate_limit_rpm", cfg.MiniMax.RateLimitRPM),
		zap.Bool("cache", app.cache != nil && cfg.Cache.Enabled),
		zap.Bool("redis_chat_store", cfg.Chat.UseRedis && app.cache != nil),
		zap.String("audio_dir", app.audio.Dir()),
	)
	return app, nil
}

// openDatabase 打开连接池，按需执行迁移
func (a *App) openDatabase(ctx context.Context) error {
	db, err := database.Open(a.cfg.Database, a.logger)
	if err != nil {
		return err
	}
	driver := a.cfg.Database.Driver
	a.pool, err = database.NewPoolManager(db, database.PoolConfigFromApp(a.cfg.Database), a.logger,
		database.WithStatsObserver(func(s sql.DBStats) {
			a.collector.RecordDBConnections(driver, s.OpenConnections, s.Idle)
		}),
	)
	if err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
		return err
	}
	a.logger.Info("database connected", zap.String("driver", driver))

	if a.cfg.Database.AutoMigrate {
		if err := runMigrations(ctx, a.cfg.Database, a.logger); err != nil {
			return err
		}
	}
	return nil
}

// openCache Redis 不可用时降级为无缓存与内存会话标记
func (a *App) openCache() {
	if !a.cfg.Cache.Enabled && !a.cfg.Chat.UseRedis {
		return
	}
	m, err := cache.NewManager(cache.ConfigFromApp(a.cfg.Redis, a.cfg.Cache), a.logger)
	if err != nil {
		a.logger.Warn("redis not available, falling back to in-memory state", zap.Error(err))
		return
	}
	a.cache = m
}

// touchVoice 合成成功后刷新克隆音色的使用时间
func (a *App) touchVoice(ctx context.Context, voiceID string) {
	if a.voices != nil {
		a.voices.Touch(ctx, voiceID)
	}
}

// applyReload 应用可热更新的配置项
func (a *App) applyReload(old, updated *config.Config) {
	if old.MiniMax.RateLimitRPM != updated.MiniMax.RateLimitRPM {
		a.limiter.SetRPM(updated.MiniMax.RateLimitRPM)
		a.logger.Info("rate limit updated",
			zap.Int("old_rpm", old.MiniMax.RateLimitRPM),
			zap.Int("new_rpm", updated.MiniMax.RateLimitRPM),
		)
	}
}

// Close releases the database pool and the Redis client.
func (a *App) Close() error {
	var errs []error
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
	}
	if a.pool != nil {
		errs = append(errs, a.pool.Close())
	}
	return errors.Join(errs...)
}

// runMigrations 执行全部待执行的迁移
func runMigrations(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) error {
	m, err := migration.NewMigratorFromDatabaseConfig(cfg, logger)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(ctx); err != nil {
		return err
	}
	version, dirty, err := m.Version(ctx)
	if err != nil {
		return err
	}
	logger.Info("database migrated", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}
