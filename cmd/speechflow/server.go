package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/BaSui01/speechflow/api/handlers"
	"github.com/BaSui01/speechflow/config"
	"github.com/BaSui01/speechflow/internal/server"
	"github.com/BaSui01/speechflow/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// 🖥️ 服务器
// =============================================================================

// skipAuthPaths 免认证的探针与元信息路径
var skipAuthPaths = []string{"/health", "/healthz", "/ready", "/readyz", "/version", "/metrics"}

// Server 管理 HTTP 与 Metrics 双端口、配置热重载和后台任务
type Server struct {
	app        *App
	cfg        *config.Config
	configPath string
	logger     *zap.Logger
	level      zap.AtomicLevel
	telemetry  *telemetry.Providers

	httpManager    *server.Manager
	metricsManager *server.Manager
	reloader       *config.Reloader

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer 创建服务器
func NewServer(app *App, configPath string, level zap.AtomicLevel, otel *telemetry.Providers) *Server {
	return &Server{
		app:        app,
		cfg:        app.cfg,
		configPath: configPath,
		logger:     app.logger,
		level:      level,
		telemetry:  otel,
	}
}

// =============================================================================
// 🚀 启动
// =============================================================================

// Start 启动所有服务（非阻塞）
func (s *Server) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)

	if err := s.startReloader(ctx); err != nil {
		return fmt.Errorf("failed to start config reloader: %w", err)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.app.audio.RunCleanup(ctx, s.cfg.Audio.CleanupInterval)
	}()

	if err := s.startHTTPServer(ctx); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.logger.Info("all servers started",
		zap.String("http_addr", s.httpManager.Addr()),
		zap.String("metrics_addr", s.metricsManager.Addr()),
		zap.Bool("hot_reload_enabled", s.reloader != nil),
	)
	return nil
}

// startReloader 指定配置文件时启用热重载：限流上限与日志级别即时生效
func (s *Server) startReloader(ctx context.Context) error {
	if s.configPath == "" {
		return nil
	}
	s.reloader = config.NewReloader(s.configPath, config.NewLoader().WithConfigPath(s.configPath), s.cfg,
		config.WithReloadLogger(s.logger))
	s.reloader.OnReload(s.app.applyReload)
	s.reloader.OnReload(func(_, updated *config.Config) {
		lvl, err := zapcore.ParseLevel(updated.Log.Level)
		if err != nil || lvl == s.level.Level() {
			return
		}
		s.level.SetLevel(lvl)
		s.logger.Info("log level updated", zap.String("level", lvl.String()))
	})
	return s.reloader.Start(ctx)
}

func (s *Server) startHTTPServer(ctx context.Context) error {
	handler := buildHandler(ctx, s.app)

	s.httpManager = server.NewManager(handler, server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
		CertFile:        s.cfg.Server.TLSCertFile,
		KeyFile:         s.cfg.Server.TLSKeyFile,
	}, s.logger)
	return s.httpManager.Start()
}

func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	s.metricsManager = server.NewManager(mux, server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.ReadTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}, s.logger)
	return s.metricsManager.Start()
}

// =============================================================================
// 🧭 路由
// =============================================================================

// buildHandler 注册路由并套上中间件链。ctx 结束时停止限流器的后台清理
func buildHandler(ctx context.Context, app *App) http.Handler {
	cfg, logger := app.cfg, app.logger

	health := handlers.NewHealthHandler(logger)
	health.RegisterCheck(handlers.NewDatabaseHealthCheck(app.pool.Ping))
	if app.cache != nil {
		health.RegisterCheck(handlers.NewRedisHealthCheck(app.cache.Ping))
	}
	speechH := handlers.NewSpeechHandler(app.orchestrator, app.defaults, app.audio, logger)
	voiceH := handlers.NewVoiceHandler(app.voices, logger)
	chatH := handlers.NewChatHandler(app.responder, app.chatStore, logger)

	mux := http.NewServeMux()

	// 健康检查
	mux.HandleFunc("GET /health", health.HandleHealth)
	mux.HandleFunc("GET /healthz", health.HandleHealthz)
	mux.HandleFunc("GET /ready", health.HandleReady)
	mux.HandleFunc("GET /readyz", health.HandleReady)
	mux.HandleFunc("GET /version", health.HandleVersion(Version, BuildTime, GitCommit))

	// 语音合成
	mux.HandleFunc("POST /api/v1/speech/synthesize", speechH.HandleSynthesize)
	mux.HandleFunc("POST /api/v1/speech/stream", speechH.HandleStream)

	// 音色
	mux.HandleFunc("GET /api/v1/voices", voiceH.HandleList)
	mux.HandleFunc("GET /api/v1/voices/remote", voiceH.HandleListRemote)
	mux.HandleFunc("GET /api/v1/voices/audio", speechH.HandleListAudio)
	mux.HandleFunc("POST /api/v1/voices/clone", voiceH.HandleClone)
	mux.HandleFunc("POST /api/v1/voices/clone/batch", voiceH.HandleCloneBatch)
	mux.HandleFunc("DELETE /api/v1/voices/{id}", voiceH.HandleDelete)
	mux.HandleFunc("POST /api/v1/voices/test", voiceH.HandleTestBatch)
	mux.HandleFunc("POST /api/v1/voices/{id}/test", voiceH.HandleTest)

	// 会话语音回复
	mux.HandleFunc("POST /api/v1/chats/{id}/voice-reply", chatH.HandleRequestVoiceReply)
	mux.HandleFunc("GET /api/v1/chats/{id}/voice-always", chatH.HandleGetVoiceAlways)
	mux.HandleFunc("PUT /api/v1/chats/{id}/voice-always", chatH.HandleSetVoiceAlways)
	mux.HandleFunc("GET /api/v1/chats/{id}/voice-guidelines", chatH.HandleVoiceGuidelines)
	mux.HandleFunc("POST /api/v1/chats/{id}/reply", chatH.HandleReply)

	chain := []Middleware{
		Recovery(logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(logger),
		MetricsMiddleware(app.collector),
		OTelTracing(),
		CORS(cfg.Server.CORSAllowedOrigins),
	}
	if len(cfg.Server.APIKeys) > 0 {
		chain = append(chain, APIKeyAuth(cfg.Server.APIKeys, skipAuthPaths, cfg.Server.AllowQueryAPIKey, logger))
	}
	if cfg.Server.JWTSecret != "" {
		chain = append(chain, JWTAuth(cfg.Server.JWTSecret, skipAuthPaths, logger))
	}
	if cfg.Server.RateLimitRPS > 0 {
		chain = append(chain, RateLimiter(ctx, float64(cfg.Server.RateLimitRPS), cfg.Server.RateLimitBurst, logger))
	}
	if len(cfg.Server.APIKeys) == 0 && cfg.Server.JWTSecret == "" {
		logger.Warn("authentication disabled: no API keys or JWT secret configured")
	}
	return Chain(mux, chain...)
}

// =============================================================================
// 🛑 关闭
// =============================================================================

// WaitForShutdown 阻塞直到 ctx 结束或 HTTP 服务异常退出，然后关闭全部组件
func (s *Server) WaitForShutdown(ctx context.Context) error {
	err := s.httpManager.Wait(ctx)
	s.Shutdown()
	return err
}

// Shutdown 按依赖逆序关闭：热重载 → 后台任务 → HTTP 与 Metrics → 遥测 → 存储
func (s *Server) Shutdown() {
	s.logger.Info("starting graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	if s.reloader != nil {
		s.reloader.Stop()
	}
	if s.cancel != nil {
		s.cancel()
	}

	// 两个端口并行排空
	var g errgroup.Group
	for name, m := range map[string]*server.Manager{"http": s.httpManager, "metrics": s.metricsManager} {
		if m == nil {
			continue
		}
		g.Go(func() error {
			if err := m.Shutdown(ctx); err != nil {
				s.logger.Error("server shutdown error", zap.String("server", name), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
	s.wg.Wait()

	if err := s.telemetry.Shutdown(ctx); err != nil {
		s.logger.Error("telemetry shutdown error", zap.Error(err))
	}
	if err := s.app.Close(); err != nil {
		s.logger.Error("component close error", zap.Error(err))
	}
	s.logger.Info("graceful shutdown completed")
}
