// =============================================================================
// SpeechFlow 主入口
// =============================================================================
// 完整服务入口点，包含 HTTP 服务、健康检查、Prometheus 指标与命令行合成
//
// 使用方法:
//
//	speechflow serve                       # 启动服务
//	speechflow serve --config config.yaml  # 指定配置文件（启用热重载）
//	speechflow say "你好" -o hello.mp3      # 命令行合成
//	speechflow version                     # 显示版本信息
//	speechflow health                      # 健康检查
//	speechflow migrate up                  # 运行数据库迁移
//	speechflow migrate status              # 查看迁移状态
// =============================================================================

// @title SpeechFlow API
// @version 1.0.0
// @description SpeechFlow orchestrates MiniMax speech synthesis behind a rate-limited, retrying gateway.
// @description
// @description ## Features
// @description - Sync, streaming (SSE) and async long-text synthesis with automatic mode selection
// @description - Process-wide requests-per-minute limiter with exponential backoff retries
// @description - Voice cloning from local audio, batch cloning and voice expiry tracking
// @description - Per-chat voice reply decisions (pending, always, random)

// @contact.name SpeechFlow Team
// @contact.url https://github.com/BaSui01/speechflow

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /
// @schemes http https

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
// @description API key for authentication

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/speechflow/config"
	"github.com/BaSui01/speechflow/internal/telemetry"
	"github.com/BaSui01/speechflow/internal/tlsutil"
	"github.com/BaSui01/speechflow/speech"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	// .env 仅用于本地开发，不存在时忽略
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to load .env: %v\n", err)
	}

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "say":
		runSay(os.Args[2:])
	case "migrate":
		runMigrate(os.Args[2:])
	case "version":
		printVersion()
	case "health":
		runHealthCheck(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// =============================================================================
// 🖥️ serve 命令
// =============================================================================

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	_ = fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	logger, level := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	logger.Info("starting SpeechFlow",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelProviders, err := telemetry.Init(cfg.Telemetry, Version, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
		otelProviders = &telemetry.Providers{}
	}

	app, err := NewApp(ctx, cfg, logger)
	if err != nil {
		_ = otelProviders.Shutdown(context.Background())
		logger.Fatal("failed to build components", zap.Error(err))
	}

	srv := NewServer(app, *configPath, level, otelProviders)
	if err := srv.Start(ctx); err != nil {
		srv.Shutdown()
		logger.Fatal("failed to start server", zap.Error(err))
	}

	if err := srv.WaitForShutdown(ctx); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("SpeechFlow stopped")
}

// =============================================================================
// 🔊 say 命令
// =============================================================================

func runSay(args []string) {
	fs := flag.NewFlagSet("say", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	output := fs.String("o", "", "Output file (default: audio cache directory)")
	voice := fs.String("voice", "", "Voice ID override")
	emotion := fs.String("emotion", "", "Emotion override")
	format := fs.String("format", "", "Audio format override (mp3, wav, flac, pcm)")
	_ = fs.Parse(args)

	text := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if text == "" {
		fmt.Fprintln(os.Stderr, `Usage: speechflow say [--voice id] [--emotion e] [--format f] [-o file] <text>`)
		os.Exit(1)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	logger, _ := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := NewApp(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	overrides := &speech.Overrides{VoiceID: *voice, Emotion: *emotion, Format: *format}
	if err := say(ctx, app, text, overrides, *output, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Synthesis failed: %v\n", err)
		os.Exit(1)
	}
}

// say 合成一段文本；无输出路径时写入音频缓存目录，URL 输出时只打印地址。
// 流式中途失败时先写出已收到的部分音频，再返回合成错误。
func say(ctx context.Context, app *App, text string, o *speech.Overrides, output string, w io.Writer) error {
	res, synthErr := app.orchestrator.Synthesize(ctx, app.defaults.NewRequest(text, o))
	if synthErr != nil && (res == nil || len(res.Audio) == 0) {
		return synthErr
	}
	if len(res.Audio) == 0 && res.URL != "" {
		fmt.Fprintln(w, res.URL)
		return nil
	}

	path := output
	if path == "" {
		var err error
		if path, err = app.audio.WriteCache(res.Audio, res.Format); err != nil {
			return err
		}
	} else if err := os.WriteFile(path, res.Audio, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if synthErr != nil {
		fmt.Fprintf(w, "%s (%s, %d bytes, mode=%s, partial)\n", path, res.Format, len(res.Audio), res.Mode)
		return synthErr
	}
	fmt.Fprintf(w, "%s (%s, %d bytes, mode=%s)\n", path, res.Format, len(res.Audio), res.Mode)
	return nil
}

// =============================================================================
// 🏥 健康检查命令
// =============================================================================

func runHealthCheck(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	addr := fs.String("addr", "http://localhost:8080", "Server address")
	_ = fs.Parse(args)

	if err := checkHealth(*addr, 5*time.Second); err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("OK")
}

func checkHealth(addr string, timeout time.Duration) error {
	client := tlsutil.SecureHTTPClient(timeout)
	resp, err := client.Get(strings.TrimRight(addr, "/") + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != 200 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion() {
	fmt.Printf("SpeechFlow %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`SpeechFlow - MiniMax speech synthesis service

Usage:
  speechflow <command> [options]

Commands:
  serve     Start the SpeechFlow server
  say       Synthesize text from the command line
  migrate   Database migration commands
  version   Show version information
  health    Check server health
  help      Show this help message

Options for 'serve':
  --config <path>   Path to configuration file (YAML), reloaded on change

Options for 'say':
  --voice <id>      Voice ID (default: minimax.voice_id)
  --emotion <e>     Emotion (happy, sad, angry, ...)
  --format <f>      Audio format: mp3, wav, flac, pcm
  -o <file>         Output file

Examples:
  speechflow serve
  speechflow serve --config /etc/speechflow/config.yaml
  speechflow say --voice female-shaonv "今天天气真好"
  speechflow migrate up
  speechflow health --addr http://localhost:8080
  speechflow version`)
}

// =============================================================================
// 🔧 配置与日志
// =============================================================================

// loadConfig 默认值 → YAML → 环境变量，然后校验
func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader()
	if path != "" {
		loader = loader.WithConfigPath(path)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// initLogger 返回的 AtomicLevel 供热重载调整日志级别
func initLogger(cfg config.LogConfig) (*zap.Logger, zap.AtomicLevel) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	atomicLevel := zap.NewAtomicLevelAt(level)

	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}

	zapConfig := zap.Config{
		Level:             atomicLevel,
		Development:       encoding == "console",
		Encoding:          encoding,
		EncoderConfig:     encoderConfig,
		OutputPaths:       outputs,
		ErrorOutputPaths:  []string{"stderr"},
		DisableCaller:     !cfg.EnableCaller,
		DisableStacktrace: !cfg.EnableStacktrace,
	}

	logger, err := zapConfig.Build()
	if err != nil {
		// 回退到基本 logger
		logger, _ = zap.NewProduction()
	}
	return logger, atomicLevel
}
