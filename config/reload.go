// 配置文件热重载。
//
// 轮询配置文件修改时间，去抖后重新加载并校验，成功时通知订阅者。
package config

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ReloadFunc 在新配置生效后调用
type ReloadFunc func(old, updated *Config)

// Reloader watches a configuration file and reloads it on change.
type Reloader struct {
	mu sync.RWMutex

	path          string
	loader        *Loader
	pollInterval  time.Duration
	debounceDelay time.Duration

	current   *Config
	lastMod   time.Time
	callbacks []ReloadFunc

	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	logger *zap.Logger
}

// ReloaderOption configures the Reloader
type ReloaderOption func(*Reloader)

// WithPollInterval sets how often the file is checked
func WithPollInterval(d time.Duration) ReloaderOption {
	return func(r *Reloader) {
		r.pollInterval = d
	}
}

// WithDebounceDelay sets the quiet period after a change before reloading
func WithDebounceDelay(d time.Duration) ReloaderOption {
	return func(r *Reloader) {
		r.debounceDelay = d
	}
}

// WithReloadLogger sets the logger
func WithReloadLogger(logger *zap.Logger) ReloaderOption {
	return func(r *Reloader) {
		r.logger = logger
	}
}

// NewReloader creates a reloader for path, starting from the already loaded cfg.
func NewReloader(path string, loader *Loader, cfg *Config, opts ...ReloaderOption) *Reloader {
	r := &Reloader{
		path:          path,
		loader:        loader,
		pollInterval:  time.Second,
		debounceDelay: 200 * time.Millisecond,
		current:       cfg,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.loader == nil {
		r.loader = NewLoader().WithConfigPath(path)
	}
	r.logger = r.logger.With(zap.String("component", "config_reloader"))
	return r
}

// OnReload registers a callback invoked after a successful reload
func (r *Reloader) OnReload(fn ReloadFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks = append(r.callbacks, fn)
}

// Current returns the active configuration
func (r *Reloader) Current() *Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Start begins polling in the background
func (r *Reloader) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return fmt.Errorf("reloader already running")
	}
	if info, err := os.Stat(r.path); err == nil {
		r.lastMod = info.ModTime()
	}

	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})
	r.running = true

	go r.loop(ctx)

	r.logger.Info("config reloader started",
		zap.String("path", r.path),
		zap.Duration("poll_interval", r.pollInterval))
	return nil
}

// Stop stops polling and waits for the loop to exit
func (r *Reloader) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	cancel, done := r.cancel, r.done
	r.mu.Unlock()

	cancel()
	<-done
	r.logger.Info("config reloader stopped")
}

func (r *Reloader) loop(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if r.changed() {
				pending = time.After(r.debounceDelay)
			}
		case <-pending:
			pending = nil
			if err := r.Reload(); err != nil {
				r.logger.Warn("config reload failed, keeping previous config", zap.Error(err))
			}
		}
	}
}

// changed reports whether the file modification time moved forward
func (r *Reloader) changed() bool {
	info, err := os.Stat(r.path)
	if err != nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if info.ModTime().After(r.lastMod) {
		r.lastMod = info.ModTime()
		return true
	}
	return false
}

// Reload loads and validates the file, then swaps it in and notifies callbacks.
func (r *Reloader) Reload() error {
	updated, err := r.loader.Load()
	if err != nil {
		return err
	}
	if err := updated.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	old := r.current
	r.current = updated
	callbacks := make([]ReloadFunc, len(r.callbacks))
	copy(callbacks, r.callbacks)
	r.mu.Unlock()

	r.logger.Info("configuration reloaded", zap.String("path", r.path))
	for _, cb := range callbacks {
		cb(old, updated)
	}
	return nil
}
