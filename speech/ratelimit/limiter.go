// Package ratelimit 提供进程级共享的出站请求限流器。
//
// 每次授予的令牌在一个窗口（默认一分钟）后归还，因此任意滚动窗口内
// 授予次数不超过配置的每分钟请求数。等待方按最早令牌的归还时间挂起，
// 不做忙轮询；取消等待不会占用令牌。
package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultWindow 滚动窗口长度
const DefaultWindow = time.Minute

// Limiter bounds outbound provider requests per rolling window.
// A single instance is shared by every call site for the process lifetime.
type Limiter struct {
	mu      sync.Mutex
	rpm     int
	window  time.Duration
	grants  []time.Time
	changed chan struct{}

	now      func() time.Time
	observer func(wait time.Duration)
	logger   *zap.Logger
}

// Option configures a Limiter
type Option func(*Limiter)

// WithWindow overrides the rolling window length.
func WithWindow(d time.Duration) Option {
	return func(l *Limiter) {
		if d > 0 {
			l.window = d
		}
	}
}

// WithObserver registers a hook receiving the time each Acquire spent waiting.
func WithObserver(fn func(wait time.Duration)) Option {
	return func(l *Limiter) {
		l.observer = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Limiter) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New creates a limiter granting at most rpm acquisitions per window.
// rpm <= 0 disables limiting.
func New(rpm int, opts ...Option) *Limiter {
	l := &Limiter{
		rpm:     rpm,
		window:  DefaultWindow,
		changed: make(chan struct{}),
		now:     time.Now,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With(zap.String("component", "rate_limiter"))
	return l
}

// Acquire suspends until a token is available and consumes it.
// It returns ctx.Err() if ctx is done first; in that case nothing is consumed.
func (l *Limiter) Acquire(ctx context.Context) error {
	start := time.Now()
	logged := false

	for {
		wait, changed, ok := l.tryAcquire()
		if ok {
			if l.observer != nil {
				l.observer(time.Since(start))
			}
			return nil
		}

		if !logged {
			l.logger.Debug("rate limit reached, waiting", zap.Duration("wait", wait))
			logged = true
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-changed:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// tryAcquire grants a token if one is free, otherwise reports how long
// until the oldest grant leaves the window.
func (l *Limiter) tryAcquire() (time.Duration, <-chan struct{}, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.rpm <= 0 {
		return 0, nil, true
	}

	now := l.now()
	l.prune(now)

	if len(l.grants) < l.rpm {
		l.grants = append(l.grants, now)
		return 0, nil, true
	}

	wait := l.grants[0].Add(l.window).Sub(now)
	if wait <= 0 {
		wait = time.Millisecond
	}
	return wait, l.changed, false
}

// prune drops grants that have left the window. Caller holds mu.
func (l *Limiter) prune(now time.Time) {
	i := 0
	for i < len(l.grants) && !l.grants[i].Add(l.window).After(now) {
		i++
	}
	if i > 0 {
		l.grants = append(l.grants[:0], l.grants[i:]...)
	}
}

// SetRPM retunes the limiter. Waiters are woken to re-check capacity.
func (l *Limiter) SetRPM(rpm int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if rpm == l.rpm {
		return
	}
	l.logger.Info("rate limit updated", zap.Int("old_rpm", l.rpm), zap.Int("new_rpm", rpm))
	l.rpm = rpm

	// 收紧容量时只保留最近的授予记录
	if rpm > 0 && len(l.grants) > rpm {
		l.grants = append(l.grants[:0], l.grants[len(l.grants)-rpm:]...)
	}

	close(l.changed)
	l.changed = make(chan struct{})
}

// RPM returns the configured requests per window.
func (l *Limiter) RPM() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rpm
}

// Disabled reports whether limiting is off.
func (l *Limiter) Disabled() bool {
	return l.RPM() <= 0
}

// Available returns how many tokens could be granted right now.
func (l *Limiter) Available() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.rpm <= 0 {
		return -1
	}
	l.prune(l.now())
	return l.rpm - len(l.grants)
}
