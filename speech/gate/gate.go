// Package gate 将限流与重试组合为每次上游网络调用的统一入口。
//
// 每一次尝试（包括重试）都先向限流器申请令牌，因此令牌消耗与实际
// 网络调用次数成正比，而不是与逻辑请求数成正比。
package gate

import (
	"context"
	"time"

	"github.com/BaSui01/speechflow/speech/ratelimit"
	"github.com/BaSui01/speechflow/speech/retry"
	"go.uber.org/zap"
)

// CallObserver 接收每次网络尝试的结果
type CallObserver func(op string, err error, elapsed time.Duration)

// Gate wraps provider calls with rate limiting and retry.
type Gate struct {
	limiter  *ratelimit.Limiter
	retryer  retry.Retryer
	observer CallObserver
	logger   *zap.Logger
}

// Option configures a Gate
type Option func(*Gate)

// WithCallObserver registers a per-attempt observer.
func WithCallObserver(fn CallObserver) Option {
	return func(g *Gate) {
		g.observer = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// New creates a gate. A nil limiter disables limiting; a nil retryer means a single attempt.
func New(limiter *ratelimit.Limiter, retryer retry.Retryer, opts ...Option) *Gate {
	g := &Gate{
		limiter: limiter,
		retryer: retryer,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.retryer == nil {
		g.retryer = retry.NewBackoffRetryer(&retry.Policy{MaxRetries: 0}, g.logger)
	}
	g.logger = g.logger.With(zap.String("component", "gate"))
	return g
}

// Limiter returns the shared limiter.
func (g *Gate) Limiter() *ratelimit.Limiter {
	return g.limiter
}

// Call runs fn through the retry policy, acquiring a token before every attempt.
func (g *Gate) Call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	return g.retryer.Do(ctx, func() error {
		if g.limiter != nil {
			if err := g.limiter.Acquire(ctx); err != nil {
				return err
			}
		}
		return g.attempt(ctx, op, fn)
	})
}

// Retry runs fn through the retry policy without consuming tokens.
// Used for calls that do not hit the rate-governed API, such as CDN downloads.
func (g *Gate) Retry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	return g.retryer.Do(ctx, func() error {
		return g.attempt(ctx, op, fn)
	})
}

func (g *Gate) attempt(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	if g.observer != nil {
		g.observer(op, err, time.Since(start))
	}
	if err != nil {
		g.logger.Debug("provider call failed", zap.String("op", op), zap.Error(err))
	}
	return err
}

// CallTyped is the result-returning form of Gate.Call.
func CallTyped[T any](g *Gate, ctx context.Context, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := g.Call(ctx, op, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// RetryTyped is the result-returning form of Gate.Retry.
func RetryTyped[T any](g *Gate, ctx context.Context, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := g.Retry(ctx, op, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
