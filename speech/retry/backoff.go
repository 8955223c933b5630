package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/BaSui01/speechflow/types"
	"go.uber.org/zap"
)

// Policy 定义重试策略配置
type Policy struct {
	MaxRetries   int                                               // 首次尝试之后的最大重试次数（0 表示不重试）
	InitialDelay time.Duration                                     // 第一次重试前的延迟
	MaxDelay     time.Duration                                     // 延迟上限（0 表示不封顶）
	Multiplier   float64                                           // 延迟倍增因子
	Jitter       bool                                              // 在确定性延迟之上追加 0~25% 随机抖动
	Classifier   func(err error) bool                              // 可重试判定（为空则使用 types.IsRetryable）
	OnRetry      func(attempt int, err error, delay time.Duration) // 重试回调
}

// DefaultPolicy 返回默认的重试策略：3 次重试，1s/2s/4s
func DefaultPolicy() *Policy {
	return &Policy{
		MaxRetries:   3,
		InitialDelay: time.Second,
		Multiplier:   2.0,
	}
}

// NewPolicy 以 max_retries / retry_delay 构造确定性指数退避策略
func NewPolicy(maxRetries int, retryDelay time.Duration) *Policy {
	p := DefaultPolicy()
	p.MaxRetries = maxRetries
	p.InitialDelay = retryDelay
	return p
}

// Retryer 重试器接口
type Retryer interface {
	// Do 执行函数，失败时根据策略重试
	Do(ctx context.Context, fn func() error) error

	// DoWithResult 执行函数并返回结果，失败时根据策略重试
	DoWithResult(ctx context.Context, fn func() (any, error)) (any, error)
}

// backoffRetryer 基于指数退避的重试器实现
type backoffRetryer struct {
	policy *Policy
	logger *zap.Logger
}

// NewBackoffRetryer 创建指数退避重试器
func NewBackoffRetryer(policy *Policy, logger *zap.Logger) Retryer {
	if policy == nil {
		policy = DefaultPolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := *policy
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.InitialDelay < 0 {
		p.InitialDelay = 0
	}
	if p.Multiplier < 1.0 {
		p.Multiplier = 2.0
	}
	if p.Classifier == nil {
		p.Classifier = types.IsRetryable
	}

	return &backoffRetryer{
		policy: &p,
		logger: logger.With(zap.String("component", "retry")),
	}
}

// Do 实现 Retryer.Do
func (r *backoffRetryer) Do(ctx context.Context, fn func() error) error {
	_, err := r.DoWithResult(ctx, func() (any, error) {
		return nil, fn()
	})
	return err
}

// DoWithResult 实现 Retryer.DoWithResult
func (r *backoffRetryer) DoWithResult(ctx context.Context, fn func() (any, error)) (any, error) {
	var lastErr error
	var result any

	for attempt := 0; attempt <= r.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := Delay(r.policy, attempt)

			r.logger.Debug("重试中",
				zap.Int("attempt", attempt),
				zap.Int("max_retries", r.policy.MaxRetries),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)

			if r.policy.OnRetry != nil {
				r.policy.OnRetry(attempt, lastErr, delay)
			}

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, fmt.Errorf("重试被取消: %w", ctx.Err())
			case <-timer.C:
			}
		}

		result, lastErr = fn()
		if lastErr == nil {
			if attempt > 0 {
				r.logger.Info("重试成功", zap.Int("attempt", attempt))
			}
			return result, nil
		}

		if ctx.Err() != nil || !r.policy.Classifier(lastErr) {
			r.logger.Debug("错误不可重试", zap.Error(lastErr))
			return nil, lastErr
		}
	}

	r.logger.Warn("重试次数耗尽",
		zap.Int("attempts", r.policy.MaxRetries+1),
		zap.Error(lastErr),
	)

	return nil, fmt.Errorf("重试 %d 次后仍失败: %w", r.policy.MaxRetries, lastErr)
}

// Delay 返回第 attempt 次重试（从 1 开始）前的等待时间：
// initial * multiplier^(attempt-1)，封顶 MaxDelay，抖动只增不减。
func Delay(p *Policy, attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	multiplier := p.Multiplier
	if multiplier < 1.0 {
		multiplier = 2.0
	}

	delay := float64(p.InitialDelay) * math.Pow(multiplier, float64(attempt-1))
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}

	if p.Jitter {
		delay += rand.Float64() * delay * 0.25
	}

	return time.Duration(delay)
}
