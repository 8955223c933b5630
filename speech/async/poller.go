package async

import (
	"context"
	"time"

	"github.com/BaSui01/speechflow/speech"
	"github.com/BaSui01/speechflow/speech/gate"
	"github.com/BaSui01/speechflow/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/BaSui01/speechflow/speech/async"

// Observer 接收任务结束事件，用于指标
type Observer interface {
	ObserveAsyncJob(status Status, polls int, elapsed time.Duration)
}

// Option configures a Poller
type Option func(*Poller)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Poller) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithObserver registers a job observer.
func WithObserver(o Observer) Option {
	return func(p *Poller) {
		p.observer = o
	}
}

// Poller 提交长文本任务并轮询结果。
// 每次提交与轮询都经过 gate（限流 + 重试）；结果下载只重试不限流。
type Poller struct {
	provider speech.Provider
	gate     *gate.Gate
	interval time.Duration
	maxWait  time.Duration
	observer Observer
	logger   *zap.Logger
	tracer   trace.Tracer
}

// NewPoller creates a poller.
func NewPoller(provider speech.Provider, g *gate.Gate, interval, maxWait time.Duration, opts ...Option) *Poller {
	p := &Poller{
		provider: provider,
		gate:     g,
		interval: interval,
		maxWait:  maxWait,
		logger:   zap.NewNop(),
		tracer:   otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.interval <= 0 {
		p.interval = 2 * time.Second
	}
	if p.maxWait <= 0 {
		p.maxWait = 5 * time.Minute
	}
	p.logger = p.logger.With(zap.String("component", "async_poller"))
	return p
}

// Submit 提交任务，返回 Pending 状态的 Job；上游直接返回音频时 Job 已是 Succeeded
func (p *Poller) Submit(ctx context.Context, req *speech.Request) (*Job, error) {
	sub, err := gate.CallTyped(p.gate, ctx, "async.submit", func(ctx context.Context) (*speech.AsyncSubmission, error) {
		return p.provider.SubmitAsync(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	job := newJob(sub.TaskID, time.Now())
	if sub.Ready != nil {
		if err := job.succeed(*sub.Ready); err != nil {
			return nil, types.NewError(types.ErrInternalError, err.Error())
		}
	}
	p.logger.Info("async job submitted",
		zap.String("job_id", job.ID),
		zap.Int("text_length", req.TextLength()),
		zap.Bool("ready", sub.Ready != nil))
	return job, nil
}

// AwaitResult 轮询直到任务成功、失败或超过最大等待时间，成功时返回音频数据。
// 超时返回 TIMEOUT_EXCEEDED，任务在上游不会被取消。
func (p *Poller) AwaitResult(ctx context.Context, job *Job) (data []byte, err error) {
	ctx, span := p.tracer.Start(ctx, "speech.async.await",
		trace.WithAttributes(attribute.String("speech.job_id", job.ID)))
	defer func() {
		span.SetAttributes(
			attribute.String("speech.job_status", string(job.Status())),
			attribute.Int("speech.job_polls", job.Polls()))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		if p.observer != nil {
			p.observer.ObserveAsyncJob(job.Status(), job.Polls(), time.Since(job.SubmittedAt))
		}
	}()

	if job.Status() == StatusPending || job.Status() == StatusRunning {
		if err := p.poll(ctx, job); err != nil {
			return nil, err
		}
	}

	switch job.Status() {
	case StatusSucceeded:
		return p.fetch(ctx, job)
	case StatusFailed:
		return nil, jobFailedError(job)
	default:
		return nil, types.Errorf(types.ErrInternalError, "async job %s in state %s", job.ID, job.Status())
	}
}

// Run 提交并等待结果
func (p *Poller) Run(ctx context.Context, req *speech.Request) ([]byte, *Job, error) {
	job, err := p.Submit(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	data, err := p.AwaitResult(ctx, job)
	return data, job, err
}

// poll 驱动状态机直到终态。返回的错误只来自取消、超时或不可重试的查询错误；
// 上游报告的失败通过 Job 状态体现。
func (p *Poller) poll(ctx context.Context, job *Job) error {
	deadline := job.SubmittedAt.Add(p.maxWait)
	waitCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	for {
		select {
		case <-waitCtx.Done():
			return p.expired(ctx, job)
		case <-timer.C:
		}

		status, err := gate.CallTyped(p.gate, waitCtx, "async.query", func(ctx context.Context) (*speech.AsyncStatus, error) {
			return p.provider.QueryAsync(ctx, job.ID)
		})
		job.countPoll()

		switch {
		case err == nil:
			if done := p.apply(job, status); done {
				return nil
			}
		case waitCtx.Err() != nil:
			return p.expired(ctx, job)
		case types.IsRetryable(err):
			// 重试耗尽但仍可能恢复，继续轮询直到最大等待时间
			p.logger.Warn("async poll failed, will keep polling",
				zap.String("job_id", job.ID), zap.Error(err))
		default:
			_ = job.fail(err.Error())
			return err
		}

		timer.Reset(p.interval)
	}
}

// apply 应用一次查询结果，返回任务是否到达终态
func (p *Poller) apply(job *Job, status *speech.AsyncStatus) bool {
	next := stateFromProvider(status.State)
	switch next {
	case StatusSucceeded:
		if err := job.succeed(status.Result); err != nil {
			p.logger.Error("job transition", zap.Error(err))
		}
		p.logger.Info("async job succeeded",
			zap.String("job_id", job.ID),
			zap.Int("polls", job.Polls()),
			zap.Duration("elapsed", time.Since(job.SubmittedAt)))
		return true
	case StatusFailed:
		if err := job.fail(status.Message); err != nil {
			p.logger.Error("job transition", zap.Error(err))
		}
		p.logger.Warn("async job failed", zap.String("job_id", job.ID), zap.String("message", status.Message))
		return true
	case StatusRunning:
		if job.Status() == StatusPending {
			_ = job.transition(StatusRunning)
		}
	}
	p.logger.Debug("async job pending",
		zap.String("job_id", job.ID),
		zap.String("status", string(next)),
		zap.Int("polls", job.Polls()))
	return false
}

// expired 区分调用方取消与最大等待超时
func (p *Poller) expired(ctx context.Context, job *Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_ = job.transition(StatusTimedOut)
	p.logger.Warn("async job timed out, left running upstream",
		zap.String("job_id", job.ID),
		zap.Duration("max_wait", p.maxWait),
		zap.Int("polls", job.Polls()))
	return types.Errorf(types.ErrTimeoutExceeded, "async job %s did not finish within %s", job.ID, p.maxWait).
		WithProvider(p.provider.Name())
}

func (p *Poller) fetch(ctx context.Context, job *Job) ([]byte, error) {
	ref := job.Result()
	if len(ref.Data) > 0 {
		return ref.Data, nil
	}
	data, err := gate.RetryTyped(p.gate, ctx, "async.fetch", func(ctx context.Context) ([]byte, error) {
		return p.provider.FetchAudio(ctx, ref)
	})
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, types.Errorf(types.ErrProvider, "async job %s returned empty audio", job.ID).
			WithProvider(p.provider.Name())
	}
	return data, nil
}

func jobFailedError(job *Job) error {
	msg := job.Message()
	if msg == "" {
		msg = "no detail"
	}
	return types.Errorf(types.ErrProvider, "async job %s failed: %s", job.ID, msg)
}
