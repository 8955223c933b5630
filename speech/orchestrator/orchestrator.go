package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/BaSui01/speechflow/speech"
	"github.com/BaSui01/speechflow/speech/async"
	"github.com/BaSui01/speechflow/speech/gate"
	"github.com/BaSui01/speechflow/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	instrumentationName = "github.com/BaSui01/speechflow/speech/orchestrator"
	cacheKeyPrefix      = "speech:audio:"
	cacheType           = "audio"
)

// Result 一次合成的结果
type Result struct {
	Audio   []byte            `json:"-"`
	URL     string            `json:"url,omitempty"`
	Format  string            `json:"format"`
	Mode    speech.Mode       `json:"-"`
	JobID   string            `json:"job_id,omitempty"`
	TraceID string            `json:"trace_id,omitempty"`
	Cached  bool              `json:"cached,omitempty"`
	Info    *speech.AudioInfo `json:"info,omitempty"`
}

// Cache 合成音频缓存
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte) error
}

// Recorder 合成指标
type Recorder interface {
	RecordSynthesis(mode, status string, duration time.Duration, textLength, audioBytes int)
	RecordCacheHit(cacheType string)
	RecordCacheMiss(cacheType string)
}

// VoiceUsageFunc 合成成功后以所用音色回调
type VoiceUsageFunc func(ctx context.Context, voiceID string)

// Limits 文本长度限制与模式选择参数
type Limits struct {
	Modes              speech.ModeOptions
	MaxTextLength      int
	AsyncMaxTextLength int
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithCache enables the audio cache.
func WithCache(c Cache) Option {
	return func(o *Orchestrator) { o.cache = c }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithVoiceUsage registers a callback invoked after each successful synthesis.
func WithVoiceUsage(fn VoiceUsageFunc) Option {
	return func(o *Orchestrator) { o.onVoiceUsed = fn }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Orchestrator 组合校验、模式选择、限流重试与异步轮询
type Orchestrator struct {
	provider    speech.Provider
	gate        *gate.Gate
	poller      *async.Poller
	limits      Limits
	cache       Cache
	recorder    Recorder
	onVoiceUsed VoiceUsageFunc
	logger      *zap.Logger
	tracer      trace.Tracer
}

// New creates an orchestrator.
func New(provider speech.Provider, g *gate.Gate, poller *async.Poller, limits Limits, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		provider: provider,
		gate:     g,
		poller:   poller,
		limits:   limits,
		logger:   zap.NewNop(),
		tracer:   otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With(zap.String("component", "orchestrator"))
	return o
}

// SelectMode 返回文本长度对应的执行路径
func (o *Orchestrator) SelectMode(req *speech.Request) speech.Mode {
	return speech.SelectMode(req.TextLength(), o.limits.Modes)
}

// Validate 按所选模式的长度上限校验请求
func (o *Orchestrator) Validate(req *speech.Request) (speech.Mode, error) {
	if req == nil {
		return speech.ModeSync, types.NewValidationError("request", "is required")
	}
	mode := o.SelectMode(req)
	limit := o.limits.MaxTextLength
	if mode == speech.ModeAsync {
		limit = o.limits.AsyncMaxTextLength
	}
	return mode, req.Validate(limit)
}

// Synthesize 合成并返回完整音频。
// 校验失败时不消耗令牌也不发起网络调用。流式路径中途失败时返回
// STREAM_INTERRUPTED，同时 Result 携带已收到的部分音频。
func (o *Orchestrator) Synthesize(ctx context.Context, req *speech.Request) (res *Result, err error) {
	mode, err := o.Validate(req)
	if err != nil {
		o.record(mode, err, 0, req, 0)
		return nil, err
	}

	start := time.Now()
	ctx, span := o.tracer.Start(ctx, "speech.synthesize",
		trace.WithAttributes(
			attribute.String("speech.mode", mode.String()),
			attribute.String("speech.model", req.Model),
			attribute.String("speech.voice_id", req.Voice.VoiceID),
			attribute.Int("speech.text_length", req.TextLength())))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		size := 0
		if res != nil {
			size = len(res.Audio)
		}
		o.record(mode, err, time.Since(start), req, size)
	}()

	key, cacheable := o.cacheKey(req)
	if cacheable {
		if data, ok := o.lookup(ctx, key); ok {
			span.SetAttributes(attribute.Bool("speech.cached", true))
			return &Result{Audio: data, Format: req.Audio.Format, Mode: mode, Cached: true}, nil
		}
	}

	switch mode {
	case speech.ModeAsync:
		res, err = o.synthesizeAsync(ctx, req)
	case speech.ModeStreaming:
		res, err = o.collectStream(ctx, req)
	default:
		res, err = o.synthesizeSync(ctx, req)
	}
	if err != nil {
		o.logger.Warn("synthesis failed",
			zap.String("mode", mode.String()),
			zap.String("code", string(types.GetErrorCode(err))),
			zap.Error(err))
		if res != nil {
			res.Mode = mode
		}
		return res, err
	}

	res.Mode = mode
	if cacheable && len(res.Audio) > 0 {
		o.store(ctx, key, res.Audio)
	}
	if o.onVoiceUsed != nil {
		o.onVoiceUsed(ctx, req.Voice.VoiceID)
	}

	o.logger.Info("synthesis completed",
		zap.String("mode", mode.String()),
		zap.Int("text_length", req.TextLength()),
		zap.Int("audio_bytes", len(res.Audio)),
		zap.Duration("elapsed", time.Since(start)))
	return res, nil
}

// Stream 建立流式合成，仅对连接建立做限流与重试；中途失败以
// STREAM_INTERRUPTED 分片送出，不重试。适合异步的长文本整体作为
// 一个分片送出。
func (o *Orchestrator) Stream(ctx context.Context, req *speech.Request) (<-chan speech.StreamChunk, error) {
	mode, err := o.Validate(req)
	if err != nil {
		return nil, err
	}

	if mode == speech.ModeAsync {
		res, err := o.Synthesize(ctx, req)
		if err != nil {
			return nil, err
		}
		ch := make(chan speech.StreamChunk, 1)
		ch <- speech.StreamChunk{Data: res.Audio}
		close(ch)
		return ch, nil
	}

	return o.openStream(ctx, req, true)
}

// openStream 建立连接并转发分片；track 为 false 时由调用方负责指标与回调
func (o *Orchestrator) openStream(ctx context.Context, req *speech.Request, track bool) (<-chan speech.StreamChunk, error) {
	upstream, err := gate.CallTyped(o.gate, ctx, "synthesize.stream", func(ctx context.Context) (<-chan speech.StreamChunk, error) {
		return o.provider.SynthesizeStream(ctx, req)
	})
	if err != nil {
		if track {
			o.record(speech.ModeStreaming, err, 0, req, 0)
		}
		return nil, err
	}

	start := time.Now()
	out := make(chan speech.StreamChunk)
	go func() {
		defer close(out)
		received := 0
		var streamErr error
		if track {
			defer func() {
				o.record(speech.ModeStreaming, streamErr, time.Since(start), req, received)
				if streamErr == nil && o.onVoiceUsed != nil {
					o.onVoiceUsed(ctx, req.Voice.VoiceID)
				}
			}()
		}

		for chunk := range upstream {
			if chunk.Err != nil {
				streamErr = interrupted(chunk.Err, received)
				select {
				case out <- speech.StreamChunk{Err: streamErr}:
				case <-ctx.Done():
				}
				return
			}
			received += len(chunk.Data)
			select {
			case out <- chunk:
			case <-ctx.Done():
				streamErr = ctx.Err()
				return
			}
		}
		if ctx.Err() != nil {
			streamErr = ctx.Err()
		}
	}()
	return out, nil
}

func (o *Orchestrator) synthesizeSync(ctx context.Context, req *speech.Request) (*Result, error) {
	audio, err := gate.CallTyped(o.gate, ctx, "synthesize", func(ctx context.Context) (*speech.Audio, error) {
		return o.provider.Synthesize(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return &Result{
		Audio:   audio.Data,
		URL:     audio.URL,
		Format:  audio.Format,
		TraceID: audio.TraceID,
		Info:    audio.Info,
	}, nil
}

func (o *Orchestrator) collectStream(ctx context.Context, req *speech.Request) (*Result, error) {
	ch, err := o.openStream(ctx, req, false)
	if err != nil {
		return nil, err
	}
	res := &Result{Format: req.Audio.Format}
	var streamErr error
	for chunk := range ch {
		if chunk.Err != nil {
			streamErr = chunk.Err
			continue
		}
		res.Audio = append(res.Audio, chunk.Data...)
	}
	if streamErr == nil && ctx.Err() != nil {
		streamErr = ctx.Err()
	}
	if streamErr != nil {
		return res, streamErr
	}
	if len(res.Audio) == 0 {
		return nil, types.NewError(types.ErrProvider, "stream returned no audio").WithProvider(o.provider.Name())
	}
	return res, nil
}

func (o *Orchestrator) synthesizeAsync(ctx context.Context, req *speech.Request) (*Result, error) {
	data, job, err := o.poller.Run(ctx, req)
	res := &Result{Audio: data, Format: req.Audio.Format}
	if job != nil {
		res.JobID = job.ID
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// interrupted 将流中途错误包装为 STREAM_INTERRUPTED，保留原错误
func interrupted(cause error, received int) error {
	if types.IsErrorCode(cause, types.ErrStreamInterrupted) {
		return cause
	}
	return types.Errorf(types.ErrStreamInterrupted, "stream interrupted after %d bytes", received).
		WithCause(cause)
}

// cacheKey 只缓存返回音频数据的请求
func (o *Orchestrator) cacheKey(req *speech.Request) (string, bool) {
	if o.cache == nil || req.OutputFormat == speech.OutputURL {
		return "", false
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return "", false
	}
	sum := sha256.Sum256(payload)
	return cacheKeyPrefix + hex.EncodeToString(sum[:]), true
}

func (o *Orchestrator) lookup(ctx context.Context, key string) ([]byte, bool) {
	data, ok, err := o.cache.Get(ctx, key)
	if err != nil {
		o.logger.Warn("audio cache get failed", zap.Error(err))
	}
	if o.recorder != nil {
		if ok {
			o.recorder.RecordCacheHit(cacheType)
		} else {
			o.recorder.RecordCacheMiss(cacheType)
		}
	}
	return data, ok && len(data) > 0
}

func (o *Orchestrator) store(ctx context.Context, key string, data []byte) {
	if err := o.cache.Set(ctx, key, data); err != nil {
		o.logger.Warn("audio cache set failed", zap.Error(err))
	}
}

func (o *Orchestrator) record(mode speech.Mode, err error, d time.Duration, req *speech.Request, size int) {
	if o.recorder == nil {
		return
	}
	status := "success"
	if err != nil {
		status = string(types.GetErrorCode(err))
		if status == "" {
			status = "error"
		}
	}
	textLen := 0
	if req != nil {
		textLen = req.TextLength()
	}
	o.recorder.RecordSynthesis(mode.String(), status, d, textLen, size)
}
