package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/BaSui01/speechflow/api"
	"github.com/BaSui01/speechflow/speech"
	"github.com/BaSui01/speechflow/speech/audiostore"
	"github.com/BaSui01/speechflow/speech/orchestrator"
	"github.com/BaSui01/speechflow/types"
	"go.uber.org/zap"
)

// =============================================================================
// 🔊 语音合成 Handler
// =============================================================================

// Synthesizer 合成入口，由 orchestrator.Orchestrator 实现
type Synthesizer interface {
	Synthesize(ctx context.Context, req *speech.Request) (*orchestrator.Result, error)
	Stream(ctx context.Context, req *speech.Request) (<-chan speech.StreamChunk, error)
}

var _ Synthesizer = (*orchestrator.Orchestrator)(nil)

// SpeechHandler 语音合成处理器
type SpeechHandler struct {
	synth    Synthesizer
	defaults speech.Defaults
	audio    *audiostore.Store
	logger   *zap.Logger
}

// NewSpeechHandler 创建语音合成处理器；audio 为 nil 时不提供音频文件列表
func NewSpeechHandler(synth Synthesizer, defaults speech.Defaults, audio *audiostore.Store, logger *zap.Logger) *SpeechHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SpeechHandler{
		synth:    synth,
		defaults: defaults,
		audio:    audio,
		logger:   logger.With(zap.String("handler", "speech")),
	}
}

// HandleSynthesize 处理合成请求
// @Summary 语音合成
// @Description 按文本长度自动选择同步、流式或异步路径合成语音。Accept 为 audio/* 时直接返回音频
// @Tags 语音
// @Accept json
// @Produce json,audio/mpeg
// @Param request body api.SynthesizeRequest true "合成请求"
// @Success 200 {object} api.SynthesizeResponse "合成结果"
// @Failure 400 {object} Response "无效请求"
// @Failure 502 {object} Response "上游错误"
// @Failure 504 {object} Response "异步任务超时"
// @Security ApiKeyAuth
// @Router /api/v1/speech/synthesize [post]
func (h *SpeechHandler) HandleSynthesize(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	result, err := h.synth.Synthesize(r.Context(), req)
	if err != nil {
		if result != nil && len(result.Audio) > 0 {
			h.writePartial(w, r, result, err)
			return
		}
		WriteAnyError(w, err, h.logger)
		return
	}

	if wantsAudio(r) && len(result.Audio) > 0 {
		w.Header().Set("Content-Type", AudioContentType(result.Format))
		w.Header().Set("Content-Length", strconv.Itoa(len(result.Audio)))
		w.Header().Set("X-Synthesis-Mode", result.Mode.String())
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(result.Audio)
		return
	}

	WriteSuccess(w, toSynthesizeResponse(result))
}

// HandleStream 处理流式合成请求，以 SSE 逐片返回音频
// @Summary 流式语音合成
// @Description 以 text/event-stream 返回 base64 音频分片；中途失败发送 error 事件
// @Tags 语音
// @Accept json
// @Produce text/event-stream
// @Param request body api.SynthesizeRequest true "合成请求"
// @Success 200 {string} string "SSE 流"
// @Failure 400 {object} Response "无效请求"
// @Security ApiKeyAuth
// @Router /api/v1/speech/stream [post]
func (h *SpeechHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, types.NewError(types.ErrInternalError, "streaming not supported"), h.logger)
		return
	}

	// 连接建立失败时尚未写出任何内容，仍可返回普通错误响应
	stream, err := h.synth.Stream(r.Context(), req)
	if err != nil {
		WriteAnyError(w, err, h.logger)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // 禁用 nginx 缓冲
	w.WriteHeader(http.StatusOK)

	seq, received := 0, 0
	for chunk := range stream {
		if chunk.Err != nil {
			typed := toTypedError(chunk.Err)
			h.logger.Warn("stream interrupted",
				zap.Int("chunks", seq),
				zap.Int("bytes", received),
				zap.Error(chunk.Err))
			_ = writeSSE(w, "error", api.StreamError{
				Code:     string(typed.Code),
				Message:  typed.Message,
				Received: received,
			})
			flusher.Flush()
			return
		}
		if len(chunk.Data) == 0 {
			continue
		}
		if err := writeSSE(w, "", api.StreamChunk{Seq: seq, Audio: chunk.Data}); err != nil {
			// 客户端断开；ctx 取消后上游协程自行退出
			h.logger.Debug("stream write failed", zap.Error(err))
			return
		}
		flusher.Flush()
		seq++
		received += len(chunk.Data)
	}

	_, _ = w.Write([]byte("data: [DONE]\n\n"))
	flusher.Flush()
}

// HandleListAudio 列出可用于克隆的源音频
// @Summary 源音频列表
// @Tags 音色
// @Produce json
// @Success 200 {object} Response "按目录分组的音频文件"
// @Security ApiKeyAuth
// @Router /api/v1/voices/audio [get]
func (h *SpeechHandler) HandleListAudio(w http.ResponseWriter, r *http.Request) {
	if h.audio == nil {
		WriteErrorMessage(w, http.StatusNotFound, types.ErrNotFound, "audio directory not configured", h.logger)
		return
	}
	listing, err := h.audio.List()
	if err != nil {
		WriteAnyError(w, err, h.logger)
		return
	}
	WriteSuccess(w, map[string]any{
		"dir":    h.audio.Dir(),
		"total":  listing.Total(),
		"groups": listing,
	})
}

// decodeRequest 解码请求体并套用默认参数；失败时已写出错误响应
func (h *SpeechHandler) decodeRequest(w http.ResponseWriter, r *http.Request) (*speech.Request, bool) {
	if !ValidateContentType(w, r, h.logger) {
		return nil, false
	}
	var body api.SynthesizeRequest
	if err := DecodeJSONBody(w, r, &body, h.logger); err != nil {
		return nil, false
	}
	if strings.TrimSpace(body.Text) == "" {
		WriteError(w, types.NewValidationError("text", "must not be empty"), h.logger)
		return nil, false
	}
	return h.defaults.NewRequest(body.Text, &body.Overrides), true
}

// writePartial 流式中途失败但已收到音频：音频请求返回 206 并在
// X-Stream-Error 中给出错误码；JSON 请求返回错误信封并附带部分音频。
func (h *SpeechHandler) writePartial(w http.ResponseWriter, r *http.Request, res *orchestrator.Result, err error) {
	typed := toTypedError(err)
	h.logger.Warn("returning partial audio",
		zap.String("code", string(typed.Code)),
		zap.Int("bytes", len(res.Audio)),
		zap.Error(err))

	if wantsAudio(r) {
		w.Header().Set("Content-Type", AudioContentType(res.Format))
		w.Header().Set("Content-Length", strconv.Itoa(len(res.Audio)))
		w.Header().Set("X-Synthesis-Mode", res.Mode.String())
		w.Header().Set(StreamErrorHeader, string(typed.Code))
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write(res.Audio)
		return
	}

	status := errorStatus(typed)
	data := toSynthesizeResponse(res)
	data.Partial = true
	WriteJSON(w, status, Response{
		Success: false,
		Data:    data,
		Error: &ErrorInfo{
			Code:       string(typed.Code),
			Message:    typed.Message,
			Retryable:  typed.Retryable,
			HTTPStatus: status,
		},
		Timestamp: time.Now(),
		RequestID: w.Header().Get(RequestIDHeader),
	})
}

// StreamErrorHeader 部分音频响应中携带中断错误码的头
const StreamErrorHeader = "X-Stream-Error"

func toSynthesizeResponse(res *orchestrator.Result) api.SynthesizeResponse {
	return api.SynthesizeResponse{
		Mode:    res.Mode.String(),
		Format:  res.Format,
		Audio:   res.Audio,
		URL:     res.URL,
		Size:    len(res.Audio),
		JobID:   res.JobID,
		TraceID: res.TraceID,
		Cached:  res.Cached,
		Info:    res.Info,
	}
}

// wantsAudio 判断客户端是否要求直接返回音频
func wantsAudio(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mediaType := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if strings.HasPrefix(mediaType, "audio/") || mediaType == "application/octet-stream" {
			return true
		}
	}
	return false
}

// AudioContentType 音频格式对应的 MIME 类型
func AudioContentType(format string) string {
	switch strings.ToLower(format) {
	case "mp3":
		return "audio/mpeg"
	case "wav":
		return "audio/wav"
	case "flac":
		return "audio/flac"
	case "pcm":
		return "audio/L16"
	default:
		return "application/octet-stream"
	}
}

// writeSSE 写出一个 SSE 事件；event 为空时为默认 message 事件
func writeSSE(w http.ResponseWriter, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	var b strings.Builder
	if event != "" {
		b.WriteString("event: ")
		b.WriteString(event)
		b.WriteString("\n")
	}
	b.WriteString("data: ")
	b.Write(data)
	b.WriteString("\n\n")
	_, err = w.Write([]byte(b.String()))
	return err
}
