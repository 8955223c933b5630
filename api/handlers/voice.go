package handlers

import (
	"context"
	"net/http"

	"github.com/BaSui01/speechflow/api"
	"github.com/BaSui01/speechflow/speech"
	"github.com/BaSui01/speechflow/speech/orchestrator"
	"github.com/BaSui01/speechflow/speech/voiceclone"
	"go.uber.org/zap"
)

// =============================================================================
// 🎙️ 音色克隆 Handler
// =============================================================================

// VoiceManager 音色管理，由 voiceclone.Manager 实现
type VoiceManager interface {
	Clone(ctx context.Context, in voiceclone.CloneInput) (*voiceclone.Voice, error)
	CloneBatch(ctx context.Context, files []string) (*voiceclone.BatchResult, error)
	List(ctx context.Context) ([]voiceclone.Voice, error)
	RemoteVoices(ctx context.Context) ([]speech.RemoteVoice, error)
	Expiring(ctx context.Context) ([]voiceclone.ExpiringVoice, error)
	Delete(ctx context.Context, voiceID string) error
	Test(ctx context.Context, voiceID, text string) (*orchestrator.Result, error)
	TestBatch(ctx context.Context, text string) ([]voiceclone.TestResult, error)
}

// VoiceHandler 音色处理器
type VoiceHandler struct {
	voices VoiceManager
	logger *zap.Logger
}

// NewVoiceHandler 创建音色处理器
func NewVoiceHandler(voices VoiceManager, logger *zap.Logger) *VoiceHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VoiceHandler{
		voices: voices,
		logger: logger.With(zap.String("handler", "voice")),
	}
}

// HandleList 列出本地登记的克隆音色，标注即将过期的音色
// @Summary 克隆音色列表
// @Tags 音色
// @Produce json
// @Success 200 {object} Response "音色列表"
// @Security ApiKeyAuth
// @Router /api/v1/voices [get]
func (h *VoiceHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	voices, err := h.voices.List(ctx)
	if err != nil {
		WriteAnyError(w, err, h.logger)
		return
	}
	expiring, err := h.voices.Expiring(ctx)
	if err != nil {
		WriteAnyError(w, err, h.logger)
		return
	}

	expires := make(map[string]voiceclone.ExpiringVoice, len(expiring))
	for _, e := range expiring {
		expires[e.VoiceID] = e
	}

	out := make([]api.VoiceResponse, 0, len(voices))
	for _, v := range voices {
		item := toVoiceResponse(v)
		if e, ok := expires[v.VoiceID]; ok {
			at := e.ExpiresAt
			item.ExpiresAt = &at
			item.Expiring = true
		}
		out = append(out, item)
	}
	WriteSuccess(w, out)
}

// HandleListRemote 列出上游账户下的克隆音色
// @Summary 上游音色列表
// @Tags 音色
// @Produce json
// @Success 200 {object} Response "上游音色"
// @Failure 502 {object} Response "上游错误"
// @Security ApiKeyAuth
// @Router /api/v1/voices/remote [get]
func (h *VoiceHandler) HandleListRemote(w http.ResponseWriter, r *http.Request) {
	voices, err := h.voices.RemoteVoices(r.Context())
	if err != nil {
		WriteAnyError(w, err, h.logger)
		return
	}
	if voices == nil {
		voices = []speech.RemoteVoice{}
	}
	WriteSuccess(w, voices)
}

// HandleClone 克隆一个音色
// @Summary 克隆音色
// @Tags 音色
// @Accept json
// @Produce json
// @Param request body api.CloneVoiceRequest true "克隆请求"
// @Success 201 {object} Response "克隆成功"
// @Failure 400 {object} Response "无效请求"
// @Failure 409 {object} Response "音色 ID 已存在"
// @Security ApiKeyAuth
// @Router /api/v1/voices/clone [post]
func (h *VoiceHandler) HandleClone(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	var req api.CloneVoiceRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	voice, err := h.voices.Clone(r.Context(), voiceclone.CloneInput{
		AudioFile:   req.AudioFile,
		VoiceID:     req.VoiceID,
		PromptAudio: req.PromptAudio,
		PromptText:  req.PromptText,
	})
	if err != nil {
		WriteAnyError(w, err, h.logger)
		return
	}

	WriteJSON(w, http.StatusCreated, Response{
		Success:   true,
		Data:      toVoiceResponse(*voice),
		Timestamp: voice.CreatedAt,
		RequestID: w.Header().Get(RequestIDHeader),
	})
}

// HandleCloneBatch 批量克隆
// @Summary 批量克隆音色
// @Description files 为空时克隆 main 目录下全部源音频；单个失败不影响其余文件
// @Tags 音色
// @Accept json
// @Produce json
// @Param request body api.BatchCloneRequest false "批量克隆请求"
// @Success 200 {object} Response "批量结果"
// @Security ApiKeyAuth
// @Router /api/v1/voices/clone/batch [post]
func (h *VoiceHandler) HandleCloneBatch(w http.ResponseWriter, r *http.Request) {
	var req api.BatchCloneRequest
	if err := DecodeOptionalJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	result, err := h.voices.CloneBatch(r.Context(), req.Files)
	if err != nil {
		WriteAnyError(w, err, h.logger)
		return
	}
	WriteSuccess(w, result)
}

// HandleDelete 删除音色
// @Summary 删除音色
// @Tags 音色
// @Param id path string true "音色 ID"
// @Success 200 {object} Response "已删除"
// @Security ApiKeyAuth
// @Router /api/v1/voices/{id} [delete]
func (h *VoiceHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.voices.Delete(r.Context(), id); err != nil {
		WriteAnyError(w, err, h.logger)
		return
	}
	WriteSuccess(w, map[string]string{"voice_id": id})
}

// HandleTest 以指定音色合成试听音频
// @Summary 试听音色
// @Tags 音色
// @Accept json
// @Produce json,audio/mpeg
// @Param id path string true "音色 ID"
// @Param request body api.TestVoiceRequest false "试听文本"
// @Success 200 {object} api.SynthesizeResponse "试听音频"
// @Security ApiKeyAuth
// @Router /api/v1/voices/{id}/test [post]
func (h *VoiceHandler) HandleTest(w http.ResponseWriter, r *http.Request) {
	var req api.TestVoiceRequest
	if err := DecodeOptionalJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	result, err := h.voices.Test(r.Context(), r.PathValue("id"), req.Text)
	if err != nil {
		WriteAnyError(w, err, h.logger)
		return
	}
	if wantsAudio(r) && len(result.Audio) > 0 {
		w.Header().Set("Content-Type", AudioContentType(result.Format))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(result.Audio)
		return
	}
	WriteSuccess(w, toSynthesizeResponse(result))
}

func toVoiceResponse(v voiceclone.Voice) api.VoiceResponse {
	return api.VoiceResponse{
		VoiceID:      v.VoiceID,
		SourceFile:   v.SourceFile,
		PromptFile:   v.PromptFile,
		DemoAudioURL: v.DemoAudioURL,
		CreatedAt:    v.CreatedAt,
		LastUsedAt:   v.LastUsedAt,
	}
}

// 编译期检查
var _ VoiceManager = (*voiceclone.Manager)(nil)

// HandleTestBatch 批量试听
// @Summary 试听全部已登记音色
// @Description 使用同一段文本并发试听，单个失败记录在对应条目中
// @Tags 音色
// @Accept json
// @Produce json
// @Param request body api.TestVoiceRequest false "试听请求"
// @Success 200 {object} Response "逐音色结果"
// @Security ApiKeyAuth
// @Router /api/v1/voices/test [post]
func (h *VoiceHandler) HandleTestBatch(w http.ResponseWriter, r *http.Request) {
	var req api.TestVoiceRequest
	if err := DecodeOptionalJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	results, err := h.voices.TestBatch(r.Context(), req.Text)
	if err != nil {
		WriteAnyError(w, err, h.logger)
		return
	}
	WriteSuccess(w, results)
}
