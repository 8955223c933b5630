package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/BaSui01/speechflow/api"
	"github.com/BaSui01/speechflow/internal/ctxkeys"
	"github.com/BaSui01/speechflow/speech/chatmode"
	"github.com/BaSui01/speechflow/types"
	"go.uber.org/zap"
)

// =============================================================================
// 💬 聊天语音回复 Handler
// =============================================================================

// Replier 决定回复形式并在需要时合成语音，由 chatmode.Responder 实现
type Replier interface {
	Respond(ctx context.Context, chatID, text string) (*chatmode.Reply, error)
}

var _ Replier = (*chatmode.Responder)(nil)

// ChatHandler 聊天语音回复处理器
type ChatHandler struct {
	replier Replier
	store   chatmode.Store
	logger  *zap.Logger
}

// NewChatHandler 创建聊天处理器
func NewChatHandler(replier Replier, store chatmode.Store, logger *zap.Logger) *ChatHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatHandler{
		replier: replier,
		store:   store,
		logger:  logger.With(zap.String("handler", "chat")),
	}
}

// HandleRequestVoiceReply 标记会话的下一条回复使用语音（request_voice_reply 工具）
// @Summary 请求语音回复
// @Tags 聊天
// @Accept json
// @Produce json
// @Param id path string true "会话 ID"
// @Param request body api.VoiceReplyRequest false "情绪"
// @Success 200 {object} Response "已标记"
// @Security ApiKeyAuth
// @Router /api/v1/chats/{id}/voice-reply [post]
func (h *ChatHandler) HandleRequestVoiceReply(w http.ResponseWriter, r *http.Request) {
	chatID, ok := h.chatID(w, r)
	if !ok {
		return
	}
	var req api.VoiceReplyRequest
	if err := DecodeOptionalJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	if err := h.store.MarkPending(r.Context(), chatID, req.Emotion); err != nil {
		WriteAnyError(w, err, h.logger)
		return
	}
	h.logger.Debug("voice reply requested", zap.String("chat_id", chatID), zap.String("emotion", req.Emotion))
	WriteSuccess(w, map[string]any{"chat_id": chatID, "pending": true})
}

// HandleGetVoiceAlways 查询常驻语音模式
// @Summary 常驻语音状态
// @Tags 聊天
// @Produce json
// @Param id path string true "会话 ID"
// @Success 200 {object} api.VoiceAlwaysResponse "当前状态"
// @Security ApiKeyAuth
// @Router /api/v1/chats/{id}/voice-always [get]
func (h *ChatHandler) HandleGetVoiceAlways(w http.ResponseWriter, r *http.Request) {
	chatID, ok := h.chatID(w, r)
	if !ok {
		return
	}
	on, err := h.store.IsAlways(r.Context(), chatID)
	if err != nil {
		WriteAnyError(w, err, h.logger)
		return
	}
	WriteSuccess(w, api.VoiceAlwaysResponse{ChatID: chatID, Enabled: on})
}

// HandleSetVoiceAlways 设置或切换常驻语音模式
// @Summary 常驻语音开关
// @Description enabled 缺省时切换当前状态
// @Tags 聊天
// @Accept json
// @Produce json
// @Param id path string true "会话 ID"
// @Param request body api.VoiceAlwaysRequest false "开关"
// @Success 200 {object} api.VoiceAlwaysResponse "新状态"
// @Security ApiKeyAuth
// @Router /api/v1/chats/{id}/voice-always [put]
func (h *ChatHandler) HandleSetVoiceAlways(w http.ResponseWriter, r *http.Request) {
	chatID, ok := h.chatID(w, r)
	if !ok {
		return
	}
	var req api.VoiceAlwaysRequest
	if err := DecodeOptionalJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	ctx := r.Context()
	var (
		on  bool
		err error
	)
	if req.Enabled == nil {
		on, err = chatmode.ToggleAlways(ctx, h.store, chatID)
	} else {
		on = *req.Enabled
		err = h.store.SetAlways(ctx, chatID, on)
	}
	if err != nil {
		WriteAnyError(w, err, h.logger)
		return
	}
	h.logger.Info("voice always updated", zap.String("chat_id", chatID), zap.Bool("enabled", on))
	WriteSuccess(w, api.VoiceAlwaysResponse{ChatID: chatID, Enabled: on})
}

// HandleVoiceGuidelines 返回常驻语音会话的写作要求，供生成回复前注入提示词
// @Summary 语音写作要求
// @Description 常驻语音关闭时 active 为 false；查询不会消费待发语音标记
// @Tags 聊天
// @Produce json
// @Param id path string true "会话 ID"
// @Success 200 {object} api.VoiceGuidelinesResponse "写作要求"
// @Security ApiKeyAuth
// @Router /api/v1/chats/{id}/voice-guidelines [get]
func (h *ChatHandler) HandleVoiceGuidelines(w http.ResponseWriter, r *http.Request) {
	chatID, ok := h.chatID(w, r)
	if !ok {
		return
	}
	text, active, err := chatmode.Guidelines(r.Context(), h.store, chatID)
	if err != nil {
		WriteAnyError(w, err, h.logger)
		return
	}
	WriteSuccess(w, api.VoiceGuidelinesResponse{ChatID: chatID, Active: active, Guidelines: text})
}

// HandleReply 决定一条回复以文字还是语音发送
// @Summary 生成回复
// @Description 按常驻模式、待发标记、随机概率的优先级决定是否合成语音
// @Tags 聊天
// @Accept json
// @Produce json
// @Param id path string true "会话 ID"
// @Param request body api.ChatReplyRequest true "回复文本"
// @Success 200 {object} api.ChatReplyResponse "回复"
// @Security ApiKeyAuth
// @Router /api/v1/chats/{id}/reply [post]
func (h *ChatHandler) HandleReply(w http.ResponseWriter, r *http.Request) {
	chatID, ok := h.chatID(w, r)
	if !ok {
		return
	}
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	var req api.ChatReplyRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		WriteError(w, types.NewValidationError("text", "must not be empty"), h.logger)
		return
	}

	ctx := ctxkeys.WithChatID(r.Context(), chatID)
	reply, err := h.replier.Respond(ctx, chatID, req.Text)
	if err != nil {
		WriteAnyError(w, err, h.logger)
		return
	}

	resp := api.ChatReplyResponse{
		ChatID:  chatID,
		Text:    reply.Text,
		Voice:   reply.Decision.Voice,
		Emotion: reply.Decision.Emotion,
		Reason:  string(reply.Decision.Reason),
	}
	if reply.Audio != nil {
		resp.Format = reply.Audio.Format
		resp.Audio = reply.Audio.Audio
		resp.URL = reply.Audio.URL
	}
	WriteSuccess(w, resp)
}

func (h *ChatHandler) chatID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		WriteError(w, types.NewValidationError("chat_id", "must not be empty"), h.logger)
		return "", false
	}
	return id, true
}
