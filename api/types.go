package api

import (
	"time"

	"github.com/BaSui01/speechflow/speech"
)

// =============================================================================
// 语音合成类型
// =============================================================================

// SynthesizeRequest 表示一次语音合成请求。
// 覆盖字段内联在请求体中，零值字段沿用服务端默认参数。
// @Description 语音合成请求结构
type SynthesizeRequest struct {
	// 待合成文本
	Text string `json:"text" example:"你好，欢迎使用语音合成服务。" binding:"required"`
	speech.Overrides
}

// SynthesizeResponse 表示语音合成结果。
// @Description 语音合成响应结构
type SynthesizeResponse struct {
	// 执行路径（sync、streaming、async）
	Mode string `json:"mode" example:"sync"`
	// 音频格式
	Format string `json:"format" example:"mp3"`
	// 音频内容（base64）
	Audio []byte `json:"audio,omitempty"`
	// 上游返回的音频链接（output_format=url）
	URL string `json:"url,omitempty"`
	// 音频字节数
	Size int `json:"size"`
	// 异步任务 ID
	JobID string `json:"job_id,omitempty"`
	// 上游 trace id
	TraceID string `json:"trace_id,omitempty"`
	// 是否命中缓存
	Cached bool `json:"cached,omitempty"`
	// 上游音频元数据
	Info *speech.AudioInfo `json:"info,omitempty"`
	// 流式中途失败时为 true，Audio 只包含已收到的部分
	Partial bool `json:"partial,omitempty"`
}

// StreamChunk 表示流式合成的一个 SSE 事件。
// @Description 流式音频分片
type StreamChunk struct {
	// 分片序号，从 0 开始
	Seq int `json:"seq"`
	// 音频分片（base64）
	Audio []byte `json:"audio"`
}

// StreamError 表示流式合成中断事件。
// @Description 流式中断事件
type StreamError struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Received int    `json:"received"`
}

// =============================================================================
// 音色克隆类型
// =============================================================================

// CloneVoiceRequest 表示一次音色克隆请求。
// @Description 音色克隆请求结构
type CloneVoiceRequest struct {
	// audio_dir 下的源音频文件名
	AudioFile string `json:"audio_file" example:"speaker.mp3" binding:"required"`
	// 目标音色 ID
	VoiceID string `json:"voice_id" example:"speaker_cloned" binding:"required"`
	// 可选提示音频
	PromptAudio string `json:"prompt_audio,omitempty"`
	// 提示音频对应的文本
	PromptText string `json:"prompt_text,omitempty"`
}

// BatchCloneRequest 表示批量克隆请求；Files 为空时克隆 main 目录下全部文件。
// @Description 批量克隆请求结构
type BatchCloneRequest struct {
	Files []string `json:"files,omitempty"`
}

// TestVoiceRequest 表示试听请求；Text 为空时使用配置的试听文本。
// @Description 试听请求结构
type TestVoiceRequest struct {
	Text string `json:"text,omitempty"`
}

// VoiceResponse 表示已登记的克隆音色。
// @Description 克隆音色
type VoiceResponse struct {
	VoiceID      string     `json:"voice_id"`
	SourceFile   string     `json:"source_file"`
	PromptFile   string     `json:"prompt_file,omitempty"`
	DemoAudioURL string     `json:"demo_audio_url,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	LastUsedAt   time.Time  `json:"last_used_at"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	Expiring     bool       `json:"expiring"`
}

// =============================================================================
// 聊天语音回复类型
// =============================================================================

// VoiceReplyRequest 标记下一条回复使用语音。
// @Description 语音回复请求
type VoiceReplyRequest struct {
	// 可选情绪
	Emotion string `json:"emotion,omitempty" example:"happy"`
}

// VoiceAlwaysRequest 设置聊天的常驻语音模式；Enabled 缺省时切换当前状态。
// @Description 常驻语音开关
type VoiceAlwaysRequest struct {
	Enabled *bool `json:"enabled,omitempty"`
}

// VoiceAlwaysResponse 常驻语音模式的当前状态。
// @Description 常驻语音状态
type VoiceAlwaysResponse struct {
	ChatID  string `json:"chat_id"`
	Enabled bool   `json:"enabled"`
}

// VoiceGuidelinesResponse 会话的语音文本写作要求；Active 为 false 时 Guidelines 为空。
// @Description 语音写作要求
type VoiceGuidelinesResponse struct {
	ChatID     string `json:"chat_id"`
	Active     bool   `json:"active"`
	Guidelines string `json:"guidelines,omitempty"`
}

// ChatReplyRequest 待发送的回复文本。
// @Description 聊天回复请求
type ChatReplyRequest struct {
	Text string `json:"text" binding:"required"`
}

// ChatReplyResponse 回复的发送形式；Voice 为 true 时携带音频。
// @Description 聊天回复响应
type ChatReplyResponse struct {
	ChatID  string `json:"chat_id"`
	Text    string `json:"text"`
	Voice   bool   `json:"voice"`
	Emotion string `json:"emotion,omitempty"`
	Reason  string `json:"reason"`
	Format  string `json:"format,omitempty"`
	Audio   []byte `json:"audio,omitempty"`
	URL     string `json:"url,omitempty"`
}
