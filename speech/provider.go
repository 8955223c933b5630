package speech

import (
	"context"
	"io"
)

// Audio 是一次合成的结果
type Audio struct {
	Data    []byte     `json:"-"`
	URL     string     `json:"url,omitempty"`
	Format  string     `json:"format"`
	TraceID string     `json:"trace_id,omitempty"`
	Info    *AudioInfo `json:"info,omitempty"`
}

// AudioInfo 上游返回的音频元数据
type AudioInfo struct {
	LengthMS   int `json:"audio_length"`
	SampleRate int `json:"audio_sample_rate"`
	Size       int `json:"audio_size"`
	Bitrate    int `json:"bitrate"`
	Characters int `json:"usage_characters"`
}

// StreamChunk 流式合成的一个音频分片；Err 非空时流结束
type StreamChunk struct {
	Data []byte
	Err  error
}

// TaskState 上游异步任务状态
type TaskState string

const (
	TaskPending   TaskState = "pending"
	TaskRunning   TaskState = "running"
	TaskSucceeded TaskState = "succeeded"
	TaskFailed    TaskState = "failed"
)

// AudioRef 指向一段已合成音频：内联数据、下载链接或上游文件 ID，三选一
type AudioRef struct {
	Data   []byte `json:"-"`
	URL    string `json:"url,omitempty"`
	FileID string `json:"file_id,omitempty"`
}

// IsZero reports whether the reference points at nothing.
func (r AudioRef) IsZero() bool {
	return len(r.Data) == 0 && r.URL == "" && r.FileID == ""
}

// AsyncSubmission 异步任务提交结果；Ready 非空表示上游已直接返回音频
type AsyncSubmission struct {
	TaskID string
	Ready  *AudioRef
}

// AsyncStatus 异步任务查询结果
type AsyncStatus struct {
	TaskID  string
	State   TaskState
	Result  AudioRef
	Message string
}

// Provider 是语音合成上游的客户端接口
type Provider interface {
	// Name 返回上游名称
	Name() string

	// Synthesize 同步合成
	Synthesize(ctx context.Context, req *Request) (*Audio, error)

	// SynthesizeStream 建立流式合成连接；连接建立成功后返回分片通道，
	// 通道在流结束或出错后关闭
	SynthesizeStream(ctx context.Context, req *Request) (<-chan StreamChunk, error)

	// SubmitAsync 提交长文本异步任务
	SubmitAsync(ctx context.Context, req *Request) (*AsyncSubmission, error)

	// QueryAsync 查询异步任务状态
	QueryAsync(ctx context.Context, taskID string) (*AsyncStatus, error)

	// FetchAudio 取回音频引用指向的数据
	FetchAudio(ctx context.Context, ref AudioRef) ([]byte, error)
}

// FilePurpose 上传文件用途
type FilePurpose string

const (
	PurposeVoiceClone  FilePurpose = "voice_clone"
	PurposePromptAudio FilePurpose = "prompt_audio"
)

// CloneRequest 音色克隆参数
type CloneRequest struct {
	FileID              int64
	VoiceID             string
	PromptFileID        int64
	PromptText          string
	NoiseReduction      bool
	VolumeNormalization bool
	Accuracy            float64
	DemoText            string
	DemoModel           string
}

// CloneResult 音色克隆结果
type CloneResult struct {
	VoiceID      string
	DemoAudioURL string
}

// RemoteVoice 上游登记的音色
type RemoteVoice struct {
	VoiceID     string   `json:"voice_id"`
	Description []string `json:"description,omitempty"`
	CreatedTime string   `json:"created_time,omitempty"`
}

// VoiceProvider 是音色克隆上游的客户端接口
type VoiceProvider interface {
	// UploadFile 上传源音频或提示音频，返回文件 ID
	UploadFile(ctx context.Context, purpose FilePurpose, filename string, r io.Reader) (int64, error)

	// CloneVoice 以已上传的音频克隆音色
	CloneVoice(ctx context.Context, req *CloneRequest) (*CloneResult, error)

	// DeleteVoice 删除克隆音色
	DeleteVoice(ctx context.Context, voiceID string) error

	// ListVoices 列出上游的克隆音色
	ListVoices(ctx context.Context) ([]RemoteVoice, error)
}
