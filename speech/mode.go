package speech

// Mode 合成执行路径
type Mode int

const (
	ModeSync Mode = iota
	ModeStreaming
	ModeAsync
)

// String returns the mode name used in logs and metrics.
func (m Mode) String() string {
	switch m {
	case ModeSync:
		return "sync"
	case ModeStreaming:
		return "streaming"
	case ModeAsync:
		return "async"
	default:
		return "unknown"
	}
}

// ModeOptions 模式选择所需的配置
type ModeOptions struct {
	AsyncEnabled   bool
	AsyncThreshold int
	StreamEnabled  bool
}

// SelectMode picks the execution path for a text of textLen characters.
// Priority is fixed: long text goes async when enabled, otherwise streaming
// when enabled, otherwise sync. Streaming is never chosen for text that
// qualifies for async.
func SelectMode(textLen int, opts ModeOptions) Mode {
	switch {
	case opts.AsyncEnabled && textLen > opts.AsyncThreshold:
		return ModeAsync
	case opts.StreamEnabled:
		return ModeStreaming
	default:
		return ModeSync
	}
}
