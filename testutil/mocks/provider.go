// MockProvider 是语音合成上游的测试模拟实现。
//
// 支持固定音频、流式分片、异步状态序列与错误注入场景。
package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/BaSui01/speechflow/speech"
)

// --- MockProvider 结构 ---

// 调用名
const (
	OpSynthesize  = "synthesize"
	OpStream      = "stream"
	OpSubmitAsync = "submit_async"
	OpQueryAsync  = "query_async"
	OpFetchAudio  = "fetch_audio"
)

// MockProvider 是 speech.Provider 的模拟实现
type MockProvider struct {
	mu sync.Mutex

	// 响应配置
	audio        []byte
	streamChunks [][]byte
	streamErr    error
	asyncStates  []speech.TaskState
	asyncReady   bool
	failMessage  string

	// 错误注入
	err       error
	failures  []error
	queryErrs []error

	// 行为控制
	delay time.Duration

	// 调用记录
	calls    map[string]int
	requests []*speech.Request
}

var _ speech.Provider = (*MockProvider)(nil)

// --- 构造函数和 Builder 方法 ---

// NewMockProvider 创建新的 MockProvider
func NewMockProvider() *MockProvider {
	return &MockProvider{
		audio:       []byte("mock-audio"),
		asyncStates: []speech.TaskState{speech.TaskSucceeded},
		calls:       make(map[string]int),
	}
}

// WithAudio 设置返回的音频数据
func (m *MockProvider) WithAudio(audio []byte) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audio = audio
	return m
}

// WithStreamChunks 设置流式分片
func (m *MockProvider) WithStreamChunks(chunks ...[]byte) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streamChunks = chunks
	return m
}

// WithStreamError 设置分片发送完后的流中断错误
func (m *MockProvider) WithStreamError(err error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streamErr = err
	return m
}

// WithError 设置所有调用都返回的错误
func (m *MockProvider) WithError(err error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithFailures 设置前 N 次合成/提交调用依次返回的错误
func (m *MockProvider) WithFailures(errs ...error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = errs
	return m
}

// WithAsyncStates 设置 QueryAsync 依次返回的状态，最后一个重复
func (m *MockProvider) WithAsyncStates(states ...speech.TaskState) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.asyncStates = states
	return m
}

// WithQueryErrors 设置前 N 次 QueryAsync 依次返回的错误
func (m *MockProvider) WithQueryErrors(errs ...error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queryErrs = errs
	return m
}

// WithAsyncReady 让 SubmitAsync 直接返回音频
func (m *MockProvider) WithAsyncReady() *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.asyncReady = true
	return m
}

// WithFailMessage 设置任务失败时的上游信息
func (m *MockProvider) WithFailMessage(msg string) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failMessage = msg
	return m
}

// WithDelay 设置每次调用的延迟
func (m *MockProvider) WithDelay(d time.Duration) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// --- 查询方法 ---

// Calls 返回某类调用的次数
func (m *MockProvider) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// TotalCalls 返回所有调用次数之和
func (m *MockProvider) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

// Requests 返回收到的请求
func (m *MockProvider) Requests() []*speech.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*speech.Request(nil), m.requests...)
}

// --- speech.Provider 实现 ---

// Name 返回名称
func (m *MockProvider) Name() string { return "mock" }

// Synthesize 同步合成
func (m *MockProvider) Synthesize(ctx context.Context, req *speech.Request) (*speech.Audio, error) {
	if err := m.begin(ctx, OpSynthesize, req); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if req.OutputFormat == speech.OutputURL {
		return &speech.Audio{URL: "https://cdn.example.com/mock.mp3", Format: req.Audio.Format}, nil
	}
	return &speech.Audio{Data: append([]byte(nil), m.audio...), Format: req.Audio.Format}, nil
}

// SynthesizeStream 流式合成
func (m *MockProvider) SynthesizeStream(ctx context.Context, req *speech.Request) (<-chan speech.StreamChunk, error) {
	if err := m.begin(ctx, OpStream, req); err != nil {
		return nil, err
	}
	m.mu.Lock()
	chunks := m.streamChunks
	if len(chunks) == 0 {
		chunks = [][]byte{m.audio}
	}
	streamErr := m.streamErr
	m.mu.Unlock()

	ch := make(chan speech.StreamChunk)
	go func() {
		defer close(ch)
		for _, c := range chunks {
			select {
			case ch <- speech.StreamChunk{Data: c}:
			case <-ctx.Done():
				return
			}
		}
		if streamErr != nil {
			select {
			case ch <- speech.StreamChunk{Err: streamErr}:
			case <-ctx.Done():
			}
		}
	}()
	return ch, nil
}

// SubmitAsync 提交异步任务
func (m *MockProvider) SubmitAsync(ctx context.Context, req *speech.Request) (*speech.AsyncSubmission, error) {
	if err := m.begin(ctx, OpSubmitAsync, req); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.asyncReady {
		return &speech.AsyncSubmission{Ready: &speech.AudioRef{Data: append([]byte(nil), m.audio...)}}, nil
	}
	return &speech.AsyncSubmission{TaskID: "task-1"}, nil
}

// QueryAsync 按配置的序列返回任务状态
func (m *MockProvider) QueryAsync(ctx context.Context, taskID string) (*speech.AsyncStatus, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[OpQueryAsync]++
	if m.err != nil {
		return nil, m.err
	}
	if len(m.queryErrs) > 0 {
		err := m.queryErrs[0]
		m.queryErrs = m.queryErrs[1:]
		return nil, err
	}

	state := m.asyncStates[0]
	if len(m.asyncStates) > 1 {
		m.asyncStates = m.asyncStates[1:]
	}
	status := &speech.AsyncStatus{TaskID: taskID, State: state}
	switch state {
	case speech.TaskSucceeded:
		status.Result = speech.AudioRef{FileID: "file-1"}
	case speech.TaskFailed:
		status.Message = m.failMessage
	}
	return status, nil
}

// FetchAudio 返回配置的音频
func (m *MockProvider) FetchAudio(ctx context.Context, ref speech.AudioRef) ([]byte, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[OpFetchAudio]++
	if len(ref.Data) > 0 {
		return ref.Data, nil
	}
	return append([]byte(nil), m.audio...), nil
}

// --- 内部 ---

func (m *MockProvider) begin(ctx context.Context, op string, req *speech.Request) error {
	if err := m.wait(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[op]++
	m.requests = append(m.requests, req.Clone())
	if m.err != nil {
		return m.err
	}
	if len(m.failures) > 0 {
		err := m.failures[0]
		m.failures = m.failures[1:]
		return err
	}
	return nil
}

func (m *MockProvider) wait(ctx context.Context) error {
	m.mu.Lock()
	d := m.delay
	m.mu.Unlock()
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
