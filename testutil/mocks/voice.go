// MockVoiceProvider 是音色克隆上游的测试模拟实现。
package mocks

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/BaSui01/speechflow/speech"
)

// MockVoiceProvider 是 speech.VoiceProvider 的模拟实现
type MockVoiceProvider struct {
	mu sync.Mutex

	nextFileID int64
	cloneDelay time.Duration
	voices     map[string]speech.RemoteVoice

	// 错误注入
	uploadErr error
	cloneErrs map[string]error
	deleteErr error

	// 调用记录
	uploads  []UploadCall
	clones   []speech.CloneRequest
	deletes  []string
	inflight int
	peak     int
}

// UploadCall 记录一次上传
type UploadCall struct {
	Purpose  speech.FilePurpose
	Filename string
	Size     int
}

var _ speech.VoiceProvider = (*MockVoiceProvider)(nil)

// NewMockVoiceProvider 创建新的 MockVoiceProvider
func NewMockVoiceProvider() *MockVoiceProvider {
	return &MockVoiceProvider{
		nextFileID: 100,
		voices:     make(map[string]speech.RemoteVoice),
		cloneErrs:  make(map[string]error),
	}
}

// WithUploadError 设置上传错误
func (m *MockVoiceProvider) WithUploadError(err error) *MockVoiceProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadErr = err
	return m
}

// WithCloneError 设置某个音色 ID 克隆时返回的错误
func (m *MockVoiceProvider) WithCloneError(voiceID string, err error) *MockVoiceProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cloneErrs[voiceID] = err
	return m
}

// WithCloneDelay 设置克隆调用耗时
func (m *MockVoiceProvider) WithCloneDelay(d time.Duration) *MockVoiceProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cloneDelay = d
	return m
}

// WithDeleteError 设置删除错误
func (m *MockVoiceProvider) WithDeleteError(err error) *MockVoiceProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteErr = err
	return m
}

// Uploads 返回上传记录
func (m *MockVoiceProvider) Uploads() []UploadCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]UploadCall(nil), m.uploads...)
}

// Clones 返回克隆请求记录
func (m *MockVoiceProvider) Clones() []speech.CloneRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]speech.CloneRequest(nil), m.clones...)
}

// Deletes 返回删除记录
func (m *MockVoiceProvider) Deletes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deletes...)
}

// PeakConcurrency 返回克隆调用的最大并发数
func (m *MockVoiceProvider) PeakConcurrency() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peak
}

// UploadFile 记录上传并分配文件 ID
func (m *MockVoiceProvider) UploadFile(ctx context.Context, purpose speech.FilePurpose, filename string, r io.Reader) (int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.uploadErr != nil {
		return 0, m.uploadErr
	}
	m.uploads = append(m.uploads, UploadCall{Purpose: purpose, Filename: filename, Size: len(data)})
	m.nextFileID++
	return m.nextFileID, nil
}

// CloneVoice 登记音色
func (m *MockVoiceProvider) CloneVoice(ctx context.Context, req *speech.CloneRequest) (*speech.CloneResult, error) {
	m.mu.Lock()
	m.inflight++
	if m.inflight > m.peak {
		m.peak = m.inflight
	}
	delay := m.cloneDelay
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.inflight--
		m.mu.Unlock()
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(delay):
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.clones = append(m.clones, *req)
	if err := m.cloneErrs[req.VoiceID]; err != nil {
		return nil, err
	}
	m.voices[req.VoiceID] = speech.RemoteVoice{VoiceID: req.VoiceID}
	return &speech.CloneResult{VoiceID: req.VoiceID, DemoAudioURL: "https://cdn.example.com/" + req.VoiceID + ".mp3"}, nil
}

// DeleteVoice 删除音色
func (m *MockVoiceProvider) DeleteVoice(ctx context.Context, voiceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes = append(m.deletes, voiceID)
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.voices, voiceID)
	return nil
}

// ListVoices 列出音色
func (m *MockVoiceProvider) ListVoices(ctx context.Context) ([]speech.RemoteVoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]speech.RemoteVoice, 0, len(m.voices))
	for _, v := range m.voices {
		out = append(out, v)
	}
	return out, nil
}
