package chatmode

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/BaSui01/speechflow/speech"
)

// Store 会话语音标记存储
type Store interface {
	// MarkPending 标记会话下一条回复使用语音，emotion 可为空
	MarkPending(ctx context.Context, chatID, emotion string) error
	// ConsumePending 读取并清除待发标记
	ConsumePending(ctx context.Context, chatID string) (pending bool, emotion string, err error)
	// SetAlways 设置常驻语音开关
	SetAlways(ctx context.Context, chatID string, on bool) error
	// IsAlways 查询常驻语音开关
	IsAlways(ctx context.Context, chatID string) (bool, error)
}

// ToggleAlways 翻转常驻语音开关并返回新状态
func ToggleAlways(ctx context.Context, s Store, chatID string) (bool, error) {
	on, err := s.IsAlways(ctx, chatID)
	if err != nil {
		return false, err
	}
	if err := s.SetAlways(ctx, chatID, !on); err != nil {
		return false, err
	}
	return !on, nil
}

// normalizeEmotion 不支持的情绪按未指定处理
func normalizeEmotion(emotion string) string {
	if slices.Contains(speech.Emotions, emotion) {
		return emotion
	}
	return ""
}

type pendingMark struct {
	emotion   string
	expiresAt time.Time
}

// MemoryStore 进程内存实现
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	pending map[string]pendingMark
	always  map[string]bool
}

// NewMemoryStore 创建内存存储，ttl<=0 时待发标记不过期
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		now:     time.Now,
		pending: make(map[string]pendingMark),
		always:  make(map[string]bool),
	}
}

func (s *MemoryStore) MarkPending(_ context.Context, chatID, emotion string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := pendingMark{emotion: normalizeEmotion(emotion)}
	if s.ttl > 0 {
		m.expiresAt = s.now().Add(s.ttl)
	}
	s.pending[chatID] = m
	return nil
}

func (s *MemoryStore) ConsumePending(_ context.Context, chatID string) (bool, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.pending[chatID]
	if !ok {
		return false, "", nil
	}
	delete(s.pending, chatID)
	if !m.expiresAt.IsZero() && !s.now().Before(m.expiresAt) {
		return false, "", nil
	}
	return true, m.emotion, nil
}

func (s *MemoryStore) SetAlways(_ context.Context, chatID string, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if on {
		s.always[chatID] = true
	} else {
		delete(s.always, chatID)
	}
	return nil
}

func (s *MemoryStore) IsAlways(_ context.Context, chatID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.always[chatID], nil
}
