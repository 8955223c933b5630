package voiceclone

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/BaSui01/speechflow/config"
	"github.com/BaSui01/speechflow/speech"
	"github.com/BaSui01/speechflow/speech/audiostore"
	"github.com/BaSui01/speechflow/speech/gate"
	"github.com/BaSui01/speechflow/speech/orchestrator"
	"github.com/BaSui01/speechflow/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// 上游删除超过 7 天未使用的克隆音色
const providerExpiry = 7 * 24 * time.Hour

// Synthesizer 试听合成
type Synthesizer interface {
	Synthesize(ctx context.Context, req *speech.Request) (*orchestrator.Result, error)
}

// Options 克隆参数
type Options struct {
	DemoText            string
	DemoModel           string
	NoiseReduction      bool
	VolumeNormalization bool
	Accuracy            float64
	ExpiryWarnDays      int
	BatchConcurrency    int
	TestText            string
}

// OptionsFromConfig 从配置构造克隆参数
func OptionsFromConfig(cfg config.VoiceCloneConfig) Options {
	return Options{
		DemoText:            cfg.DemoText,
		DemoModel:           cfg.DemoModel,
		NoiseReduction:      cfg.NoiseReduction,
		VolumeNormalization: cfg.VolumeNormalization,
		Accuracy:            cfg.Accuracy,
		ExpiryWarnDays:      cfg.ExpiryWarnDays,
		BatchConcurrency:    cfg.BatchConcurrency,
		TestText:            cfg.TestText,
	}
}

// CloneInput 一次克隆的输入
type CloneInput struct {
	AudioFile   string `json:"audio_file"`
	VoiceID     string `json:"voice_id"`
	PromptAudio string `json:"prompt_audio,omitempty"`
	PromptText  string `json:"prompt_text,omitempty"`
}

// BatchItem 批量克隆中单个文件的结果
type BatchItem struct {
	File    string `json:"file"`
	VoiceID string `json:"voice_id"`
	Error   string `json:"error,omitempty"`
}

// BatchResult 批量克隆结果
type BatchResult struct {
	Items     []BatchItem `json:"items"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
}

// TestResult 批量试听中单个音色的结果
type TestResult struct {
	VoiceID string `json:"voice_id"`
	Mode    string `json:"mode,omitempty"`
	Size    int    `json:"size"`
	Error   string `json:"error,omitempty"`
}

// ExpiringVoice 即将被上游删除的音色
type ExpiringVoice struct {
	Voice
	ExpiresAt time.Time `json:"expires_at"`
}

// Manager 音色克隆管理
type Manager struct {
	provider speech.VoiceProvider
	gate     *gate.Gate
	store    Store
	audio    *audiostore.Store
	synth    Synthesizer
	defaults speech.Defaults
	opts     Options
	onClone  func(err error)
	logger   *zap.Logger
	now      func() time.Time
}

// NewManager creates a manager.
func NewManager(
	provider speech.VoiceProvider,
	g *gate.Gate,
	store Store,
	audio *audiostore.Store,
	synth Synthesizer,
	defaults speech.Defaults,
	opts Options,
	logger *zap.Logger,
) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.BatchConcurrency <= 0 {
		opts.BatchConcurrency = 1
	}
	if opts.ExpiryWarnDays <= 0 {
		opts.ExpiryWarnDays = 6
	}
	return &Manager{
		provider: provider,
		gate:     g,
		store:    store,
		audio:    audio,
		synth:    synth,
		defaults: defaults,
		opts:     opts,
		logger:   logger.With(zap.String("component", "voiceclone")),
		now:      time.Now,
	}
}

// SetCloneObserver registers a hook receiving the outcome of every Clone call.
func (m *Manager) SetCloneObserver(fn func(err error)) {
	m.onClone = fn
}

// Clone 上传源音频（及可选提示音频）并克隆音色，成功后登记
func (m *Manager) Clone(ctx context.Context, in CloneInput) (*Voice, error) {
	v, err := m.clone(ctx, in)
	if m.onClone != nil {
		m.onClone(err)
	}
	return v, err
}

func (m *Manager) clone(ctx context.Context, in CloneInput) (*Voice, error) {
	if err := ValidateVoiceID(in.VoiceID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.AudioFile) == "" {
		return nil, types.NewValidationError("audio_file", "must not be empty")
	}
	if in.PromptAudio != "" && strings.TrimSpace(in.PromptText) == "" {
		return nil, types.NewValidationError("prompt_text", "is required with prompt_audio")
	}
	if _, err := m.store.Get(ctx, in.VoiceID); err == nil {
		return nil, types.Errorf(types.ErrConflict, "voice %q already exists", in.VoiceID)
	} else if !types.IsErrorCode(err, types.ErrNotFound) {
		return nil, err
	}

	fileID, err := m.upload(ctx, speech.PurposeVoiceClone, in.AudioFile)
	if err != nil {
		return nil, err
	}

	var promptID int64
	if in.PromptAudio != "" {
		if promptID, err = m.upload(ctx, speech.PurposePromptAudio, in.PromptAudio); err != nil {
			return nil, err
		}
	}

	req := &speech.CloneRequest{
		FileID:              fileID,
		VoiceID:             in.VoiceID,
		PromptFileID:        promptID,
		PromptText:          in.PromptText,
		NoiseReduction:      m.opts.NoiseReduction,
		VolumeNormalization: m.opts.VolumeNormalization,
		Accuracy:            m.opts.Accuracy,
		DemoText:            m.opts.DemoText,
		DemoModel:           m.opts.DemoModel,
	}
	res, err := gate.CallTyped(m.gate, ctx, "voice.clone", func(ctx context.Context) (*speech.CloneResult, error) {
		return m.provider.CloneVoice(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	promptFile := ""
	if in.PromptAudio != "" {
		promptFile = filepath.Base(in.PromptAudio)
	}
	now := m.now()
	v := &Voice{
		VoiceID:      in.VoiceID,
		SourceFile:   filepath.Base(in.AudioFile),
		PromptFile:   promptFile,
		PromptText:   in.PromptText,
		FileID:       fileID,
		PromptFileID: promptID,
		DemoAudioURL: res.DemoAudioURL,
		CreatedAt:    now,
		LastUsedAt:   now,
	}
	if err := m.store.Create(ctx, v); err != nil {
		return nil, err
	}

	m.logger.Info("voice cloned",
		zap.String("voice_id", v.VoiceID),
		zap.String("source", v.SourceFile),
		zap.Bool("prompt", promptID != 0))
	return v, nil
}

// CloneBatch 批量克隆。files 为空时克隆 main 目录下的全部源音频。
// 音色 ID 由文件名按顺序生成，之后以有限并发执行克隆。
func (m *Manager) CloneBatch(ctx context.Context, files []string) (*BatchResult, error) {
	if len(files) == 0 {
		var err error
		if files, err = m.audio.MainFiles(); err != nil {
			return nil, err
		}
	}
	if len(files) == 0 {
		return nil, types.NewValidationError("files", "no audio files to clone")
	}

	existing, err := m.store.List(ctx)
	if err != nil {
		return nil, err
	}
	taken := make(map[string]bool, len(existing)+len(files))
	for _, v := range existing {
		taken[v.VoiceID] = true
	}

	items := make([]BatchItem, len(files))
	for i, f := range files {
		id := DeriveVoiceID(f, func(s string) bool { return taken[s] })
		taken[id] = true
		items[i] = BatchItem{File: f, VoiceID: id}
	}

	var mu sync.Mutex
	result := &BatchResult{Items: items}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.BatchConcurrency)
	for i := range items {
		item := &items[i]
		g.Go(func() error {
			_, err := m.Clone(gctx, CloneInput{AudioFile: item.File, VoiceID: item.VoiceID})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				item.Error = err.Error()
				result.Failed++
				m.logger.Warn("batch clone item failed", zap.String("file", item.File), zap.Error(err))
				return nil
			}
			result.Succeeded++
			return nil
		})
	}
	_ = g.Wait()

	m.logger.Info("batch clone finished",
		zap.Int("total", len(items)),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed))
	return result, nil
}

// List 列出本地登记的音色
func (m *Manager) List(ctx context.Context) ([]Voice, error) {
	return m.store.List(ctx)
}

// RemoteVoices 列出上游的克隆音色
func (m *Manager) RemoteVoices(ctx context.Context) ([]speech.RemoteVoice, error) {
	return gate.CallTyped(m.gate, ctx, "voice.list", func(ctx context.Context) ([]speech.RemoteVoice, error) {
		return m.provider.ListVoices(ctx)
	})
}

// Expiring 返回最近使用时间早于提醒阈值的音色
func (m *Manager) Expiring(ctx context.Context) ([]ExpiringVoice, error) {
	voices, err := m.store.List(ctx)
	if err != nil {
		return nil, err
	}
	cutoff := m.now().Add(-time.Duration(m.opts.ExpiryWarnDays) * 24 * time.Hour)
	var out []ExpiringVoice
	for _, v := range voices {
		last := v.LastUsedAt
		if last.IsZero() {
			last = v.CreatedAt
		}
		if last.Before(cutoff) {
			out = append(out, ExpiringVoice{Voice: v, ExpiresAt: last.Add(providerExpiry)})
		}
	}
	return out, nil
}

// Delete 先删除上游音色再删除本地登记
func (m *Manager) Delete(ctx context.Context, voiceID string) error {
	if strings.TrimSpace(voiceID) == "" {
		return types.NewValidationError("voice_id", "must not be empty")
	}
	err := m.gate.Call(ctx, "voice.delete", func(ctx context.Context) error {
		return m.provider.DeleteVoice(ctx, voiceID)
	})
	if err != nil {
		return err
	}

	if err := m.store.Delete(ctx, voiceID); err != nil && !types.IsErrorCode(err, types.ErrNotFound) {
		return err
	}
	m.logger.Info("voice deleted", zap.String("voice_id", voiceID))
	return nil
}

// Test 以指定音色合成一段试听音频
func (m *Manager) Test(ctx context.Context, voiceID, text string) (*orchestrator.Result, error) {
	if strings.TrimSpace(voiceID) == "" {
		return nil, types.NewValidationError("voice_id", "must not be empty")
	}
	if strings.TrimSpace(text) == "" {
		text = m.opts.TestText
	}
	req := m.defaults.NewRequest(text, &speech.Overrides{VoiceID: voiceID})
	return m.synth.Synthesize(ctx, req)
}

// TestBatch 用同一段文本并发试听全部已登记音色，单个失败记录在结果中。
// 试听成功同样会刷新音色的最近使用时间。
func (m *Manager) TestBatch(ctx context.Context, text string) ([]TestResult, error) {
	voices, err := m.store.List(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]TestResult, len(voices))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.BatchConcurrency)
	for i, v := range voices {
		results[i].VoiceID = v.VoiceID
		g.Go(func() error {
			res, err := m.Test(gctx, v.VoiceID, text)
			if err != nil {
				results[i].Error = err.Error()
				return nil
			}
			results[i].Mode = res.Mode.String()
			results[i].Size = len(res.Audio)
			return nil
		})
	}
	_ = g.Wait()
	return results, nil
}

// Touch 记录音色被使用，刷新上游过期计时
func (m *Manager) Touch(ctx context.Context, voiceID string) {
	if voiceID == "" {
		return
	}
	if err := m.store.Touch(ctx, voiceID, m.now()); err != nil {
		m.logger.Warn("touch voice failed", zap.String("voice_id", voiceID), zap.Error(err))
	}
}

// upload 每次尝试重新打开文件，读取器不能跨重试复用
func (m *Manager) upload(ctx context.Context, purpose speech.FilePurpose, name string) (int64, error) {
	// 先做本地检查，格式或大小不合法时不发起网络调用
	f, info, err := m.audio.Open(name)
	if err != nil {
		return 0, err
	}
	f.Close()

	return gate.CallTyped(m.gate, ctx, "voice.upload", func(ctx context.Context) (int64, error) {
		f, _, err := m.audio.Open(name)
		if err != nil {
			return 0, err
		}
		defer f.Close()
		return m.provider.UploadFile(ctx, purpose, info.Name, f)
	})
}
