package audiostore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/BaSui01/speechflow/config"
	"github.com/BaSui01/speechflow/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// 源音频分组
const (
	GroupMain    = "main"
	GroupPrompts = "prompts"
	GroupRoot    = "root"
)

// Extensions 支持的源音频扩展名
var Extensions = []string{".mp3", ".m4a", ".wav", ".flac"}

// AudioFile 源音频文件信息
type AudioFile struct {
	Name     string    `json:"name"`
	Path     string    `json:"path"`
	Size     int64     `json:"size"`
	SizeText string    `json:"size_text"`
	Modified time.Time `json:"modified"`
}

// Listing 按目录分组的源音频
type Listing map[string][]AudioFile

// Total returns the number of files across all groups.
func (l Listing) Total() int {
	n := 0
	for _, files := range l {
		n += len(files)
	}
	return n
}

// Store 本地音频文件存储：只读源音频目录与可写缓存目录
type Store struct {
	dir      string
	cacheDir string
	maxAge   time.Duration
	maxBytes int64
	logger   *zap.Logger
	now      func() time.Time
}

// New creates a store from configuration.
func New(cfg config.AudioConfig, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		dir:      cfg.Dir,
		cacheDir: cfg.CacheDir,
		maxAge:   cfg.CacheMaxAge,
		maxBytes: cfg.MaxUploadBytes,
		logger:   logger.With(zap.String("component", "audiostore")),
		now:      time.Now,
	}
}

// Dir returns the source audio root.
func (s *Store) Dir() string { return s.dir }

// IsAudioFile reports whether name has a supported extension.
func IsAudioFile(name string) bool {
	return slices.Contains(Extensions, strings.ToLower(filepath.Ext(name)))
}

// Resolve 在 dir、dir/main、dir/prompts 中依次查找文件。
// 只接受不含路径穿越的相对名称。
func (s *Store) Resolve(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", types.NewValidationError("audio_file", "must not be empty")
	}
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", types.NewValidationError("audio_file", "must be a name relative to the audio directory, got %q", name)
	}

	for _, dir := range []string{s.dir, filepath.Join(s.dir, GroupMain), filepath.Join(s.dir, GroupPrompts)} {
		path := filepath.Join(dir, clean)
		info, err := os.Stat(path)
		if err == nil && info.Mode().IsRegular() {
			return path, nil
		}
	}
	return "", types.Errorf(types.ErrNotFound, "audio file %q not found", name)
}

// Open 打开源音频用于上传，检查格式与大小
func (s *Store) Open(name string) (io.ReadCloser, *AudioFile, error) {
	path, err := s.Resolve(name)
	if err != nil {
		return nil, nil, err
	}
	if !IsAudioFile(path) {
		return nil, nil, types.NewValidationError("audio_file", "unsupported format %q, want one of %s",
			filepath.Ext(path), strings.Join(Extensions, " "))
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, nil, types.NewError(types.ErrInternalError, "stat audio file").WithCause(err)
	}
	if s.maxBytes > 0 && info.Size() > s.maxBytes {
		return nil, nil, types.NewValidationError("audio_file", "size %s exceeds limit %s",
			FormatSize(info.Size()), FormatSize(s.maxBytes))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, types.NewError(types.ErrInternalError, "open audio file").WithCause(err)
	}
	return f, fileInfo(path, info), nil
}

// List 列出 main、prompts 与根目录下的源音频
func (s *Store) List() (Listing, error) {
	out := Listing{GroupMain: {}, GroupPrompts: {}, GroupRoot: {}}
	targets := []struct {
		group string
		dir   string
	}{
		{GroupMain, filepath.Join(s.dir, GroupMain)},
		{GroupPrompts, filepath.Join(s.dir, GroupPrompts)},
		{GroupRoot, s.dir},
	}

	for _, t := range targets {
		entries, err := os.ReadDir(t.dir)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, types.NewError(types.ErrInternalError, "list audio files").WithCause(err)
		}
		for _, e := range entries {
			if !e.Type().IsRegular() || !IsAudioFile(e.Name()) {
				continue
			}
			info, err := e.Info()
			if err != nil {
				continue
			}
			out[t.group] = append(out[t.group], *fileInfo(filepath.Join(t.dir, e.Name()), info))
		}
		sort.Slice(out[t.group], func(i, j int) bool { return out[t.group][i].Name < out[t.group][j].Name })
	}
	return out, nil
}

// MainFiles 返回 main 目录下的源音频名称，用于批量克隆
func (s *Store) MainFiles() ([]string, error) {
	listing, err := s.List()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(listing[GroupMain]))
	for _, f := range listing[GroupMain] {
		names = append(names, f.Name)
	}
	return names, nil
}

// WriteCache 以 uuid 文件名写入合成音频，返回路径
func (s *Store) WriteCache(data []byte, format string) (string, error) {
	if err := os.MkdirAll(s.cacheDir, 0o755); err != nil {
		return "", types.NewError(types.ErrInternalError, "create cache dir").WithCause(err)
	}
	if format == "" {
		format = "mp3"
	}
	path := filepath.Join(s.cacheDir, fmt.Sprintf("%s.%s", uuid.NewString(), format))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", types.NewError(types.ErrInternalError, "write cache file").WithCause(err)
	}
	return path, nil
}

// CleanupCache 删除超过最大保留时间的缓存文件，返回删除数量
func (s *Store) CleanupCache() (int, error) {
	entries, err := os.ReadDir(s.cacheDir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	cutoff := s.now().Add(-s.maxAge)
	deleted := 0
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.cacheDir, e.Name())); err == nil {
			deleted++
		}
	}
	if deleted > 0 {
		s.logger.Info("audio cache cleaned", zap.Int("deleted", deleted))
	}
	return deleted, nil
}

// RunCleanup 按间隔清理缓存，直到 ctx 结束
func (s *Store) RunCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 || s.maxAge <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := s.CleanupCache(); err != nil {
			s.logger.Warn("audio cache cleanup failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// FormatSize 格式化文件大小，如 1.5MB
func FormatSize(n int64) string {
	size := float64(n)
	for _, unit := range []string{"B", "KB", "MB", "GB"} {
		if size < 1024 {
			return fmt.Sprintf("%.1f%s", size, unit)
		}
		size /= 1024
	}
	return fmt.Sprintf("%.1fTB", size)
}

func fileInfo(path string, info fs.FileInfo) *AudioFile {
	return &AudioFile{
		Name:     info.Name(),
		Path:     path,
		Size:     info.Size(),
		SizeText: FormatSize(info.Size()),
		Modified: info.ModTime(),
	}
}
