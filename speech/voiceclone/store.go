package voiceclone

import (
	"context"
	"errors"
	"time"

	"github.com/BaSui01/speechflow/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Voice 本地登记的克隆音色
type Voice struct {
	VoiceID      string    `gorm:"primaryKey;size:256" json:"voice_id"`
	SourceFile   string    `gorm:"size:512" json:"source_file"`
	PromptFile   string    `gorm:"size:512" json:"prompt_file,omitempty"`
	PromptText   string    `gorm:"type:text" json:"prompt_text,omitempty"`
	FileID       int64     `json:"file_id"`
	PromptFileID int64     `json:"prompt_file_id,omitempty"`
	DemoAudioURL string    `gorm:"size:1024" json:"demo_audio_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	LastUsedAt   time.Time `gorm:"index" json:"last_used_at"`
}

// TableName 表名
func (Voice) TableName() string { return "cloned_voices" }

// Store 克隆音色登记表
type Store interface {
	Create(ctx context.Context, v *Voice) error
	Get(ctx context.Context, voiceID string) (*Voice, error)
	List(ctx context.Context) ([]Voice, error)
	Delete(ctx context.Context, voiceID string) error
	Touch(ctx context.Context, voiceID string, at time.Time) error
}

// GormStore 基于 GORM 的 Store 实现
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a store backed by db.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// AutoMigrate 创建表结构，用于未使用迁移工具的部署与测试
func (s *GormStore) AutoMigrate() error {
	return s.db.AutoMigrate(&Voice{})
}

// Create 新增音色，ID 已存在时返回 CONFLICT
func (s *GormStore) Create(ctx context.Context, v *Voice) error {
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(v)
	if res.Error != nil {
		return types.NewError(types.ErrInternalError, "save voice").WithCause(res.Error)
	}
	if res.RowsAffected == 0 {
		return types.Errorf(types.ErrConflict, "voice %q already exists", v.VoiceID)
	}
	return nil
}

// Get 查询音色，不存在时返回 NOT_FOUND
func (s *GormStore) Get(ctx context.Context, voiceID string) (*Voice, error) {
	var v Voice
	err := s.db.WithContext(ctx).Where("voice_id = ?", voiceID).First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.Errorf(types.ErrNotFound, "voice %q not found", voiceID)
	}
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "load voice").WithCause(err)
	}
	return &v, nil
}

// List 按创建时间列出全部音色
func (s *GormStore) List(ctx context.Context) ([]Voice, error) {
	var voices []Voice
	if err := s.db.WithContext(ctx).Order("created_at ASC").Find(&voices).Error; err != nil {
		return nil, types.NewError(types.ErrInternalError, "list voices").WithCause(err)
	}
	return voices, nil
}

// Delete 删除音色，不存在时返回 NOT_FOUND
func (s *GormStore) Delete(ctx context.Context, voiceID string) error {
	res := s.db.WithContext(ctx).Where("voice_id = ?", voiceID).Delete(&Voice{})
	if res.Error != nil {
		return types.NewError(types.ErrInternalError, "delete voice").WithCause(res.Error)
	}
	if res.RowsAffected == 0 {
		return types.Errorf(types.ErrNotFound, "voice %q not found", voiceID)
	}
	return nil
}

// Touch 更新最近使用时间；未登记的音色（系统音色）忽略
func (s *GormStore) Touch(ctx context.Context, voiceID string, at time.Time) error {
	err := s.db.WithContext(ctx).Model(&Voice{}).
		Where("voice_id = ?", voiceID).
		Update("last_used_at", at).Error
	if err != nil {
		return types.NewError(types.ErrInternalError, "touch voice").WithCause(err)
	}
	return nil
}
