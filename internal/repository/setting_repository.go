package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ashwinyue/convlog/internal/model"
)

// SettingRepository 系统设置仓库
type SettingRepository struct {
	db *gorm.DB
}

// NewSettingRepository 创建设置仓库
func NewSettingRepository(db *gorm.DB) *SettingRepository {
	return &SettingRepository{db: db}
}

// Get 读取设置项，不存在时返回 ("", false, nil)
func (r *SettingRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var setting model.Setting
	err := r.db.WithContext(ctx).Where("setting_key = ?", key).First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return setting.Value, true, nil
}

// Set 写入设置项（存在则覆盖）
func (r *SettingRepository) Set(ctx context.Context, key, value string) error {
	setting := &model.Setting{Key: key, Value: value, UpdatedAt: time.Now().Unix()}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "setting_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(setting).Error
}
