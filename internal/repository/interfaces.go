// Package repository 定义数据访问接口
// 接口抽象使依赖注入和单元测试成为可能
package repository

import (
	"context"

	"github.com/ashwinyue/convlog/internal/model"
)

// ========== ConversationStore 接口 ==========

// ConversationStore 对话记录数据访问接口
type ConversationStore interface {
	Create(ctx context.Context, conv *model.Conversation) error
	List(ctx context.Context, f *model.ConversationFilter, offset, limit int) ([]*model.Conversation, int64, error)
	GetByID(ctx context.Context, id int64) (*model.Conversation, error)
	DeleteByIDs(ctx context.Context, ids []int64) (int64, error)
	DeleteByFilter(ctx context.Context, f *model.ConversationFilter) (int64, error)
	DeleteBefore(ctx context.Context, cutoff int64, limit int) (int64, error)
	Stats(ctx context.Context, f *model.ConversationFilter) (*model.ConversationStats, error)
	Count(ctx context.Context) (int64, error)
	TimeRange(ctx context.Context) (oldest, newest int64, err error)
}

// ========== ArchiveStore 接口 ==========

// ArchiveStore 归档数据访问接口
type ArchiveStore interface {
	ArchiveBefore(ctx context.Context, cutoff int64, limit int, convert ArchiveConverter) (int64, error)
	List(ctx context.Context, f *model.ConversationFilter, offset, limit int) ([]*model.ConversationArchive, int64, error)
	GetByID(ctx context.Context, id int64) (*model.ConversationArchive, error)
	DeleteBefore(ctx context.Context, cutoff int64, limit int) (int64, error)
	Count(ctx context.Context) (int64, error)
	Optimize(ctx context.Context) error
}

// ========== SettingStore 接口 ==========

// SettingStore 设置数据访问接口
type SettingStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// 确保实现了接口
var (
	_ ConversationStore = (*ConversationRepository)(nil)
	_ ArchiveStore      = (*ArchiveRepository)(nil)
	_ SettingStore      = (*SettingRepository)(nil)
)
