package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/ashwinyue/convlog/internal/model"
)

// ArchiveConverter 将对话记录转换为归档记录（通常包含压缩）
type ArchiveConverter func(conv *model.Conversation) (*model.ConversationArchive, error)

// ArchiveRepository 归档仓库
type ArchiveRepository struct {
	db *gorm.DB
}

// NewArchiveRepository 创建归档仓库
func NewArchiveRepository(db *gorm.DB) *ArchiveRepository {
	return &ArchiveRepository{db: db}
}

// ArchiveBefore 将一批 created_at 早于 cutoff 的对话移入归档表
// 插入归档与删除原记录在同一事务内完成，返回本批归档数
func (r *ArchiveRepository) ArchiveBefore(ctx context.Context, cutoff int64, limit int, convert ArchiveConverter) (int64, error) {
	var archived int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var conversations []*model.Conversation
		if err := tx.Where("created_at < ?", cutoff).
			Order("id ASC").
			Limit(limit).
			Find(&conversations).Error; err != nil {
			return fmt.Errorf("failed to select conversations to archive: %w", err)
		}
		if len(conversations) == 0 {
			return nil
		}

		archives := make([]*model.ConversationArchive, 0, len(conversations))
		ids := make([]int64, 0, len(conversations))
		for _, conv := range conversations {
			archive, err := convert(conv)
			if err != nil {
				return fmt.Errorf("failed to convert conversation %d: %w", conv.ID, err)
			}
			archives = append(archives, archive)
			ids = append(ids, conv.ID)
		}

		if err := tx.CreateInBatches(archives, 100).Error; err != nil {
			return fmt.Errorf("failed to insert archives: %w", err)
		}
		result := tx.Where("id IN ?", ids).Delete(&model.Conversation{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete archived conversations: %w", result.Error)
		}
		archived = int64(len(archives))
		return nil
	})
	if err != nil {
		return 0, err
	}
	return archived, nil
}

// List 分页查询归档记录，筛选语义与主表一致
func (r *ArchiveRepository) List(ctx context.Context, f *model.ConversationFilter, offset, limit int) ([]*model.ConversationArchive, int64, error) {
	var total int64
	if err := applyFilter(r.db.WithContext(ctx).Model(&model.ConversationArchive{}), f).
		Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count archives: %w", err)
	}

	archives := make([]*model.ConversationArchive, 0)
	if total == 0 || offset < 0 || int64(offset) >= total {
		return archives, total, nil
	}

	err := applyFilter(r.db.WithContext(ctx).Model(&model.ConversationArchive{}), f).
		Order("created_at DESC").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&archives).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list archives: %w", err)
	}
	return archives, total, nil
}

// GetByID 获取归档记录，不存在时返回 gorm.ErrRecordNotFound
func (r *ArchiveRepository) GetByID(ctx context.Context, id int64) (*model.ConversationArchive, error) {
	var archive model.ConversationArchive
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&archive).Error; err != nil {
		return nil, err
	}
	return &archive, nil
}

// DeleteBefore 删除一批 created_at 早于 cutoff 的归档记录
func (r *ArchiveRepository) DeleteBefore(ctx context.Context, cutoff int64, limit int) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []int64
		if err := tx.Model(&model.ConversationArchive{}).
			Where("created_at < ?", cutoff).
			Order("id ASC").
			Limit(limit).
			Pluck("id", &ids).Error; err != nil {
			return fmt.Errorf("failed to select expired archives: %w", err)
		}
		if len(ids) == 0 {
			return nil
		}
		result := tx.Where("id IN ?", ids).Delete(&model.ConversationArchive{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete expired archives: %w", result.Error)
		}
		deleted = result.RowsAffected
		return nil
	})
	return deleted, err
}

// Count 统计归档记录总数
func (r *ArchiveRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.ConversationArchive{}).Count(&count).Error
	return count, err
}

// Optimize 整理对话表和归档表，回收删除后的空间
func (r *ArchiveRepository) Optimize(ctx context.Context) error {
	db := r.db.WithContext(ctx)
	var stmts []string
	switch db.Dialector.Name() {
	case "postgres":
		stmts = []string{"VACUUM ANALYZE conversations", "VACUUM ANALYZE conversations_archive"}
	case "mysql":
		stmts = []string{"OPTIMIZE TABLE conversations", "OPTIMIZE TABLE conversations_archive"}
	case "sqlite":
		stmts = []string{"VACUUM"}
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to optimize tables (%s): %w", stmt, err)
		}
	}
	return nil
}
