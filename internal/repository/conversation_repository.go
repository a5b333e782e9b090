package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/ashwinyue/convlog/internal/model"
)

// deleteChunkSize 单条 DELETE 语句中 IN 列表的最大长度
// sqlite 默认绑定参数上限为 999
const deleteChunkSize = 500

// ConversationRepository 对话记录仓库
type ConversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository 创建对话记录仓库
func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// applyFilter 应用筛选条件
// 查询、统计、按条件删除必须共用此函数，保证"筛出什么就删什么"
func applyFilter(tx *gorm.DB, f *model.ConversationFilter) *gorm.DB {
	if f == nil {
		return tx
	}
	if f.UserID != 0 {
		tx = tx.Where("user_id = ?", f.UserID)
	}
	if f.Username != "" {
		tx = tx.Where("username = ?", f.Username)
	}
	if f.ModelName != "" {
		tx = tx.Where("model_name = ?", f.ModelName)
	}
	if f.StartTime > 0 {
		tx = tx.Where("created_at >= ?", f.StartTime)
	}
	if f.EndTime > 0 {
		tx = tx.Where("created_at <= ?", f.EndTime)
	}
	return tx
}

// filtered 每次返回新的查询链，避免 Count 与 Find 共享语句状态
func (r *ConversationRepository) filtered(ctx context.Context, f *model.ConversationFilter) *gorm.DB {
	return applyFilter(r.db.WithContext(ctx).Model(&model.Conversation{}), f)
}

// Create 创建对话记录
func (r *ConversationRepository) Create(ctx context.Context, conv *model.Conversation) error {
	return r.db.WithContext(ctx).Create(conv).Error
}

// List 分页查询对话记录
// 按 created_at、id 倒序，total 为满足条件的总数
func (r *ConversationRepository) List(ctx context.Context, f *model.ConversationFilter, offset, limit int) ([]*model.Conversation, int64, error) {
	var total int64
	if err := r.filtered(ctx, f).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count conversations: %w", err)
	}

	conversations := make([]*model.Conversation, 0)
	if total == 0 || offset < 0 || int64(offset) >= total {
		return conversations, total, nil
	}

	err := r.filtered(ctx, f).
		Order("created_at DESC").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&conversations).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list conversations: %w", err)
	}
	return conversations, total, nil
}

// GetByID 根据 ID 获取对话记录，不存在时返回 gorm.ErrRecordNotFound
func (r *ConversationRepository) GetByID(ctx context.Context, id int64) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// DeleteByIDs 按 ID 批量删除，返回实际删除的行数
// 所有分片在同一事务内执行，失败时整体回滚
func (r *ConversationRepository) DeleteByIDs(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for start := 0; start < len(ids); start += deleteChunkSize {
			end := start + deleteChunkSize
			if end > len(ids) {
				end = len(ids)
			}
			result := tx.Where("id IN ?", ids[start:end]).Delete(&model.Conversation{})
			if result.Error != nil {
				return fmt.Errorf("failed to delete conversations: %w", result.Error)
			}
			deleted += result.RowsAffected
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// DeleteByFilter 按条件删除，返回实际删除的行数
// 调用方负责拒绝空条件；空条件时 gorm 也会返回 ErrMissingWhereClause
func (r *ConversationRepository) DeleteByFilter(ctx context.Context, f *model.ConversationFilter) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := applyFilter(tx, f).Delete(&model.Conversation{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete conversations by filter: %w", result.Error)
		}
		deleted = result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// DeleteBefore 删除一批 created_at 早于 cutoff 的记录，返回本批删除数
func (r *ConversationRepository) DeleteBefore(ctx context.Context, cutoff int64, limit int) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []int64
		if err := tx.Model(&model.Conversation{}).
			Where("created_at < ?", cutoff).
			Order("id ASC").
			Limit(limit).
			Pluck("id", &ids).Error; err != nil {
			return fmt.Errorf("failed to select expired conversations: %w", err)
		}
		if len(ids) == 0 {
			return nil
		}
		result := tx.Where("id IN ?", ids).Delete(&model.Conversation{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete expired conversations: %w", result.Error)
		}
		deleted = result.RowsAffected
		return nil
	})
	return deleted, err
}

// Stats 按条件统计记录数和 token 用量
func (r *ConversationRepository) Stats(ctx context.Context, f *model.ConversationFilter) (*model.ConversationStats, error) {
	var stats model.ConversationStats
	err := r.filtered(ctx, f).
		Select("COUNT(*) AS total_count, " +
			"COALESCE(SUM(total_tokens), 0) AS total_tokens, " +
			"COALESCE(SUM(prompt_tokens), 0) AS total_prompt_tokens, " +
			"COALESCE(SUM(completion_tokens), 0) AS total_completion_tokens").
		Scan(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query conversation stats: %w", err)
	}
	return &stats, nil
}

// Count 统计记录总数
func (r *ConversationRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Conversation{}).Count(&count).Error
	return count, err
}

// TimeRange 返回最早和最晚的 created_at，表为空时均为 0
func (r *ConversationRepository) TimeRange(ctx context.Context) (oldest, newest int64, err error) {
	var row struct {
		Oldest int64
		Newest int64
	}
	err = r.db.WithContext(ctx).Model(&model.Conversation{}).
		Select("COALESCE(MIN(created_at), 0) AS oldest, COALESCE(MAX(created_at), 0) AS newest").
		Scan(&row).Error
	if err != nil {
		return 0, 0, fmt.Errorf("failed to query time range: %w", err)
	}
	return row.Oldest, row.Newest, nil
}
