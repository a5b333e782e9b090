// Package conversation 提供对话记录的查询、详情、统计与清理
package conversation

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/ashwinyue/convlog/internal/config"
	"github.com/ashwinyue/convlog/internal/model"
	"github.com/ashwinyue/convlog/internal/repository"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// Service 对话记录服务
type Service struct {
	store           repository.ConversationStore
	defaultPageSize int
	maxPageSize     int
}

// NewService 创建对话记录服务，cfg 为 nil 时使用默认分页设置
func NewService(store repository.ConversationStore, cfg *config.ConversationConfig) *Service {
	s := &Service{
		store:           store,
		defaultPageSize: defaultPageSize,
		maxPageSize:     maxPageSize,
	}
	if cfg != nil {
		if cfg.DefaultPageSize > 0 {
			s.defaultPageSize = cfg.DefaultPageSize
		}
		if cfg.MaxPageSize >= s.defaultPageSize {
			s.maxPageSize = cfg.MaxPageSize
		}
	}
	return s
}

// ListResult 分页查询结果
type ListResult struct {
	Items      []*model.Conversation `json:"items"`
	Total      int64                 `json:"total"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"page_size"`
	TotalPages int64                 `json:"total_pages"`
}

// normalizePage 修正分页参数
func (s *Service) normalizePage(f *model.ConversationFilter) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = s.defaultPageSize
	}
	if f.PageSize > s.maxPageSize {
		f.PageSize = s.maxPageSize
	}
}

// validateTimes 时间戳不能为负
func validateTimes(f *model.ConversationFilter) error {
	if f.StartTime < 0 || f.EndTime < 0 {
		return invalidFilter("start_time and end_time must not be negative")
	}
	return nil
}

// List 按条件分页查询
// 颠倒的时间范围不报错，只是没有匹配结果
func (s *Service) List(ctx context.Context, filter model.ConversationFilter) (*ListResult, error) {
	if err := validateTimes(&filter); err != nil {
		return nil, err
	}
	s.normalizePage(&filter)

	items, total, err := s.store.List(ctx, &filter, filter.Offset(), filter.PageSize)
	if err != nil {
		return nil, storageErr("list", err)
	}

	totalPages := (total + int64(filter.PageSize) - 1) / int64(filter.PageSize)
	return &ListResult{
		Items:      items,
		Total:      total,
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalPages: totalPages,
	}, nil
}

// Get 获取单条记录，内容原样返回
func (s *Service) Get(ctx context.Context, id int64) (*model.Conversation, error) {
	if id <= 0 {
		return nil, ErrConversationNotFound
	}
	conv, err := s.store.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, storageErr("get", err)
	}
	return conv, nil
}

// DeleteByIDs 按 ID 删除，返回实际删除数
// 重复和非正数 ID 被忽略，空集合直接返回 0
func (s *Service) DeleteByIDs(ctx context.Context, ids []int64) (int64, error) {
	unique := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		return 0, nil
	}

	deleted, err := s.store.DeleteByIDs(ctx, unique)
	if err != nil {
		return 0, storageErr("delete by ids", err)
	}
	log.WithFields(log.Fields{"requested": len(ids), "deleted": deleted}).Info("Deleted conversations by ids")
	return deleted, nil
}

// DeleteByFilter 按条件删除，条件与 List 完全一致
// 至少需要一个筛选条件
func (s *Service) DeleteByFilter(ctx context.Context, filter model.ConversationFilter) (int64, error) {
	if err := validateTimes(&filter); err != nil {
		return 0, err
	}
	if !filter.IsConstrained() {
		return 0, invalidFilter("at least one condition is required")
	}
	if filter.StartTime > 0 && filter.EndTime > 0 && filter.StartTime > filter.EndTime {
		return 0, invalidFilter("start_time %d is after end_time %d", filter.StartTime, filter.EndTime)
	}

	deleted, err := s.store.DeleteByFilter(ctx, &filter)
	if err != nil {
		return 0, storageErr("delete by filter", err)
	}
	log.WithFields(log.Fields{
		"user_id":    filter.UserID,
		"username":   filter.Username,
		"model_name": filter.ModelName,
		"start_time": filter.StartTime,
		"end_time":   filter.EndTime,
		"deleted":    deleted,
	}).Info("Deleted conversations by condition")
	return deleted, nil
}

// PurgeBefore 分批删除 created_at 早于 cutoff 的记录，返回删除总数
// 每批之间检查 ctx，取消时返回已删除数和 ctx 错误
func (s *Service) PurgeBefore(ctx context.Context, cutoff int64, batchSize int) (int64, error) {
	if cutoff <= 0 {
		return 0, invalidFilter("cutoff must be positive")
	}
	if batchSize <= 0 {
		batchSize = 1000
	}

	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		deleted, err := s.store.DeleteBefore(ctx, cutoff, batchSize)
		if err != nil {
			return total, storageErr("purge", err)
		}
		total += deleted
		if deleted < int64(batchSize) {
			break
		}
	}

	log.WithFields(log.Fields{"cutoff": cutoff, "deleted": total}).Info("Purged old conversations")
	return total, nil
}

// Stats 按条件统计记录数与 token 用量
func (s *Service) Stats(ctx context.Context, filter model.ConversationFilter) (*model.ConversationStats, error) {
	if err := validateTimes(&filter); err != nil {
		return nil, err
	}
	stats, err := s.store.Stats(ctx, &filter)
	if err != nil {
		return nil, storageErr("stats", err)
	}
	return stats, nil
}
