// Package maintenance 提供对话记录的归档、归档清理、表优化和统计
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/ashwinyue/convlog/internal/config"
	"github.com/ashwinyue/convlog/internal/model"
	"github.com/ashwinyue/convlog/internal/repository"
)

var (
	// ErrTaskRunning 同名任务正在执行
	ErrTaskRunning = errors.New("maintenance task already running")
	// ErrArchiveNotFound 归档记录不存在
	ErrArchiveNotFound = errors.New("archived conversation not found")
	// ErrInvalidDays 天数必须为正
	ErrInvalidDays = errors.New("days must be positive")
)

const (
	defaultBatchSize   = 1000
	defaultArchiveDays = 30
	defaultCleanupDays = 365
	daySeconds         = 24 * 3600
)

// Service 维护服务
type Service struct {
	conversations repository.ConversationStore
	archives      repository.ArchiveStore
	codec         *Codec
	cfg           config.MaintenanceConfig

	mu      sync.Mutex
	running map[string]bool
	now     func() time.Time
}

// NewService 创建维护服务
func NewService(conversations repository.ConversationStore, archives repository.ArchiveStore, cfg *config.MaintenanceConfig) (*Service, error) {
	codec, err := NewCodec()
	if err != nil {
		return nil, err
	}
	s := &Service{
		conversations: conversations,
		archives:      archives,
		codec:         codec,
		running:       make(map[string]bool),
		now:           time.Now,
	}
	if cfg != nil {
		s.cfg = *cfg
	}
	if s.cfg.BatchSize <= 0 {
		s.cfg.BatchSize = defaultBatchSize
	}
	if s.cfg.ArchiveDays <= 0 {
		s.cfg.ArchiveDays = defaultArchiveDays
	}
	if s.cfg.CleanupDays <= 0 {
		s.cfg.CleanupDays = defaultCleanupDays
	}
	return s, nil
}

// Close 释放资源
func (s *Service) Close() {
	s.codec.Close()
}

// Config 生效的维护配置
func (s *Service) Config() config.MaintenanceConfig {
	return s.cfg
}

// Cutoff 返回 days 天前的时间戳
func (s *Service) Cutoff(days int) int64 {
	return s.now().Unix() - int64(days)*daySeconds
}

func (s *Service) batch(batchSize int) int {
	if batchSize <= 0 {
		return s.cfg.BatchSize
	}
	return batchSize
}

// Archive 将 created_at 早于 olderThan 的记录分批移入归档表，返回归档总数
// 每批一个事务，批次之间检查 ctx
func (s *Service) Archive(ctx context.Context, olderThan int64, batchSize int) (int64, error) {
	batchSize = s.batch(batchSize)
	archivedAt := s.now()
	convert := func(conv *model.Conversation) (*model.ConversationArchive, error) {
		return s.codec.ToArchive(conv, archivedAt), nil
	}

	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		archived, err := s.archives.ArchiveBefore(ctx, olderThan, batchSize, convert)
		if err != nil {
			return total, fmt.Errorf("failed to archive conversations: %w", err)
		}
		total += archived
		if archived < int64(batchSize) {
			break
		}
	}

	if total > 0 {
		log.WithFields(log.Fields{"task": "archive", "archived": total, "before": olderThan}).Info("Archived conversations")
	}
	return total, nil
}

// CleanupArchives 分批删除 created_at 早于 olderThan 的归档记录
func (s *Service) CleanupArchives(ctx context.Context, olderThan int64, batchSize int) (int64, error) {
	batchSize = s.batch(batchSize)

	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		deleted, err := s.archives.DeleteBefore(ctx, olderThan, batchSize)
		if err != nil {
			return total, fmt.Errorf("failed to cleanup archives: %w", err)
		}
		total += deleted
		if deleted < int64(batchSize) {
			break
		}
	}

	if total > 0 {
		log.WithFields(log.Fields{"task": "cleanup", "deleted": total, "before": olderThan}).Info("Cleaned up archived conversations")
	}
	return total, nil
}

// Optimize 优化对话表和归档表
func (s *Service) Optimize(ctx context.Context) error {
	start := s.now()
	if err := s.archives.Optimize(ctx); err != nil {
		return err
	}
	log.WithField("elapsed", time.Since(start).String()).Info("Optimized conversation tables")
	return nil
}

// ArchiveListResult 归档分页结果
type ArchiveListResult struct {
	Items    []*ArchivedConversation `json:"items"`
	Total    int64                   `json:"total"`
	Page     int                     `json:"page"`
	PageSize int                     `json:"page_size"`
}

// ListArchived 分页查询归档记录，分页规则与主表一致
func (s *Service) ListArchived(ctx context.Context, filter model.ConversationFilter) (*ArchiveListResult, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 10
	}
	if filter.PageSize > 100 {
		filter.PageSize = 100
	}

	archives, total, err := s.archives.List(ctx, &filter, filter.Offset(), filter.PageSize)
	if err != nil {
		return nil, err
	}

	items := make([]*ArchivedConversation, 0, len(archives))
	for _, a := range archives {
		item, err := s.codec.FromArchive(a)
		if err != nil {
			return nil, fmt.Errorf("archive %d: %w", a.ID, err)
		}
		items = append(items, item)
	}
	return &ArchiveListResult{Items: items, Total: total, Page: filter.Page, PageSize: filter.PageSize}, nil
}

// GetArchived 获取单条归档记录
func (s *Service) GetArchived(ctx context.Context, id int64) (*ArchivedConversation, error) {
	a, err := s.archives.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrArchiveNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.codec.FromArchive(a)
}

// TableStats 表统计
type TableStats struct {
	ConversationCount int64 `json:"conversation_count"`
	ArchiveCount      int64 `json:"archive_count"`
	OldestCreatedAt   int64 `json:"oldest_created_at"`
	NewestCreatedAt   int64 `json:"newest_created_at"`
	ArchiveDays       int   `json:"archive_days"`
	CleanupDays       int   `json:"cleanup_days"`
}

// TableStats 返回两张表的行数和主表时间范围
func (s *Service) TableStats(ctx context.Context) (*TableStats, error) {
	convCount, err := s.conversations.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count conversations: %w", err)
	}
	archiveCount, err := s.archives.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count archives: %w", err)
	}
	oldest, newest, err := s.conversations.TimeRange(ctx)
	if err != nil {
		return nil, err
	}
	return &TableStats{
		ConversationCount: convCount,
		ArchiveCount:      archiveCount,
		OldestCreatedAt:   oldest,
		NewestCreatedAt:   newest,
		ArchiveDays:       s.cfg.ArchiveDays,
		CleanupDays:       s.cfg.CleanupDays,
	}, nil
}

// RunInBackground 在后台执行任务，同名任务同时只允许一个
func (s *Service) RunInBackground(name string, task func(ctx context.Context) error) error {
	s.mu.Lock()
	if s.running[name] {
		s.mu.Unlock()
		return ErrTaskRunning
	}
	s.running[name] = true
	s.mu.Unlock()

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				log.WithFields(log.Fields{"task": name, "panic": rec}).Error("Maintenance task panicked")
			}
			s.mu.Lock()
			delete(s.running, name)
			s.mu.Unlock()
		}()

		start := time.Now()
		if err := task(context.Background()); err != nil {
			log.WithError(err).WithField("task", name).Error("Maintenance task failed")
			return
		}
		log.WithFields(log.Fields{"task": name, "elapsed": time.Since(start).String()}).Info("Maintenance task finished")
	}()
	return nil
}

// IsRunning 任务是否在执行
func (s *Service) IsRunning(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running[name]
}
