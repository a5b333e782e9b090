package maintenance

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Gate 对话记录开关
type Gate interface {
	IsEnabled() bool
}

// job 定时任务
type job struct {
	name     string
	delay    time.Duration // 首次执行延迟
	interval time.Duration
	run      func(ctx context.Context) error
}

// Scheduler 定时维护：每天归档，每周清理归档，每月优化表
// 对话记录开关关闭时跳过执行
type Scheduler struct {
	svc  *Service
	gate Gate
	jobs []job
}

// NewScheduler 创建定时维护调度器
func NewScheduler(svc *Service, gate Gate) *Scheduler {
	s := &Scheduler{svc: svc, gate: gate}
	s.jobs = []job{
		{name: "archive", delay: time.Minute, interval: 24 * time.Hour, run: s.archive},
		{name: "cleanup", delay: 2 * time.Minute, interval: 7 * 24 * time.Hour, run: s.cleanup},
		{name: "optimize", delay: 3 * time.Minute, interval: 30 * 24 * time.Hour, run: svc.Optimize},
	}
	return s
}

func (s *Scheduler) archive(ctx context.Context) error {
	_, err := s.svc.Archive(ctx, s.svc.Cutoff(s.svc.cfg.ArchiveDays), 0)
	return err
}

func (s *Scheduler) cleanup(ctx context.Context) error {
	_, err := s.svc.CleanupArchives(ctx, s.svc.Cutoff(s.svc.cfg.CleanupDays), 0)
	return err
}

// Run 运行所有定时任务，阻塞直到 ctx 取消
func (s *Scheduler) Run(ctx context.Context) error {
	log.WithField("jobs", len(s.jobs)).Info("Maintenance scheduler started")

	g, ctx := errgroup.WithContext(ctx)
	for _, j := range s.jobs {
		j := j
		g.Go(func() error {
			s.loop(ctx, j)
			return nil
		})
	}
	err := g.Wait()
	log.Info("Maintenance scheduler stopped")
	return err
}

func (s *Scheduler) loop(ctx context.Context, j job) {
	timer := time.NewTimer(j.delay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		s.runOnce(ctx, j)
		timer.Reset(j.interval)
	}
}

// runOnce 执行一次任务，同名任务已在运行（例如手动触发）时跳过
func (s *Scheduler) runOnce(ctx context.Context, j job) {
	if !s.gate.IsEnabled() {
		log.WithField("task", j.name).Debug("Conversation logging disabled, skipping maintenance")
		return
	}

	s.svc.mu.Lock()
	if s.svc.running[j.name] {
		s.svc.mu.Unlock()
		log.WithField("task", j.name).Info("Maintenance task already running, skipping")
		return
	}
	s.svc.running[j.name] = true
	s.svc.mu.Unlock()

	defer func() {
		s.svc.mu.Lock()
		delete(s.svc.running, j.name)
		s.svc.mu.Unlock()
	}()

	if err := j.run(ctx); err != nil && ctx.Err() == nil {
		log.WithError(err).WithField("task", j.name).Error("Scheduled maintenance failed")
	}
}
