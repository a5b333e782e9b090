package service

import (
	"github.com/redis/go-redis/v9"

	"github.com/ashwinyue/convlog/internal/config"
	"github.com/ashwinyue/convlog/internal/repository"
	"github.com/ashwinyue/convlog/internal/service/auth"
	"github.com/ashwinyue/convlog/internal/service/conversation"
	"github.com/ashwinyue/convlog/internal/service/export"
	"github.com/ashwinyue/convlog/internal/service/gate"
	"github.com/ashwinyue/convlog/internal/service/maintenance"
	"github.com/ashwinyue/convlog/internal/service/recorder"
	"github.com/ashwinyue/convlog/internal/service/storage"
)

// Services 服务集合
type Services struct {
	Auth         *auth.Service
	Conversation *conversation.Service
	Gate         *gate.Gate
	Recorder     *recorder.Recorder
	Maintenance  *maintenance.Service
	Scheduler    *maintenance.Scheduler
	Export       *export.Service

	Config *config.Config
}

// NewServices 创建所有服务
// redisClient 可以为 nil，此时开关只通过定时刷新在实例间同步
func NewServices(repo *repository.Repositories, cfg *config.Config, redisClient *redis.Client) (*Services, error) {
	g := gate.New(repo.Setting, redisClient, &cfg.Conversation)

	maint, err := maintenance.NewService(repo.Conversation, repo.Archive, &cfg.Maintenance)
	if err != nil {
		return nil, err
	}

	st, err := storage.New(&cfg.Storage)
	if err != nil {
		return nil, err
	}

	return &Services{
		Auth:         auth.NewService(&cfg.Auth),
		Conversation: conversation.NewService(repo.Conversation, &cfg.Conversation),
		Gate:         g,
		Recorder:     recorder.New(g, repo.Conversation, &cfg.Conversation),
		Maintenance:  maint,
		Scheduler:    maintenance.NewScheduler(maint, g),
		Export:       export.NewService(repo.Conversation, st),
		Config:       cfg,
	}, nil
}

// Close 停止记录器并释放资源
func (s *Services) Close() {
	s.Recorder.Close()
	s.Maintenance.Close()
}
