package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/ashwinyue/convlog/internal/config"
	"github.com/ashwinyue/convlog/internal/database"
	"github.com/ashwinyue/convlog/internal/repository"
	"github.com/ashwinyue/convlog/internal/service"
)

// app 命令共用的依赖
type app struct {
	cfg      *config.Config
	db       *database.DB
	redis    *redis.Client
	services *service.Services
}

// setupLogging 按配置设置日志级别和格式
func setupLogging(cfg *config.LogConfig) {
	log.SetOutput(os.Stdout)
	if strings.EqualFold(cfg.Format, "json") {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		log.WithField("level", cfg.Level).Warn("Unknown log level, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

// newApp 加载配置并初始化数据库、Redis 和服务
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	setupLogging(&cfg.Log)

	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}
	log.WithFields(log.Fields{"driver": cfg.Database.Driver, "db": cfg.Database.DBName}).Info("Database connected")

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.GetAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			log.WithError(err).Warn("Redis unavailable, logging setting will sync by polling only")
		}
		cancel()
	}

	services, err := service.NewServices(repository.NewRepositories(db.DB), cfg, redisClient)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to init services: %w", err)
	}
	if err := services.Gate.Load(ctx); err != nil {
		log.WithError(err).Warn("Failed to load logging setting, using default")
	}

	return &app{cfg: cfg, db: db, redis: redisClient, services: services}, nil
}

// Close 释放资源
func (a *app) Close() {
	a.services.Close()
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if err := a.db.Close(); err != nil {
		log.WithError(err).Warn("Failed to close database")
	}
}
