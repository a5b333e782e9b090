// Package gate 实现对话记录开关
// 开关值持久化在 settings 表，进程内用原子变量缓存，多实例之间通过 Redis 广播和定时刷新同步
package gate

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/ashwinyue/convlog/internal/config"
	"github.com/ashwinyue/convlog/internal/model"
	"github.com/ashwinyue/convlog/internal/repository"
)

// Channel 开关变更广播频道
const Channel = "convlog:gate"

const defaultRefreshInterval = 5 * time.Second

// Gate 对话记录开关
type Gate struct {
	enabled      atomic.Bool
	store        repository.SettingStore
	redis        *redis.Client
	defaultValue bool
	refresh      time.Duration
}

// New 创建开关，初始值为配置中的默认值，调用 Load 后以数据库为准
// rdb 为 nil 时只依赖定时刷新
func New(store repository.SettingStore, rdb *redis.Client, cfg *config.ConversationConfig) *Gate {
	g := &Gate{
		store:   store,
		redis:   rdb,
		refresh: defaultRefreshInterval,
	}
	if cfg != nil {
		g.defaultValue = cfg.LogEnabled
		if d := cfg.RefreshInterval(); d > 0 {
			g.refresh = d
		}
	}
	g.enabled.Store(g.defaultValue)
	return g
}

// RefreshInterval 其他实例修改后本实例的最大陈旧时间
func (g *Gate) RefreshInterval() time.Duration {
	return g.refresh
}

// IsEnabled 当前是否记录对话，只读内存，不会失败
func (g *Gate) IsEnabled() bool {
	return g.enabled.Load()
}

// Load 从数据库读取开关值，没有记录时使用默认值
func (g *Gate) Load(ctx context.Context) error {
	value, ok, err := g.store.Get(ctx, model.SettingConversationLogEnabled)
	if err != nil {
		return fmt.Errorf("failed to load logging setting: %w", err)
	}
	if !ok {
		g.enabled.Store(g.defaultValue)
		return nil
	}
	enabled, err := strconv.ParseBool(value)
	if err != nil {
		log.WithField("value", value).Warn("Invalid conversation_log_enabled value, keeping current state")
		return nil
	}
	g.enabled.Store(enabled)
	return nil
}

// SetEnabled 修改开关
// 先落库，成功后立即更新本地状态并广播；广播失败只记日志，其他实例会在刷新周期内同步
func (g *Gate) SetEnabled(ctx context.Context, enabled bool) error {
	if err := g.store.Set(ctx, model.SettingConversationLogEnabled, strconv.FormatBool(enabled)); err != nil {
		return fmt.Errorf("failed to save logging setting: %w", err)
	}
	g.enabled.Store(enabled)
	log.WithField("enabled", enabled).Info("Conversation logging setting changed")

	if g.redis != nil {
		if err := g.redis.Publish(ctx, Channel, strconv.FormatBool(enabled)).Err(); err != nil {
			log.WithError(err).Warn("Failed to publish logging setting change")
		}
	}
	return nil
}

// Start 运行定时刷新和 Redis 订阅，阻塞直到 ctx 取消
func (g *Gate) Start(ctx context.Context) error {
	if g.redis != nil {
		go g.subscribe(ctx)
	}

	ticker := time.NewTicker(g.refresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := g.Load(ctx); err != nil && ctx.Err() == nil {
				log.WithError(err).Warn("Failed to refresh logging setting")
			}
		}
	}
}

func (g *Gate) subscribe(ctx context.Context) {
	sub := g.redis.Subscribe(ctx, Channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			g.apply(msg.Payload)
		}
	}
}

// apply 应用广播收到的值
func (g *Gate) apply(payload string) {
	enabled, err := strconv.ParseBool(payload)
	if err != nil {
		log.WithField("payload", payload).Warn("Ignoring invalid logging setting broadcast")
		return
	}
	if g.enabled.Swap(enabled) != enabled {
		log.WithField("enabled", enabled).Info("Conversation logging setting updated by broadcast")
	}
}
