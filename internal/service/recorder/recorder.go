// Package recorder 在模型请求完成后写入对话记录
// 写入前检查开关，入库通过工作池异步完成，任何失败都不会影响调用方
package recorder

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"
	log "github.com/sirupsen/logrus"

	"github.com/ashwinyue/convlog/internal/config"
	"github.com/ashwinyue/convlog/internal/model"
	"github.com/ashwinyue/convlog/internal/repository"
)

const (
	defaultWorkers   = 4
	defaultQueueSize = 1024
	saveTimeout      = 5 * time.Second
)

// Gate 对话记录开关
type Gate interface {
	IsEnabled() bool
}

// Params 一次模型请求的记录参数
type Params struct {
	ModelName        string
	RequestMessages  interface{} // 通常为 []*schema.Message，string 和 []byte 原样保存
	ResponseContent  string
	PromptTokens     int
	CompletionTokens int
	IsStream         bool
	StartTime        time.Time // 为零时使用当前时间，且 use_time 记为 0
}

// Recorder 对话记录器
type Recorder struct {
	gate     Gate
	store    repository.ConversationStore
	recordIP bool

	queue  chan *model.Conversation
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// New 创建记录器并启动工作协程
func New(gate Gate, store repository.ConversationStore, cfg *config.ConversationConfig) *Recorder {
	workers, queueSize := defaultWorkers, defaultQueueSize
	recordIP := false
	if cfg != nil {
		if cfg.RecorderWorkers > 0 {
			workers = cfg.RecorderWorkers
		}
		if cfg.RecorderQueueSize > 0 {
			queueSize = cfg.RecorderQueueSize
		}
		recordIP = cfg.RecordIP
	}

	r := &Recorder{
		gate:     gate,
		store:    store,
		recordIP: recordIP,
		queue:    make(chan *model.Conversation, queueSize),
	}
	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}
	return r
}

// Enabled 当前是否会写入记录
func (r *Recorder) Enabled() bool {
	return r.gate.IsEnabled()
}

// Record 提交一条记录，立即返回
// 开关关闭、内容为空、序列化失败或队列已满时丢弃
func (r *Recorder) Record(ctx context.Context, p Params) {
	defer func() {
		if rec := recover(); rec != nil {
			log.WithField("panic", rec).Error("Recovered from panic while recording conversation")
		}
	}()

	if !r.gate.IsEnabled() {
		return
	}
	if !hasMessages(p.RequestMessages) || p.ResponseContent == "" {
		log.WithField("model", p.ModelName).Debug("Skipping conversation without messages or response")
		return
	}

	conv, err := r.build(ctx, p)
	if err != nil {
		log.WithError(err).WithField("model", p.ModelName).Warn("Failed to build conversation record")
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- conv:
	default:
		log.WithField("model", p.ModelName).Warn("Recorder queue full, dropping conversation")
	}
}

// build 组装对话记录
func (r *Recorder) build(ctx context.Context, p Params) (*model.Conversation, error) {
	messages, err := serializeMessages(p.RequestMessages)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	createdAt, useTime := now.Unix(), 0
	if !p.StartTime.IsZero() {
		createdAt = p.StartTime.Unix()
		useTime = int(now.Sub(p.StartTime).Milliseconds())
	}

	caller := CallerFrom(ctx)
	conv := &model.Conversation{
		UserID:           caller.UserID,
		Username:         caller.Username,
		ModelName:        p.ModelName,
		TokenID:          caller.TokenID,
		TokenName:        caller.TokenName,
		ChannelID:        caller.ChannelID,
		RequestMessages:  messages,
		ResponseContent:  p.ResponseContent,
		PromptTokens:     p.PromptTokens,
		CompletionTokens: p.CompletionTokens,
		IsStream:         p.IsStream,
		CreatedAt:        createdAt,
		UseTime:          useTime,
		Group:            caller.Group,
	}
	if r.recordIP || caller.RecordIP {
		conv.IP = caller.IP
	}
	conv.Normalize()
	return conv, nil
}

func serializeMessages(v interface{}) (string, error) {
	switch m := v.(type) {
	case string:
		return m, nil
	case []byte:
		return string(m), nil
	case json.RawMessage:
		return string(m), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request messages: %w", err)
	}
	return string(data), nil
}

// worker 消费队列并入库
func (r *Recorder) worker() {
	defer r.wg.Done()
	for conv := range r.queue {
		r.save(conv)
	}
}

func (r *Recorder) save(conv *model.Conversation) {
	defer func() {
		if rec := recover(); rec != nil {
			log.WithField("panic", rec).Error("Recovered from panic while saving conversation")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := r.store.Create(ctx, conv); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"user_id": conv.UserID,
			"model":   conv.ModelName,
		}).Warn("Failed to save conversation")
	}
}

// Close 停止接收新记录，等待队列中的记录写完
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	r.wg.Wait()
}

// hasMessages 判断请求消息是否非空，类型化的 nil 切片同样视为空
func hasMessages(v interface{}) bool {
	switch m := v.(type) {
	case nil:
		return false
	case []*schema.Message:
		return len(m) > 0
	case []schema.Message:
		return len(m) > 0
	case string:
		return m != ""
	case []byte:
		return len(m) > 0
	default:
		return true
	}
}
