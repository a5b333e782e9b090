// Package callback 提供 Eino Callback 对话记录支持
// 挂载到 ChatModel 上，调用完成后把请求和响应交给 recorder 写入
package callback

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	log "github.com/sirupsen/logrus"

	"github.com/ashwinyue/convlog/internal/service/recorder"
)

// Sink 记录目标，*recorder.Recorder 实现了该接口
type Sink interface {
	Enabled() bool
	Record(ctx context.Context, p recorder.Params)
}

// Recorder 对话记录回调处理器
// 实现 callbacks.Handler 接口，只处理 ChatModel 组件
type Recorder struct {
	sink Sink
}

// NewRecorder 创建对话记录回调处理器
func NewRecorder(sink Sink) *Recorder {
	return &Recorder{sink: sink}
}

type callStateKey struct{}

// callState OnStart 时保存的请求信息
type callState struct {
	modelName string
	messages  []*schema.Message
	startTime time.Time
}

func (r *Recorder) accepts(info *callbacks.RunInfo) bool {
	return info != nil && info.Component == components.ComponentOfChatModel && r.sink.Enabled()
}

// OnStart 组件执行开始时调用
func (r *Recorder) OnStart(ctx context.Context, info *callbacks.RunInfo, input callbacks.CallbackInput) context.Context {
	if !r.accepts(info) {
		return ctx
	}
	in := model.ConvCallbackInput(input)
	if in == nil || len(in.Messages) == 0 {
		return ctx
	}

	state := &callState{
		modelName: info.Name,
		messages:  in.Messages,
		startTime: time.Now(),
	}
	if in.Config != nil && in.Config.Model != "" {
		state.modelName = in.Config.Model
	}
	log.WithFields(log.Fields{"name": info.Name, "type": info.Type, "model": state.modelName}).
		Debug("[Eino] ChatModel call started")
	return context.WithValue(ctx, callStateKey{}, state)
}

// OnEnd 组件执行成功结束时调用
func (r *Recorder) OnEnd(ctx context.Context, info *callbacks.RunInfo, output callbacks.CallbackOutput) context.Context {
	state, ok := ctx.Value(callStateKey{}).(*callState)
	if !ok || !r.accepts(info) {
		return ctx
	}
	out := model.ConvCallbackOutput(output)
	if out == nil {
		return ctx
	}

	params := state.params(false)
	params.ResponseContent = recorder.ExtractResponseContent(out.Message)
	if out.TokenUsage != nil {
		params.PromptTokens = out.TokenUsage.PromptTokens
		params.CompletionTokens = out.TokenUsage.CompletionTokens
	} else if out.Message != nil && out.Message.ResponseMeta != nil && out.Message.ResponseMeta.Usage != nil {
		params.PromptTokens = out.Message.ResponseMeta.Usage.PromptTokens
		params.CompletionTokens = out.Message.ResponseMeta.Usage.CompletionTokens
	}
	r.sink.Record(ctx, params)
	return ctx
}

// OnError 组件执行出错时调用，失败的请求不记录
func (r *Recorder) OnError(ctx context.Context, info *callbacks.RunInfo, err error) context.Context {
	if info != nil && info.Component == components.ComponentOfChatModel {
		log.WithError(err).WithField("name", info.Name).Debug("[Eino] ChatModel call failed, not recorded")
	}
	return ctx
}

// OnStartWithStreamInput 流式输入开始时调用，ChatModel 的输入不是流，直接关闭
func (r *Recorder) OnStartWithStreamInput(ctx context.Context, info *callbacks.RunInfo, input *schema.StreamReader[callbacks.CallbackInput]) context.Context {
	input.Close()
	return ctx
}

// OnEndWithStreamOutput 流式输出结束时调用
// 在独立协程中读完副本流并合并分片，不阻塞调用方
func (r *Recorder) OnEndWithStreamOutput(ctx context.Context, info *callbacks.RunInfo, output *schema.StreamReader[callbacks.CallbackOutput]) context.Context {
	state, ok := ctx.Value(callStateKey{}).(*callState)
	if !ok || !r.accepts(info) {
		output.Close()
		return ctx
	}

	go func() {
		defer output.Close()
		defer func() {
			if rec := recover(); rec != nil {
				log.WithField("panic", rec).Error("[Eino] Recovered from panic while collecting stream")
			}
		}()

		var (
			chunks    []*schema.Message
			collector recorder.StreamCollector
			usage     *model.TokenUsage
		)
		for {
			frame, err := output.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				log.WithError(err).Debug("[Eino] Stream ended with error, not recorded")
				return
			}
			out := model.ConvCallbackOutput(frame)
			if out == nil {
				continue
			}
			if out.Message != nil {
				chunks = append(chunks, out.Message)
				collector.Add(out.Message)
			}
			if out.TokenUsage != nil {
				usage = out.TokenUsage
			}
		}

		params := state.params(true)
		if merged, err := schema.ConcatMessages(chunks); err == nil {
			params.ResponseContent = recorder.ExtractResponseContent(merged)
		} else {
			params.ResponseContent = collector.Content()
		}
		params.PromptTokens, params.CompletionTokens = collector.Usage()
		if usage != nil {
			params.PromptTokens = usage.PromptTokens
			params.CompletionTokens = usage.CompletionTokens
		}
		r.sink.Record(ctx, params)
	}()
	return ctx
}

func (s *callState) params(stream bool) recorder.Params {
	return recorder.Params{
		ModelName:       s.modelName,
		RequestMessages: s.messages,
		IsStream:        stream,
		StartTime:       s.startTime,
	}
}

// SetupGlobalCallbacks 注册全局对话记录回调
func SetupGlobalCallbacks(sink Sink) {
	callbacks.AppendGlobalHandlers(NewRecorder(sink))
	log.Info("[Eino] Conversation recording callback registered")
}
