package recorder

import (
	"strings"

	"github.com/cloudwego/eino/schema"
)

const reasoningMarker = "\n[Reasoning]\n"

// ExtractResponseContent 提取响应文本，推理内容附加在 [Reasoning] 段落之后
func ExtractResponseContent(msg *schema.Message) string {
	if msg == nil {
		return ""
	}
	content := msg.Content
	if content == "" && len(msg.MultiContent) > 0 {
		var sb strings.Builder
		for _, part := range msg.MultiContent {
			if part.Type == schema.ChatMessagePartTypeText {
				sb.WriteString(part.Text)
			}
		}
		content = sb.String()
	}
	if msg.ReasoningContent != "" {
		content += reasoningMarker + msg.ReasoningContent
	}
	return content
}

// StreamCollector 累积流式响应分片
type StreamCollector struct {
	content          strings.Builder
	reasoning        strings.Builder
	promptTokens     int
	completionTokens int
}

// Add 追加一个分片
func (s *StreamCollector) Add(chunk *schema.Message) {
	if chunk == nil {
		return
	}
	s.content.WriteString(chunk.Content)
	s.reasoning.WriteString(chunk.ReasoningContent)
	if chunk.ResponseMeta != nil && chunk.ResponseMeta.Usage != nil {
		// 用量通常只在最后一个分片出现
		s.promptTokens = chunk.ResponseMeta.Usage.PromptTokens
		s.completionTokens = chunk.ResponseMeta.Usage.CompletionTokens
	}
}

// Content 返回累积的文本
func (s *StreamCollector) Content() string {
	if s.reasoning.Len() == 0 {
		return s.content.String()
	}
	return s.content.String() + reasoningMarker + s.reasoning.String()
}

// Usage 返回最后一次上报的 token 用量
func (s *StreamCollector) Usage() (prompt, completion int) {
	return s.promptTokens, s.completionTokens
}
