package router

import (
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/ashwinyue/convlog/internal/service/recorder"
)

func sampleRecord() recorder.Params {
	return recorder.Params{
		ModelName:        "gpt-4o",
		RequestMessages:  []*schema.Message{schema.UserMessage("ping")},
		ResponseContent:  "pong",
		PromptTokens:     3,
		CompletionTokens: 1,
		StartTime:        time.Now(),
	}
}
