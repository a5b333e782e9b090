// Package model 提供对话记录相关的数据模型
package model

// Conversation 对话记录 - 每个完成的模型请求对应一条
// 写入后不可修改，只能删除
type Conversation struct {
	ID               int64  `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID           int    `json:"user_id" gorm:"index:idx_user_model_time;index;not null;default:0"`
	Username         string `json:"username" gorm:"type:varchar(64);index;not null;default:''"`
	ModelName        string `json:"model_name" gorm:"type:varchar(128);index:idx_user_model_time;index;not null;default:''"`
	TokenID          int    `json:"token_id" gorm:"index;default:0"`
	TokenName        string `json:"token_name" gorm:"type:varchar(128);default:''"`
	ChannelID        int    `json:"channel_id" gorm:"index;default:0"`
	RequestMessages  string `json:"request_messages" gorm:"type:text"` // 序列化后的请求消息，不做格式校验
	ResponseContent  string `json:"response_content" gorm:"type:text"`
	PromptTokens     int    `json:"prompt_tokens" gorm:"default:0"`
	CompletionTokens int    `json:"completion_tokens" gorm:"default:0"`
	TotalTokens      int    `json:"total_tokens" gorm:"default:0"`
	IsStream         bool   `json:"is_stream" gorm:"default:false"`
	CreatedAt        int64  `json:"created_at" gorm:"type:bigint;index:idx_user_model_time;index;not null;autoCreateTime:false"` // Unix 秒
	UseTime          int    `json:"use_time" gorm:"default:0"`                                                                   // 响应时间（毫秒）
	IP               string `json:"ip" gorm:"type:varchar(64);index;default:''"`
	Group            string `json:"group" gorm:"column:group_name;type:varchar(64);index;default:''"`
}

// TableName 指定表名
func (Conversation) TableName() string {
	return "conversations"
}

// Normalize 修正 token 计数，保证 total = prompt + completion 且均非负
func (c *Conversation) Normalize() {
	if c.PromptTokens < 0 {
		c.PromptTokens = 0
	}
	if c.CompletionTokens < 0 {
		c.CompletionTokens = 0
	}
	if c.UseTime < 0 {
		c.UseTime = 0
	}
	c.TotalTokens = c.PromptTokens + c.CompletionTokens
}

// ConversationStats 对话统计
type ConversationStats struct {
	TotalCount            int64 `json:"total_count"`
	TotalTokens           int64 `json:"total_tokens"`
	TotalPromptTokens     int64 `json:"total_prompt_tokens"`
	TotalCompletionTokens int64 `json:"total_completion_tokens"`
}
