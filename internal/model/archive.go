package model

// ConversationArchive 归档表 - 存储超过保留期的旧对话
// 请求和响应内容以 zstd 压缩存储
type ConversationArchive struct {
	ID                 int64   `json:"id" gorm:"primaryKey;autoIncrement"`
	OriginalID         int64   `json:"original_id" gorm:"index"`
	UserID             int     `json:"user_id" gorm:"index;not null;default:0"`
	Username           string  `json:"username" gorm:"type:varchar(64);index;not null;default:''"`
	ModelName          string  `json:"model_name" gorm:"type:varchar(128);index;not null;default:''"`
	TokenID            int     `json:"token_id" gorm:"default:0"`
	TokenName          string  `json:"token_name" gorm:"type:varchar(128);default:''"`
	ChannelID          int     `json:"channel_id" gorm:"default:0"`
	RequestMessagesZst []byte  `json:"-"`
	ResponseContentZst []byte  `json:"-"`
	PromptTokens       int     `json:"prompt_tokens" gorm:"default:0"`
	CompletionTokens   int     `json:"completion_tokens" gorm:"default:0"`
	TotalTokens        int     `json:"total_tokens" gorm:"default:0"`
	IsStream           bool    `json:"is_stream" gorm:"default:false"`
	CreatedAt          int64   `json:"created_at" gorm:"type:bigint;index;not null;autoCreateTime:false"`
	UseTime            int     `json:"use_time" gorm:"default:0"`
	IP                 string  `json:"ip" gorm:"type:varchar(64);default:''"`
	Group              string  `json:"group" gorm:"column:group_name;type:varchar(64);default:''"`
	ArchivedAt         int64   `json:"archived_at" gorm:"type:bigint;index"`
	CompressionRatio   float64 `json:"compression_ratio" gorm:"default:0"`
}

// TableName 指定表名
func (ConversationArchive) TableName() string {
	return "conversations_archive"
}
