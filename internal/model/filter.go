package model

import "math"

// ConversationFilter 对话筛选条件，查询和按条件删除共用
// 字符串为空、数值为 0 表示该条件不限制
type ConversationFilter struct {
	UserID    int    `json:"user_id" form:"user_id"`
	Username  string `json:"username" form:"username"`
	ModelName string `json:"model_name" form:"model_name"`
	StartTime int64  `json:"start_time" form:"start_time"` // 含边界，Unix 秒
	EndTime   int64  `json:"end_time" form:"end_time"`     // 含边界，Unix 秒
	Page      int    `json:"page" form:"page"`             // 仅查询使用，从 1 开始
	PageSize  int    `json:"page_size" form:"page_size"`   // 仅查询使用
}

// IsConstrained 是否至少设置了一个筛选条件（分页参数不算）
func (f *ConversationFilter) IsConstrained() bool {
	return f.UserID != 0 || f.Username != "" || f.ModelName != "" || f.StartTime != 0 || f.EndTime != 0
}

// Matches 判断记录是否满足筛选条件，语义与数据库查询一致
func (f *ConversationFilter) Matches(c *Conversation) bool {
	if f.UserID != 0 && c.UserID != f.UserID {
		return false
	}
	if f.Username != "" && c.Username != f.Username {
		return false
	}
	if f.ModelName != "" && c.ModelName != f.ModelName {
		return false
	}
	if f.StartTime > 0 && c.CreatedAt < f.StartTime {
		return false
	}
	if f.EndTime > 0 && c.CreatedAt > f.EndTime {
		return false
	}
	return true
}

// Offset 分页偏移量
// 溢出时返回 math.MaxInt，保证超出末页的请求得到空结果
func (f *ConversationFilter) Offset() int {
	if f.Page < 1 || f.PageSize < 1 {
		return 0
	}
	if f.Page-1 > math.MaxInt/f.PageSize {
		return math.MaxInt
	}
	return (f.Page - 1) * f.PageSize
}
