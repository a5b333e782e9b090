package model

// 设置项键名
const (
	SettingConversationLogEnabled = "conversation_log_enabled"
)

// Setting 系统设置（键值对）
type Setting struct {
	Key       string `json:"key" gorm:"column:setting_key;type:varchar(128);primaryKey"`
	Value     string `json:"value" gorm:"type:text"`
	UpdatedAt int64  `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (Setting) TableName() string {
	return "settings"
}
