// Package testutil 提供测试辅助工具
package testutil

import (
	"context"
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	_ "modernc.org/sqlite"

	"github.com/ashwinyue/convlog/internal/database"
	"github.com/ashwinyue/convlog/internal/model"
)

// DaySeconds 一天的秒数
const DaySeconds int64 = 24 * 3600

// BaseTime 测试数据的时间起点（2024-01-01 00:00:00 UTC）
const BaseTime int64 = 1704067200

// Day 返回第 n 天（从 1 开始）的时间戳
func Day(n int) int64 {
	return BaseTime + int64(n-1)*DaySeconds
}

// NewTestDB 创建内存 sqlite 数据库并完成迁移
// 只保留一个连接，保证所有查询落在同一个内存库上
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.New(sqlite.Config{DriverName: "sqlite", DSN: ":memory:"}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return db
}

// NewConversation 构造一条测试对话记录
func NewConversation(username, modelName string, createdAt int64) *model.Conversation {
	conv := &model.Conversation{
		UserID:           len(username),
		Username:         username,
		ModelName:        modelName,
		TokenName:        "default",
		RequestMessages:  fmt.Sprintf(`[{"role":"user","content":"hello from %s"}]`, username),
		ResponseContent:  "hi " + username,
		PromptTokens:     10,
		CompletionTokens: 5,
		CreatedAt:        createdAt,
		UseTime:          120,
	}
	conv.Normalize()
	return conv
}

// SeedConversations 写入测试记录
func SeedConversations(t *testing.T, db *gorm.DB, convs ...*model.Conversation) {
	t.Helper()
	for _, conv := range convs {
		if err := db.WithContext(context.Background()).Create(conv).Error; err != nil {
			t.Fatalf("failed to seed conversation: %v", err)
		}
	}
}

// SeedScenario 写入 gpt-4 / gpt-3.5 在第 1 到 10 天的记录，每天每个模型一条
// 返回写入的全部记录
func SeedScenario(t *testing.T, db *gorm.DB) []*model.Conversation {
	t.Helper()
	var convs []*model.Conversation
	for day := 1; day <= 10; day++ {
		convs = append(convs,
			NewConversation("alice", "gpt-4", Day(day)),
			NewConversation("bob", "gpt-3.5", Day(day)),
		)
	}
	SeedConversations(t, db, convs...)
	return convs
}

// CountConversations 统计当前记录数
func CountConversations(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var count int64
	if err := db.Model(&model.Conversation{}).Count(&count).Error; err != nil {
		t.Fatalf("failed to count conversations: %v", err)
	}
	return count
}
