package router

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/convlog/internal/handler"
	"github.com/ashwinyue/convlog/internal/middleware"
	"github.com/ashwinyue/convlog/internal/service/auth"
)

// HealthCheck 健康检查函数，通常为数据库 Ping
type HealthCheck func(ctx context.Context) error

// SetupRouter 设置路由
func SetupRouter(h *handler.Handlers, authSvc *auth.Service, health HealthCheck) *gin.Engine {
	r := gin.New()

	// 中间件
	r.Use(middleware.RequestID())
	r.Use(middleware.RecoveryMiddleware())
	r.Use(middleware.LoggingMiddleware())

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		if health != nil {
			if err := health(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API v1
	v1 := r.Group("/api/v1")
	{
		// Conversation 对话记录，仅管理员
		conv := v1.Group("/conversations", middleware.RequireAdmin(authSvc))
		{
			conv.GET("", h.Conversation.ListConversations)
			conv.DELETE("", h.Conversation.DeleteConversations)
			conv.POST("/delete_by_condition", h.Conversation.DeleteByCondition)
			conv.GET("/stats", h.Conversation.GetStats)
			conv.POST("/export", h.Export.Export)
			conv.GET("/setting", h.Setting.GetSetting)
			conv.PUT("/setting", h.Setting.UpdateSetting)

			// 维护
			conv.POST("/maintenance/archive", h.Maintenance.Archive)
			conv.POST("/maintenance/cleanup", h.Maintenance.Cleanup)
			conv.POST("/maintenance/optimize", h.Maintenance.Optimize)
			conv.GET("/maintenance/stats", h.Maintenance.GetStats)

			// 归档
			conv.GET("/archive", h.Maintenance.ListArchived)
			conv.GET("/archive/:id", h.Maintenance.GetArchived)

			conv.GET("/:id", h.Conversation.GetConversation)
		}
	}

	return r
}
