package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/ashwinyue/convlog/internal/service/conversation"
	"github.com/ashwinyue/convlog/internal/service/maintenance"
)

// ========== 统一响应格式 ==========

// Response 统一响应，失败时 message 说明原因，成功时 data 为结果
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// success 成功响应 (200)
func success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

// accepted 后台任务已受理 (202)
func accepted(c *gin.Context, data interface{}) {
	c.JSON(http.StatusAccepted, Response{Success: true, Data: data})
}

// fail 失败响应
func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, Response{Success: false, Message: msg})
}

// badRequest 400 错误响应
func badRequest(c *gin.Context, msg string) {
	fail(c, http.StatusBadRequest, msg)
}

// errorResponse 根据错误类型返回相应的错误响应
func errorResponse(c *gin.Context, err error) {
	switch {
	case errors.Is(err, conversation.ErrInvalidFilter), errors.Is(err, maintenance.ErrInvalidDays):
		fail(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, conversation.ErrConversationNotFound), errors.Is(err, maintenance.ErrArchiveNotFound):
		fail(c, http.StatusNotFound, err.Error())
	case errors.Is(err, maintenance.ErrTaskRunning):
		fail(c, http.StatusConflict, err.Error())
	default:
		log.WithError(err).WithField("path", c.Request.URL.Path).Error("Request failed")
		fail(c, http.StatusInternalServerError, err.Error())
	}
}
