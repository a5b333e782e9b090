package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/convlog/internal/model"
	"github.com/ashwinyue/convlog/internal/service/export"
)

// ExportHandler 导出处理器
type ExportHandler struct {
	svc *export.Service
}

// NewExportHandler 创建导出处理器
func NewExportHandler(svc *export.Service) *ExportHandler {
	return &ExportHandler{svc: svc}
}

// Export 导出对话记录
// @Summary      导出对话记录
// @Description  按条件导出为 zstd 压缩的 JSON Lines 文件，空条件导出全部
// @Tags         对话记录
// @Accept       json
// @Produce      json
// @Param        request  body  model.ConversationFilter  false  "筛选条件"
// @Success      200  {object}  Response
// @Router       /conversations/export [post]
func (h *ExportHandler) Export(c *gin.Context) {
	var filter model.ConversationFilter
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&filter); err != nil {
			badRequest(c, "invalid request body: "+err.Error())
			return
		}
	}

	result, err := h.svc.Export(c.Request.Context(), filter)
	if err != nil {
		errorResponse(c, err)
		return
	}
	success(c, result)
}
