package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/convlog/internal/service/gate"
)

// SettingHandler 对话记录开关处理器
type SettingHandler struct {
	gate *gate.Gate
}

// NewSettingHandler 创建开关处理器
func NewSettingHandler(g *gate.Gate) *SettingHandler {
	return &SettingHandler{gate: g}
}

// SettingResponse 开关状态
type SettingResponse struct {
	Enabled bool `json:"enabled"`
}

// UpdateSettingRequest 修改开关请求
type UpdateSettingRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// GetSetting 获取开关状态
// @Summary      获取对话记录开关
// @Tags         对话记录
// @Produce      json
// @Success      200  {object}  Response
// @Router       /conversations/setting [get]
func (h *SettingHandler) GetSetting(c *gin.Context) {
	success(c, SettingResponse{Enabled: h.gate.IsEnabled()})
}

// UpdateSetting 修改开关
// @Summary      修改对话记录开关
// @Tags         对话记录
// @Accept       json
// @Produce      json
// @Param        request  body  UpdateSettingRequest  true  "开关"
// @Success      200  {object}  Response
// @Router       /conversations/setting [put]
func (h *SettingHandler) UpdateSetting(c *gin.Context) {
	var req UpdateSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	if err := h.gate.SetEnabled(c.Request.Context(), *req.Enabled); err != nil {
		errorResponse(c, err)
		return
	}
	success(c, SettingResponse{Enabled: h.gate.IsEnabled()})
}
