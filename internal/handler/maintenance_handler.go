package handler

import (
	"context"
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/convlog/internal/model"
	"github.com/ashwinyue/convlog/internal/service/maintenance"
)

// MaintenanceHandler 维护任务处理器
type MaintenanceHandler struct {
	svc *maintenance.Service
}

// NewMaintenanceHandler 创建维护任务处理器
func NewMaintenanceHandler(svc *maintenance.Service) *MaintenanceHandler {
	return &MaintenanceHandler{svc: svc}
}

// MaintenanceRequest 归档/清理请求，字段为 0 时使用配置值
type MaintenanceRequest struct {
	Days      int `json:"days"`
	BatchSize int `json:"batch_size"`
}

// TaskResponse 后台任务受理结果
type TaskResponse struct {
	Task   string `json:"task"`
	Before int64  `json:"before,omitempty"`
}

// bindMaintenance 解析请求体，空请求体视为全部使用默认值
func bindMaintenance(c *gin.Context, defaultDays int) (*MaintenanceRequest, error) {
	var req MaintenanceRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			return nil, fmt.Errorf("invalid request body: %w", err)
		}
	}
	if req.Days < 0 || req.BatchSize < 0 {
		return nil, maintenance.ErrInvalidDays
	}
	if req.Days == 0 {
		req.Days = defaultDays
	}
	return &req, nil
}

// Archive 后台归档旧对话
// @Summary      归档旧对话
// @Tags         对话维护
// @Accept       json
// @Produce      json
// @Param        request  body  MaintenanceRequest  false  "归档参数"
// @Success      202  {object}  Response
// @Failure      409  {object}  Response  "任务正在执行"
// @Router       /conversations/maintenance/archive [post]
func (h *MaintenanceHandler) Archive(c *gin.Context) {
	req, err := bindMaintenance(c, h.svc.Config().ArchiveDays)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	before := h.svc.Cutoff(req.Days)
	err = h.svc.RunInBackground("archive", func(ctx context.Context) error {
		_, err := h.svc.Archive(ctx, before, req.BatchSize)
		return err
	})
	if err != nil {
		errorResponse(c, err)
		return
	}
	accepted(c, TaskResponse{Task: "archive", Before: before})
}

// Cleanup 后台清理归档数据
// @Summary      清理归档数据
// @Tags         对话维护
// @Accept       json
// @Produce      json
// @Param        request  body  MaintenanceRequest  false  "清理参数"
// @Success      202  {object}  Response
// @Router       /conversations/maintenance/cleanup [post]
func (h *MaintenanceHandler) Cleanup(c *gin.Context) {
	req, err := bindMaintenance(c, h.svc.Config().CleanupDays)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	before := h.svc.Cutoff(req.Days)
	err = h.svc.RunInBackground("cleanup", func(ctx context.Context) error {
		_, err := h.svc.CleanupArchives(ctx, before, req.BatchSize)
		return err
	})
	if err != nil {
		errorResponse(c, err)
		return
	}
	accepted(c, TaskResponse{Task: "cleanup", Before: before})
}

// Optimize 后台优化表
// @Summary      优化对话表
// @Tags         对话维护
// @Produce      json
// @Success      202  {object}  Response
// @Router       /conversations/maintenance/optimize [post]
func (h *MaintenanceHandler) Optimize(c *gin.Context) {
	if err := h.svc.RunInBackground("optimize", h.svc.Optimize); err != nil {
		errorResponse(c, err)
		return
	}
	accepted(c, TaskResponse{Task: "optimize"})
}

// GetStats 表统计
// @Summary      对话表统计
// @Tags         对话维护
// @Produce      json
// @Success      200  {object}  Response
// @Router       /conversations/maintenance/stats [get]
func (h *MaintenanceHandler) GetStats(c *gin.Context) {
	stats, err := h.svc.TableStats(c.Request.Context())
	if err != nil {
		errorResponse(c, err)
		return
	}
	success(c, stats)
}

// ListArchived 查询归档记录
// @Summary      查询归档记录
// @Tags         对话维护
// @Produce      json
// @Success      200  {object}  Response
// @Router       /conversations/archive [get]
func (h *MaintenanceHandler) ListArchived(c *gin.Context) {
	var filter model.ConversationFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		badRequest(c, "invalid query parameters: "+err.Error())
		return
	}

	result, err := h.svc.ListArchived(c.Request.Context(), filter)
	if err != nil {
		errorResponse(c, err)
		return
	}
	success(c, result)
}

// GetArchived 获取归档详情
// @Summary      获取归档详情
// @Tags         对话维护
// @Produce      json
// @Param        id  path  int  true  "归档ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  Response
// @Router       /conversations/archive/{id} [get]
func (h *MaintenanceHandler) GetArchived(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "invalid archive id")
		return
	}

	archived, err := h.svc.GetArchived(c.Request.Context(), id)
	if err != nil {
		errorResponse(c, err)
		return
	}
	success(c, archived)
}
