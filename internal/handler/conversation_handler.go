package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/convlog/internal/model"
	"github.com/ashwinyue/convlog/internal/service/conversation"
)

// ConversationHandler 对话记录处理器
type ConversationHandler struct {
	svc *conversation.Service
}

// NewConversationHandler 创建对话记录处理器
func NewConversationHandler(svc *conversation.Service) *ConversationHandler {
	return &ConversationHandler{svc: svc}
}

// DeleteByIDsRequest 按 ID 删除请求
type DeleteByIDsRequest struct {
	IDs []int64 `json:"ids"`
}

// DeleteResponse 删除结果
type DeleteResponse struct {
	Deleted int64 `json:"deleted"`
}

// ConversationDetail 对话详情，parse=true 时附带消息解析结果
type ConversationDetail struct {
	*model.Conversation
	MessagesView *conversation.MessagesView `json:"messages_view,omitempty"`
}

// ListConversations 查询对话记录
// @Summary      查询对话记录
// @Tags         对话记录
// @Produce      json
// @Param        username    query  string  false  "用户名（精确匹配）"
// @Param        model_name  query  string  false  "模型名（精确匹配）"
// @Param        user_id     query  int     false  "用户ID"
// @Param        start_time  query  int     false  "开始时间（含）"
// @Param        end_time    query  int     false  "结束时间（含）"
// @Param        page        query  int     false  "页码"
// @Param        page_size   query  int     false  "每页数量"
// @Success      200  {object}  Response
// @Router       /conversations [get]
func (h *ConversationHandler) ListConversations(c *gin.Context) {
	var filter model.ConversationFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		badRequest(c, "invalid query parameters: "+err.Error())
		return
	}

	result, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		errorResponse(c, err)
		return
	}
	success(c, result)
}

// GetConversation 获取对话详情
// @Summary      获取对话详情
// @Tags         对话记录
// @Produce      json
// @Param        id     path   int   true   "对话ID"
// @Param        parse  query  bool  false  "是否解析请求消息"
// @Success      200  {object}  Response
// @Failure      404  {object}  Response
// @Router       /conversations/{id} [get]
func (h *ConversationHandler) GetConversation(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "invalid conversation id")
		return
	}

	conv, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		errorResponse(c, err)
		return
	}

	detail := ConversationDetail{Conversation: conv}
	if parse, _ := strconv.ParseBool(c.Query("parse")); parse {
		detail.MessagesView = conversation.InspectMessages(conv.RequestMessages)
	}
	success(c, detail)
}

// DeleteConversations 按 ID 批量删除
// @Summary      按 ID 删除对话
// @Tags         对话记录
// @Accept       json
// @Produce      json
// @Param        request  body  DeleteByIDsRequest  true  "ID 列表"
// @Success      200  {object}  Response
// @Router       /conversations [delete]
func (h *ConversationHandler) DeleteConversations(c *gin.Context) {
	var req DeleteByIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	deleted, err := h.svc.DeleteByIDs(c.Request.Context(), req.IDs)
	if err != nil {
		errorResponse(c, err)
		return
	}
	success(c, DeleteResponse{Deleted: deleted})
}

// DeleteByCondition 按条件删除
// @Summary      按条件删除对话
// @Description  至少需要一个筛选条件，条件语义与查询一致
// @Tags         对话记录
// @Accept       json
// @Produce      json
// @Param        request  body  model.ConversationFilter  true  "筛选条件"
// @Success      200  {object}  Response
// @Failure      400  {object}  Response
// @Router       /conversations/delete_by_condition [post]
func (h *ConversationHandler) DeleteByCondition(c *gin.Context) {
	var filter model.ConversationFilter
	if err := c.ShouldBindJSON(&filter); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	deleted, err := h.svc.DeleteByFilter(c.Request.Context(), filter)
	if err != nil {
		errorResponse(c, err)
		return
	}
	success(c, DeleteResponse{Deleted: deleted})
}

// GetStats 统计对话记录
// @Summary      统计对话记录
// @Tags         对话记录
// @Produce      json
// @Success      200  {object}  Response
// @Router       /conversations/stats [get]
func (h *ConversationHandler) GetStats(c *gin.Context) {
	var filter model.ConversationFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		badRequest(c, "invalid query parameters: "+err.Error())
		return
	}

	stats, err := h.svc.Stats(c.Request.Context(), filter)
	if err != nil {
		errorResponse(c, err)
		return
	}
	success(c, stats)
}
