package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/TheAgenticWeb/agentic-web-starter-kit/internal/middleware"
	"github.com/TheAgenticWeb/agentic-web-starter-kit/internal/service"
	"github.com/TheAgenticWeb/agentic-web-starter-kit/internal/storage"
	"github.com/TheAgenticWeb/agentic-web-starter-kit/pkg/response"
)

// ChatHandler 聊天请求处理器
// 覆盖会话管理、消息管理和发送消息
type ChatHandler struct {
	chatService *service.ChatService
}

// NewChatHandler 创建 ChatHandler 实例
func NewChatHandler(chatService *service.ChatService) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
	}
}

// ==================== 会话管理 ====================

// ListConversations 获取会话列表
// @Summary 获取会话列表
// @Description 返回当前用户的所有会话，按最近活跃排序
// @Tags 会话
// @Security Bearer
// @Produce json
// @Success 200 {object} response.Response{data=[]model.Conversation}
// @Router /api/v1/conversations [get]
func (h *ChatHandler) ListConversations(c *gin.Context) {
	userID := middleware.GetUserID(c)

	conversations, err := h.chatService.ListConversations(c.Request.Context(), userID)
	if err != nil {
		response.InternalError(c, "获取会话列表失败")
		return
	}

	response.Success(c, conversations)
}

// createConversationRequest 创建会话请求
type createConversationRequest struct {
	Title string `json:"title"` // 会话标题，可为空
}

// CreateConversation 创建新会话
// @Summary 创建会话
// @Tags 会话
// @Security Bearer
// @Accept json
// @Produce json
// @Success 201 {object} response.Response{data=model.Conversation}
// @Router /api/v1/conversations [post]
func (h *ChatHandler) CreateConversation(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var req createConversationRequest
	// 请求体可以为空，忽略绑定错误
	_ = c.ShouldBindJSON(&req)

	conv, err := h.chatService.CreateConversation(c.Request.Context(), userID, req.Title)
	if err != nil {
		response.InternalError(c, "创建会话失败")
		return
	}

	response.Created(c, conv)
}

// GetConversation 获取单个会话
// @Summary 获取会话详情
// @Description 返回会话及其全部消息
// @Tags 会话
// @Security Bearer
// @Produce json
// @Param id path string true "会话ID"
// @Success 200 {object} response.Response{data=model.Conversation}
// @Router /api/v1/conversations/{id} [get]
func (h *ChatHandler) GetConversation(c *gin.Context) {
	userID := middleware.GetUserID(c)
	conversationID := c.Param("id")

	conv, err := h.chatService.GetConversation(c.Request.Context(), userID, conversationID)
	if err != nil {
		if errors.Is(err, storage.ErrConversationNotFound) {
			response.ConversationNotFound(c)
		} else {
			response.InternalError(c, "获取会话失败")
		}
		return
	}

	response.Success(c, conv)
}

// renameConversationRequest 重命名会话请求
type renameConversationRequest struct {
	Title string `json:"title" binding:"required,max=255"`
}

// RenameConversation 重命名会话
// @Summary 重命名会话
// @Tags 会话
// @Security Bearer
// @Accept json
// @Produce json
// @Param id path string true "会话ID"
// @Success 200 {object} response.Response
// @Router /api/v1/conversations/{id} [put]
func (h *ChatHandler) RenameConversation(c *gin.Context) {
	userID := middleware.GetUserID(c)
	conversationID := c.Param("id")

	var req renameConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "无效的请求参数")
		return
	}

	err := h.chatService.RenameConversation(c.Request.Context(), userID, conversationID, req.Title)
	if err != nil {
		if errors.Is(err, storage.ErrConversationNotFound) {
			response.ConversationNotFound(c)
		} else {
			response.InternalError(c, "重命名会话失败")
		}
		return
	}

	response.SuccessWithMessage(c, "会话已重命名", nil)
}

// DeleteConversation 删除会话
// @Summary 删除会话
// @Description 删除会话及其全部消息
// @Tags 会话
// @Security Bearer
// @Produce json
// @Param id path string true "会话ID"
// @Success 204
// @Router /api/v1/conversations/{id} [delete]
func (h *ChatHandler) DeleteConversation(c *gin.Context) {
	userID := middleware.GetUserID(c)
	conversationID := c.Param("id")

	err := h.chatService.DeleteConversation(c.Request.Context(), userID, conversationID)
	if err != nil {
		if errors.Is(err, storage.ErrConversationNotFound) {
			response.ConversationNotFound(c)
		} else {
			response.InternalError(c, "删除会话失败")
		}
		return
	}

	response.NoContent(c)
}

// ClearConversations 清空所有会话
// @Summary 清空会话
// @Description 删除当前用户的所有会话和消息
// @Tags 会话
// @Security Bearer
// @Produce json
// @Success 204
// @Router /api/v1/conversations [delete]
func (h *ChatHandler) ClearConversations(c *gin.Context) {
	userID := middleware.GetUserID(c)

	if err := h.chatService.ClearConversations(c.Request.Context(), userID); err != nil {
		if errors.Is(err, storage.ErrUserNotBound) {
			response.Unauthorized(c, "请先登录")
		} else {
			response.InternalError(c, "清空会话失败")
		}
		return
	}

	response.NoContent(c)
}

// ==================== 消息管理 ====================

// GetMessages 获取会话的消息列表
// @Summary 获取消息列表
// @Description 返回会话的全部消息，按创建时间正序
// @Tags 消息
// @Security Bearer
// @Produce json
// @Param id path string true "会话ID"
// @Success 200 {object} response.Response{data=[]model.Message}
// @Router /api/v1/conversations/{id}/messages [get]
func (h *ChatHandler) GetMessages(c *gin.Context) {
	userID := middleware.GetUserID(c)
	conversationID := c.Param("id")

	messages, err := h.chatService.GetMessages(c.Request.Context(), userID, conversationID)
	if err != nil {
		if errors.Is(err, storage.ErrConversationNotFound) {
			response.ConversationNotFound(c)
		} else {
			response.InternalError(c, "获取消息失败")
		}
		return
	}

	response.Success(c, messages)
}

// updateMessageRequest 更新消息请求
type updateMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// UpdateMessage 更新消息内容
// @Summary 更新消息
// @Tags 消息
// @Security Bearer
// @Accept json
// @Produce json
// @Param id path string true "消息ID"
// @Success 200 {object} response.Response
// @Router /api/v1/messages/{id} [put]
func (h *ChatHandler) UpdateMessage(c *gin.Context) {
	userID := middleware.GetUserID(c)
	messageID := c.Param("id")

	var req updateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "无效的请求参数")
		return
	}

	err := h.chatService.UpdateMessageContent(c.Request.Context(), userID, messageID, req.Content)
	if err != nil {
		if errors.Is(err, storage.ErrMessageNotFound) {
			response.MessageNotFound(c)
		} else {
			response.InternalError(c, "更新消息失败")
		}
		return
	}

	response.SuccessWithMessage(c, "消息已更新", nil)
}

// DeleteMessage 删除消息
// @Summary 删除消息
// @Tags 消息
// @Security Bearer
// @Produce json
// @Param id path string true "消息ID"
// @Success 204
// @Router /api/v1/messages/{id} [delete]
func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	userID := middleware.GetUserID(c)
	messageID := c.Param("id")

	err := h.chatService.DeleteMessage(c.Request.Context(), userID, messageID)
	if err != nil {
		if errors.Is(err, storage.ErrMessageNotFound) {
			response.MessageNotFound(c)
		} else {
			response.InternalError(c, "删除消息失败")
		}
		return
	}

	response.NoContent(c)
}

// ==================== 发送消息 ====================

// SendMessage 发送消息并获取 AI 回复
// @Summary 发送消息
// @Description 保存用户消息，调用大模型生成回复。conversation_id 为空时自动创建新会话。
// @Tags 聊天
// @Security Bearer
// @Accept json
// @Produce json
// @Param body body service.SendMessageRequest true "消息内容"
// @Success 200 {object} response.Response{data=service.SendMessageResponse}
// @Router /api/v1/chat/send [post]
func (h *ChatHandler) SendMessage(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var req service.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "无效的请求参数")
		return
	}

	resp, err := h.chatService.SendMessage(c.Request.Context(), userID, &req)
	if err != nil {
		if errors.Is(err, storage.ErrConversationNotFound) {
			response.ConversationNotFound(c)
		} else {
			response.InternalError(c, "发送消息失败")
		}
		return
	}

	response.Success(c, resp)
}
