package handler

import (
	"marketplace-im/internal/model"
	"marketplace-im/internal/service"
	"marketplace-im/pkg/response"

	"github.com/gin-gonic/gin"
)

// ConversationHandler 会话和消息接口
type ConversationHandler struct {
	service *service.ConversationService
	relay   service.MessageRelay
}

// NewConversationHandler 创建ConversationHandler实例，relay 可为 nil
func NewConversationHandler(s *service.ConversationService, relay service.MessageRelay) *ConversationHandler {
	return &ConversationHandler{service: s, relay: relay}
}

type sendMessageReq struct {
	Content string `json:"content" binding:"required"`
	Type    string `json:"type"`
}

// List 当前用户的会话列表，最近活跃的在前
func (h *ConversationHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	list, err := h.service.GetUserConversations(c.Request.Context(), userID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, list)
}

// Messages 会话消息历史
// 支持 limit 和 before_id 向前翻页
func (h *ConversationHandler) Messages(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	convID, ok := uintParam(c, "id")
	if !ok {
		return
	}

	limit := intQuery(c, "limit", 50)
	beforeID := intQuery(c, "before_id", 0)

	messages, err := h.service.GetMessages(c.Request.Context(), convID, userID, limit, uint(beforeID))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, messages)
}

// Send 发送消息，持久化成功后推送到会话房间
func (h *ConversationHandler) Send(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	convID, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var r sendMessageReq
	if err := c.ShouldBindJSON(&r); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	msg, err := h.service.SendMessage(c.Request.Context(), convID, userID, r.Content, model.MessageType(r.Type))
	if err != nil {
		response.FromError(c, err)
		return
	}
	if h.relay != nil {
		h.relay.RelayMessage(convID, msg)
	}
	response.SuccessWithMessage(c, "消息发送成功", msg)
}
