package handler

import (
	"marketplace-im/internal/model"
	"marketplace-im/internal/service"
	"marketplace-im/pkg/response"

	"github.com/gin-gonic/gin"
)

// ConnectionHandler 联系请求相关接口
type ConnectionHandler struct {
	service *service.ConnectionService
}

// NewConnectionHandler 创建ConnectionHandler实例
func NewConnectionHandler(s *service.ConnectionService) *ConnectionHandler {
	return &ConnectionHandler{service: s}
}

type contactRequestReq struct {
	ToUserID uint   `json:"to_user_id" binding:"required"`
	Message  string `json:"message"`
	Type     string `json:"type"`
}

type respondReq struct {
	Action string `json:"action" binding:"required,oneof=accept reject"`
}

type inquiryReq struct {
	ToUserID  uint   `json:"to_user_id" binding:"required"`
	ServiceID uint   `json:"service_id" binding:"required"`
	Message   string `json:"message" binding:"required"`
}

type blockReq struct {
	UserID uint   `json:"user_id" binding:"required"`
	Reason string `json:"reason"`
}

// CheckStatus 查询与指定用户的连接状态
func (h *ConnectionHandler) CheckStatus(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	otherID, ok := uintParam(c, "user_id")
	if !ok {
		return
	}

	status, err := h.service.CheckConnectionStatus(c.Request.Context(), userID, otherID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, status)
}

// SendRequest 发起联系请求
func (h *ConnectionHandler) SendRequest(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var r contactRequestReq
	if err := c.ShouldBindJSON(&r); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	id, err := h.service.SendContactRequest(c.Request.Context(), userID, r.ToUserID, r.Message, model.ConnectionType(r.Type))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "请求已发送", gin.H{"connection_id": id})
}

// Respond 接受或拒绝联系请求
func (h *ConnectionHandler) Respond(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	connID, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var r respondReq
	if err := c.ShouldBindJSON(&r); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.RespondToContactRequest(c.Request.Context(), connID, userID, r.Action)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, result)
}

// List 当前用户的全部连接
func (h *ConnectionHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	list, err := h.service.GetUserConnections(c.Request.Context(), userID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, list)
}

// Pending 待当前用户处理的请求
func (h *ConnectionHandler) Pending(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	list, err := h.service.GetPendingRequests(c.Request.Context(), userID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, list)
}

// SendInquiry 服务咨询
func (h *ConnectionHandler) SendInquiry(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var r inquiryReq
	if err := c.ShouldBindJSON(&r); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.SendServiceInquiry(c.Request.Context(), userID, r.ToUserID, r.ServiceID, r.Message)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "咨询已发送", result)
}

// Block 拉黑用户
func (h *ConnectionHandler) Block(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var r blockReq
	if err := c.ShouldBindJSON(&r); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.service.BlockUser(c.Request.Context(), userID, r.UserID, r.Reason); err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "已拉黑", nil)
}

// Unblock 取消拉黑
func (h *ConnectionHandler) Unblock(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	blockedID, ok := uintParam(c, "user_id")
	if !ok {
		return
	}

	if err := h.service.UnblockUser(c.Request.Context(), userID, blockedID); err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "已取消拉黑", nil)
}

// Blocked 拉黑列表
func (h *ConnectionHandler) Blocked(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	list, err := h.service.GetBlockedUsers(c.Request.Context(), userID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, list)
}

// Delete 删除连接记录
func (h *ConnectionHandler) Delete(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	connID, ok := uintParam(c, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteConnection(c.Request.Context(), connID, userID); err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "已删除", nil)
}
