package handler

import (
	"marketplace-im/pkg/response"

	"github.com/gin-gonic/gin"
)

// PresenceChecker 在线状态查询
type PresenceChecker interface {
	IsOnline(userID uint) bool
}

// UserHandler 用户相关接口
type UserHandler struct {
	presence PresenceChecker
}

// NewUserHandler 创建UserHandler实例
func NewUserHandler(presence PresenceChecker) *UserHandler {
	return &UserHandler{presence: presence}
}

// CheckUserOnline 检查指定用户是否在线
func (h *UserHandler) CheckUserOnline(c *gin.Context) {
	userID, ok := uintParam(c, "user_id")
	if !ok {
		return
	}
	response.Success(c, gin.H{
		"user_id": userID,
		"online":  h.presence.IsOnline(userID),
	})
}
