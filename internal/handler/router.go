package handler

import (
	"github.com/gin-gonic/gin"
)

// Handlers 全部 HTTP 处理器
type Handlers struct {
	Connection   *ConnectionHandler
	Conversation *ConversationHandler
	Notification *NotificationHandler
	User         *UserHandler
}

// Register 注册 /api/v1 下的业务路由，auth 为 JWT 中间件
func (h *Handlers) Register(r gin.IRouter, auth gin.HandlerFunc) {
	api := r.Group("/api/v1", auth)

	conn := api.Group("/connections")
	{
		conn.GET("", h.Connection.List)
		conn.GET("/status/:user_id", h.Connection.CheckStatus)
		conn.GET("/pending", h.Connection.Pending)
		conn.POST("/requests", h.Connection.SendRequest)
		conn.POST("/requests/:id/respond", h.Connection.Respond)
		conn.POST("/inquiries", h.Connection.SendInquiry)
		conn.POST("/block", h.Connection.Block)
		conn.DELETE("/block/:user_id", h.Connection.Unblock)
		conn.GET("/blocked", h.Connection.Blocked)
		conn.DELETE("/:id", h.Connection.Delete)
	}

	convs := api.Group("/conversations")
	{
		convs.GET("", h.Conversation.List)
		convs.GET("/:id/messages", h.Conversation.Messages)
		convs.POST("/:id/messages", h.Conversation.Send)
	}

	notify := api.Group("/notifications")
	{
		notify.GET("", h.Notification.List)
		notify.GET("/unread/count", h.Notification.UnreadCount)
		notify.PUT("/read-all", h.Notification.MarkAllRead)
		notify.PUT("/:id/read", h.Notification.MarkRead)
	}

	api.GET("/users/:user_id/online", h.User.CheckUserOnline)
}
