package websocket

import (
	"net/http"
	"strings"
	"time"

	"marketplace-im/config"
	"marketplace-im/pkg/logger"
	"marketplace-im/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// 单帧最大字节数，留出消息正文之外的信封开销
const maxFrameSize = 64 * 1024

// Authenticator 校验令牌并返回用户ID
type Authenticator func(token string) (uint, error)

// Dispatcher 处理连接生命周期和客户端发来的帧
type Dispatcher interface {
	OnConnect(c *Client)
	OnMessage(c *Client, frame []byte)
	OnDisconnect(c *Client)
}

// Handler WebSocket 接入：鉴权、升级、读写协程
type Handler struct {
	cfg        config.WebSocketConfig
	auth       Authenticator
	dispatcher Dispatcher
	upgrader   websocket.Upgrader
}

// NewHandler 创建 WebSocket 接入处理器
func NewHandler(cfg config.WebSocketConfig, auth Authenticator, dispatcher Dispatcher) *Handler {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.ReadTimeout <= cfg.PingInterval {
		cfg.ReadTimeout = 2 * cfg.PingInterval
	}
	return &Handler{
		cfg:        cfg,
		auth:       auth,
		dispatcher: dispatcher,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许跨域
			},
		},
	}
}

// Serve Gin路由处理函数
// token 从 query 或 Sec-WebSocket-Protocol 中读取
func (h *Handler) Serve(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = strings.TrimPrefix(c.GetHeader("Sec-WebSocket-Protocol"), "Bearer ")
	}
	if token == "" {
		response.Unauthorized(c, "缺少token")
		return
	}

	userID, err := h.auth(token)
	if err != nil {
		response.Unauthorized(c, "token无效或已过期")
		return
	}

	// 回显子协议，避免客户端提示 "Server sent no subprotocol"
	respHeader := http.Header{}
	if protocol := c.GetHeader("Sec-WebSocket-Protocol"); protocol != "" {
		respHeader.Set("Sec-WebSocket-Protocol", protocol)
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, respHeader)
	if err != nil {
		logger.Warn("WebSocket升级失败", zap.Uint("user_id", userID), zap.Error(err))
		return
	}

	client := NewClient(userID, conn, h.cfg.SendBuffer)
	h.dispatcher.OnConnect(client)
	logger.Info("WebSocket连接建立", zap.Uint("user_id", userID), zap.Uint64("client_id", client.ID))

	go h.writePump(client)
	h.readPump(client)

	h.dispatcher.OnDisconnect(client)
	_ = conn.Close()
	logger.Info("WebSocket连接关闭", zap.Uint("user_id", userID), zap.Uint64("client_id", client.ID))
}

// writePump 写协程 + 定时发送ping心跳，Send 关闭后退出
func (h *Handler) writePump(c *Client) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				// 关闭底层连接，让读协程退出
				_ = c.Conn.Close()
				return
			}
		case <-ticker.C:
			if err := c.Conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second)); err != nil {
				_ = c.Conn.Close()
				return
			}
		}
	}
}

// readPump 读协程，超时未收到任何读事件则断开
func (h *Handler) readPump(c *Client) {
	c.Conn.SetReadLimit(maxFrameSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	c.Conn.SetPongHandler(func(appData string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	})

	for {
		_, payload, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("WebSocket读取失败", zap.Uint("user_id", c.UserID), zap.Error(err))
			}
			return
		}
		_ = c.Conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
		h.dispatcher.OnMessage(c, payload)
	}
}
