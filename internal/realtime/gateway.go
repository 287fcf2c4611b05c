package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"marketplace-im/config"
	"marketplace-im/internal/model"
	"marketplace-im/pkg/apperror"
	"marketplace-im/pkg/logger"
	"marketplace-im/pkg/redis"
	"marketplace-im/pkg/websocket"

	"go.uber.org/zap"
)

const (
	requestTimeout = 10 * time.Second
	sweepInterval  = 10 * time.Second
)

// ConversationAccess 网关用到的会话能力：成员校验和消息写入
type ConversationAccess interface {
	IsMember(ctx context.Context, conversationID, userID uint) (bool, error)
	SendMessage(ctx context.Context, conversationID, senderID uint, content string, typ model.MessageType) (*model.Message, error)
}

// Gateway 实时网关
// 不是数据的权威来源：推送的每条消息都已经持久化
type Gateway struct {
	registry      SessionRegistry
	conversations ConversationAccess
	calls         CallBook
	localCalls    *CallStore // 仅内存模式下非空，需要定期清理
}

var _ websocket.Dispatcher = (*Gateway)(nil)

// NewGateway 创建实时网关
// 启用 Redis 注册表时通话会话也放在 Redis，任一进程都能接听或挂断
func NewGateway(registry SessionRegistry, conversations ConversationAccess, cfg config.RealtimeConfig) *Gateway {
	g := &Gateway{
		registry:      registry,
		conversations: conversations,
	}
	if cfg.Registry == RegistryRedis && redis.Enabled() {
		g.calls = NewRedisCallStore(cfg.CallTimeout)
	} else {
		g.localCalls = NewCallStore(cfg.CallTimeout)
		g.calls = g.localCalls
	}
	return g
}

// Run 后台定期清理过期的来电和在线集合，ctx 取消后返回
func (g *Gateway) Run(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.sweep(ctx)
		}
	}
}

func (g *Gateway) sweep(ctx context.Context) {
	if g.localCalls != nil {
		if n := g.localCalls.Sweep(); n > 0 {
			logger.Debug("清理过期来电", zap.Int("count", n))
		}
	}
	if redis.Enabled() {
		if err := redis.CleanExpiredPresence(ctx); err != nil {
			logger.Warn("清理在线集合失败", zap.Error(err))
		}
	}
}

// OnConnect 登记连接，用户的第一个连接上线时写入在线状态
func (g *Gateway) OnConnect(c *websocket.Client) {
	if first := g.registry.Join(c); first && redis.Enabled() {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		if err := redis.SetUserOnline(ctx, c.UserID); err != nil {
			logger.Warn("设置在线状态失败", zap.Uint("user_id", c.UserID), zap.Error(err))
		}
	}
}

// OnDisconnect 注销连接，用户的最后一个连接断开时清除在线状态
func (g *Gateway) OnDisconnect(c *websocket.Client) {
	if last := g.registry.Leave(c); last && redis.Enabled() {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		if err := redis.RemoveUserPresence(ctx, c.UserID); err != nil {
			logger.Warn("清除在线状态失败", zap.Uint("user_id", c.UserID), zap.Error(err))
		}
	}
}

// OnMessage 处理客户端发来的一帧
// 同一连接的帧按到达顺序串行处理，因此同一发送者的消息按提交顺序转发
func (g *Gateway) OnMessage(c *websocket.Client, frame []byte) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil || env.Type == "" {
		g.sendError(c, "", apperror.Validation("malformed frame"))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	switch env.Type {
	case EventJoinConversation:
		var p conversationPayload
		if !g.decode(c, env, &p) {
			return
		}
		g.JoinConversationRoom(ctx, c, p.ConversationID)
	case EventLeaveConversation:
		var p conversationPayload
		if !g.decode(c, env, &p) {
			return
		}
		g.registry.LeaveRoom(c, p.ConversationID)
	case EventSendMessage:
		var p sendMessagePayload
		if !g.decode(c, env, &p) {
			return
		}
		g.handleSendMessage(ctx, c, p)
	case EventCallRequest:
		var p callRequestPayload
		if !g.decode(c, env, &p) {
			return
		}
		g.CallRequest(c.UserID, p.TargetUserID, p.CallType, p.ID)
	case EventAcceptCall:
		var p callPayload
		if !g.decode(c, env, &p) {
			return
		}
		g.AcceptCall(c.UserID, p.CallID)
	case EventRejectCall:
		var p callPayload
		if !g.decode(c, env, &p) {
			return
		}
		g.RejectCall(c.UserID, p.CallID)
	case EventEndCall:
		var p callPayload
		if !g.decode(c, env, &p) {
			return
		}
		g.EndCall(c.UserID, p.CallID)
	case EventHeartbeat:
		if redis.Enabled() {
			if err := redis.RefreshUserPresence(ctx, c.UserID); err != nil {
				logger.Warn("刷新在线状态失败", zap.Uint("user_id", c.UserID), zap.Error(err))
			}
		}
	default:
		g.sendError(c, env.Type, apperror.Validation("unknown event type"))
	}
}

func (g *Gateway) decode(c *websocket.Client, env Envelope, v interface{}) bool {
	if len(env.Data) == 0 {
		g.sendError(c, env.Type, apperror.Validation("missing data"))
		return false
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		g.sendError(c, env.Type, apperror.Validation("malformed data"))
		return false
	}
	return true
}

// JoinConversationRoom 成员才能加入房间；非成员静默拒绝，不暴露会话是否存在
func (g *Gateway) JoinConversationRoom(ctx context.Context, c *websocket.Client, conversationID uint) bool {
	if conversationID == 0 {
		return false
	}
	member, err := g.conversations.IsMember(ctx, conversationID, c.UserID)
	if err != nil {
		logger.Warn("校验会话成员失败",
			zap.Uint("user_id", c.UserID),
			zap.Uint("conversation_id", conversationID),
			zap.Error(err),
		)
		return false
	}
	if !member {
		logger.Debug("拒绝加入会话房间",
			zap.Uint("user_id", c.UserID),
			zap.Uint("conversation_id", conversationID),
		)
		return false
	}
	g.registry.JoinRoom(c, conversationID)
	return true
}

func (g *Gateway) handleSendMessage(ctx context.Context, c *websocket.Client, p sendMessagePayload) {
	msg, err := g.conversations.SendMessage(ctx, p.ConversationID, c.UserID, p.Content, model.MessageType(p.Type))
	if err != nil {
		g.sendError(c, EventSendMessage, err)
		return
	}
	g.RelayMessage(p.ConversationID, msg)
}

// RelayMessage 把已持久化的消息广播到会话房间
func (g *Gateway) RelayMessage(conversationID uint, msg *model.Message) {
	g.emitRoom(conversationID, EventNewMessage, msg)
}

// PushToUser 推送给用户的全部在线连接
func (g *Gateway) PushToUser(userID uint, event string, data interface{}) {
	frame, err := Encode(event, data)
	if err != nil {
		logger.Warn("编码推送失败", zap.String("event", event), zap.Error(err))
		return
	}
	g.registry.BroadcastToUser(userID, frame)
}

// IsOnline 用户是否有在线连接
func (g *Gateway) IsOnline(userID uint) bool {
	return g.registry.IsOnline(userID)
}

// CallRequest 发起通话，被叫不在线时回 call_unavailable 给主叫
func (g *Gateway) CallRequest(callerID, targetUserID uint, callType, callID string) {
	if targetUserID == 0 || targetUserID == callerID {
		g.PushToUser(callerID, EventError, ErrorEvent{
			Code:    string(apperror.CodeValidation),
			Message: "invalid call target",
			Request: EventCallRequest,
		})
		return
	}
	if callType == "" {
		callType = "video"
	}

	if !g.registry.IsOnline(targetUserID) {
		g.PushToUser(callerID, EventCallUnavailable, CallEvent{
			CallID:   callID,
			CallerID: callerID,
			CalleeID: targetUserID,
			CallType: callType,
			Reason:   "offline",
		})
		return
	}

	call, err := g.calls.Create(callID, callerID, targetUserID, callType)
	if errors.Is(err, errCallExists) {
		g.PushToUser(callerID, EventError, ErrorEvent{
			Code:    string(apperror.CodeValidation),
			Message: err.Error(),
			Request: EventCallRequest,
		})
		return
	}
	if err != nil {
		logger.Error("登记通话失败", zap.Uint("caller_id", callerID), zap.Error(err))
		g.PushToUser(callerID, EventCallUnavailable, CallEvent{
			CallID:   callID,
			CallerID: callerID,
			CalleeID: targetUserID,
			CallType: callType,
			Reason:   "unavailable",
		})
		return
	}

	g.PushToUser(targetUserID, EventIncomingCall, CallEvent{
		CallID:   call.ID,
		CallerID: callerID,
		CalleeID: targetUserID,
		CallType: call.CallType,
	})
}

// AcceptCall 被叫接听，通知主叫的全部连接；通话不存在或已过期时回 call_unavailable 给接听方
func (g *Gateway) AcceptCall(calleeID uint, callID string) {
	call, err := g.calls.Accept(callID, calleeID)
	if err != nil {
		if !errors.Is(err, errCallNotFound) {
			logger.Warn("更新通话失败", zap.String("call_id", callID), zap.Error(err))
		}
		g.PushToUser(calleeID, EventCallUnavailable, CallEvent{CallID: callID, CalleeID: calleeID, Reason: "expired"})
		return
	}
	g.PushToUser(call.CallerID, EventCallAccepted, callEventOf(call))
}

// RejectCall 被叫拒接，通知主叫
func (g *Gateway) RejectCall(calleeID uint, callID string) {
	call, err := g.calls.Reject(callID, calleeID)
	if err != nil {
		if !errors.Is(err, errCallNotFound) {
			logger.Warn("更新通话失败", zap.String("call_id", callID), zap.Error(err))
		}
		g.PushToUser(calleeID, EventCallUnavailable, CallEvent{CallID: callID, CalleeID: calleeID, Reason: "expired"})
		return
	}
	g.PushToUser(call.CallerID, EventCallRejected, callEventOf(call))
}

// EndCall 任一方挂断，通知另一方
func (g *Gateway) EndCall(userID uint, callID string) {
	call, err := g.calls.Remove(callID, userID)
	if err != nil {
		return
	}
	other := call.CalleeID
	if userID == call.CalleeID {
		other = call.CallerID
	}
	g.PushToUser(other, EventCallEnded, callEventOf(call))
}

func callEventOf(call CallSession) CallEvent {
	return CallEvent{
		CallID:   call.ID,
		CallerID: call.CallerID,
		CalleeID: call.CalleeID,
		CallType: call.CallType,
	}
}

func (g *Gateway) emitRoom(roomID uint, event string, data interface{}) {
	frame, err := Encode(event, data)
	if err != nil {
		logger.Warn("编码推送失败", zap.String("event", event), zap.Error(err))
		return
	}
	g.registry.BroadcastToRoom(roomID, frame)
}

// sendError 只回给发起请求的这个连接
func (g *Gateway) sendError(c *websocket.Client, request string, err error) {
	code := apperror.CodeOf(err)
	message := err.Error()
	if code == apperror.CodeUnknown || code == apperror.CodePersistence {
		logger.Error("实时请求处理失败", zap.Uint("user_id", c.UserID), zap.String("request", request), zap.Error(err))
		code = apperror.CodePersistence
		message = "server busy, please retry"
	}

	frame, encErr := Encode(EventError, ErrorEvent{Code: string(code), Message: message, Request: request})
	if encErr != nil {
		return
	}
	select {
	case c.Send <- frame:
	default:
	}
}
