package realtime

import (
	"context"
	"encoding/json"
	"time"

	"marketplace-im/pkg/logger"
	"marketplace-im/pkg/redis"
	"marketplace-im/pkg/websocket"

	"go.uber.org/zap"
)

// SessionRegistry 在线连接与会话房间的注册表
// 单进程用 *websocket.Manager，多进程用 PubSubRegistry
// Broadcast 的返回值只用于日志：本地实现为投递的连接数，PubSub 实现为收到广播的进程数
type SessionRegistry interface {
	Join(c *websocket.Client) bool
	Leave(c *websocket.Client) bool
	JoinRoom(c *websocket.Client, roomID uint)
	LeaveRoom(c *websocket.Client, roomID uint)
	BroadcastToUser(userID uint, msg []byte) int
	BroadcastToRoom(roomID uint, msg []byte) int
	IsOnline(userID uint) bool
}

var _ SessionRegistry = (*websocket.Manager)(nil)
var _ SessionRegistry = (*PubSubRegistry)(nil)

// RegistryRedis 配置 realtime.registry 取该值时启用跨进程广播和共享通话会话
const RegistryRedis = "redis"

const (
	busKindUser = "user"
	busKindRoom = "room"

	publishTimeout = 2 * time.Second
)

// busMessage 进程间广播的消息
type busMessage struct {
	Kind    string          `json:"kind"`
	Target  uint            `json:"target"`
	Payload json.RawMessage `json:"payload"`
}

// PubSubRegistry 基于 Redis 发布订阅的注册表
// 连接和房间登记在本进程，广播经 Redis 分发到所有进程后再各自本地投递
type PubSubRegistry struct {
	local   *websocket.Manager
	channel string
}

// NewPubSubRegistry 创建 PubSubRegistry
func NewPubSubRegistry(local *websocket.Manager, channel string) *PubSubRegistry {
	if channel == "" {
		channel = "mkt:realtime:bus"
	}
	return &PubSubRegistry{local: local, channel: channel}
}

func (r *PubSubRegistry) Join(c *websocket.Client) bool  { return r.local.Join(c) }
func (r *PubSubRegistry) Leave(c *websocket.Client) bool { return r.local.Leave(c) }

func (r *PubSubRegistry) JoinRoom(c *websocket.Client, roomID uint) {
	r.local.JoinRoom(c, roomID)
}

func (r *PubSubRegistry) LeaveRoom(c *websocket.Client, roomID uint) {
	r.local.LeaveRoom(c, roomID)
}

// BroadcastToUser 经 Redis 广播给用户，发布失败时退化为本地投递
func (r *PubSubRegistry) BroadcastToUser(userID uint, msg []byte) int {
	return r.publish(busMessage{Kind: busKindUser, Target: userID, Payload: msg})
}

// BroadcastToRoom 经 Redis 广播给房间，发布失败时退化为本地投递
func (r *PubSubRegistry) BroadcastToRoom(roomID uint, msg []byte) int {
	return r.publish(busMessage{Kind: busKindRoom, Target: roomID, Payload: msg})
}

// IsOnline 本进程有连接，或 Redis 中有在线状态
func (r *PubSubRegistry) IsOnline(userID uint) bool {
	if r.local.IsOnline(userID) {
		return true
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	online, err := redis.IsUserOnline(ctx, userID)
	if err != nil {
		logger.Warn("查询在线状态失败", zap.Uint("user_id", userID), zap.Error(err))
		return false
	}
	return online
}

func (r *PubSubRegistry) publish(m busMessage) int {
	data, err := json.Marshal(m)
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err = redis.Publish(ctx, r.channel, data); err == nil {
			return 1
		}
	}
	logger.Warn("跨进程广播失败，仅本地投递",
		zap.String("kind", m.Kind),
		zap.Uint("target", m.Target),
		zap.Error(err),
	)
	return r.deliverLocal(m)
}

func (r *PubSubRegistry) deliverLocal(m busMessage) int {
	switch m.Kind {
	case busKindUser:
		return r.local.BroadcastToUser(m.Target, m.Payload)
	case busKindRoom:
		return r.local.BroadcastToRoom(m.Target, m.Payload)
	}
	return 0
}

// Run 订阅广播频道并投递到本地连接，ctx 取消后返回
func (r *PubSubRegistry) Run(ctx context.Context) error {
	ps, err := redis.Subscribe(ctx, r.channel)
	if err != nil {
		return err
	}
	defer ps.Close()

	logger.Info("实时广播订阅已启动", zap.String("channel", r.channel))
	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var m busMessage
			if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
				logger.Warn("广播消息解析失败", zap.Error(err))
				continue
			}
			r.deliverLocal(m)
		}
	}
}
