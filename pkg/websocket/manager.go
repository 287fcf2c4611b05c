package websocket

import (
	"sync"
	"sync/atomic"

	"marketplace-im/pkg/logger"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var clientSeq atomic.Uint64

// Client 一个WebSocket连接，同一用户可以有多个（多设备）
// UserID: 用户ID
// Conn: WebSocket连接，测试中可为 nil
// Send: 发送消息的通道

type Client struct {
	ID     uint64
	UserID uint
	Conn   *websocket.Conn
	Send   chan []byte

	closeOnce sync.Once
}

// NewClient 创建连接
func NewClient(userID uint, conn *websocket.Conn, buffer int) *Client {
	if buffer <= 0 {
		buffer = 256
	}
	return &Client{
		ID:     clientSeq.Add(1),
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, buffer),
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.Send) })
}

// Manager 管理本进程内所有在线连接和会话房间
// 支持并发安全

type Manager struct {
	clients map[uint]map[*Client]struct{} // 用户 -> 连接
	rooms   map[uint]map[*Client]struct{} // 会话 -> 连接
	joined  map[*Client]map[uint]struct{} // 连接 -> 已加入的会话
	lock    sync.RWMutex
}

// NewManager 创建连接管理器
func NewManager() *Manager {
	return &Manager{
		clients: make(map[uint]map[*Client]struct{}),
		rooms:   make(map[uint]map[*Client]struct{}),
		joined:  make(map[*Client]map[uint]struct{}),
	}
}

// Join 登记新连接，返回是否为该用户的第一个连接
func (m *Manager) Join(c *Client) bool {
	m.lock.Lock()
	defer m.lock.Unlock()

	set, ok := m.clients[c.UserID]
	if !ok {
		set = make(map[*Client]struct{})
		m.clients[c.UserID] = set
	}
	set[c] = struct{}{}
	m.joined[c] = make(map[uint]struct{})
	return len(set) == 1
}

// Leave 移除连接并退出它加入的所有房间，返回是否为该用户的最后一个连接
func (m *Manager) Leave(c *Client) bool {
	m.lock.Lock()
	defer m.lock.Unlock()

	for roomID := range m.joined[c] {
		m.removeFromRoom(c, roomID)
	}
	delete(m.joined, c)

	last := false
	if set, ok := m.clients[c.UserID]; ok {
		if _, present := set[c]; present {
			delete(set, c)
			if len(set) == 0 {
				delete(m.clients, c.UserID)
				last = true
			}
		}
	}
	c.close()
	return last
}

// JoinRoom 连接加入会话房间，未登记的连接忽略
func (m *Manager) JoinRoom(c *Client, roomID uint) {
	m.lock.Lock()
	defer m.lock.Unlock()

	rooms, ok := m.joined[c]
	if !ok {
		return
	}
	members, ok := m.rooms[roomID]
	if !ok {
		members = make(map[*Client]struct{})
		m.rooms[roomID] = members
	}
	members[c] = struct{}{}
	rooms[roomID] = struct{}{}
}

// LeaveRoom 连接退出会话房间
func (m *Manager) LeaveRoom(c *Client, roomID uint) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.removeFromRoom(c, roomID)
}

func (m *Manager) removeFromRoom(c *Client, roomID uint) {
	if members, ok := m.rooms[roomID]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(m.rooms, roomID)
		}
	}
	if rooms, ok := m.joined[c]; ok {
		delete(rooms, roomID)
	}
}

// InRoom 连接是否在房间内
func (m *Manager) InRoom(c *Client, roomID uint) bool {
	m.lock.RLock()
	defer m.lock.RUnlock()
	_, ok := m.rooms[roomID][c]
	return ok
}

// BroadcastToUser 推送给用户的全部连接，返回投递成功的连接数
func (m *Manager) BroadcastToUser(userID uint, msg []byte) int {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return deliver(m.clients[userID], msg)
}

// BroadcastToRoom 推送给房间内的全部连接，返回投递成功的连接数
func (m *Manager) BroadcastToRoom(roomID uint, msg []byte) int {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return deliver(m.rooms[roomID], msg)
}

// 持有读锁调用；发送缓冲区满时丢弃，不阻塞其他连接
func deliver(targets map[*Client]struct{}, msg []byte) int {
	delivered := 0
	for c := range targets {
		select {
		case c.Send <- msg:
			delivered++
		default:
			logger.Warn("WebSocket发送缓冲区已满，丢弃消息",
				zap.Uint("user_id", c.UserID),
				zap.Uint64("client_id", c.ID),
			)
		}
	}
	return delivered
}

// IsOnline 判断用户在本进程是否有连接
func (m *Manager) IsOnline(userID uint) bool {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return len(m.clients[userID]) > 0
}

// ConnectionCount 用户在本进程的连接数
func (m *Manager) ConnectionCount(userID uint) int {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return len(m.clients[userID])
}

// OnlineUsers 当前在线用户数
func (m *Manager) OnlineUsers() int {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return len(m.clients)
}
