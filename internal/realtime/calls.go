package realtime

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// CallState 通话状态
type CallState string

const (
	CallRinging  CallState = "ringing"
	CallAccepted CallState = "accepted"
)

// CallSession 内存中的通话会话，不落库
type CallSession struct {
	ID        string
	CallerID  uint
	CalleeID  uint
	CallType  string
	State     CallState
	ExpiresAt time.Time
}

var (
	errCallExists   = errors.New("call id already in use")
	errCallNotFound = errors.New("call not found or expired")
)

// CallBook 通话会话存储
// 单进程用内存实现，跨进程部署时用 Redis 实现，保证接听方和主叫不在同一进程时也能找到会话
type CallBook interface {
	Create(id string, callerID, calleeID uint, callType string) (*CallSession, error)
	Accept(id string, calleeID uint) (CallSession, error)
	Reject(id string, calleeID uint) (CallSession, error)
	Remove(id string, userID uint) (CallSession, error)
}

var (
	_ CallBook = (*CallStore)(nil)
	_ CallBook = (*RedisCallStore)(nil)
)

// CallStore 进程内通话会话表，振铃超时后过期
type CallStore struct {
	mu      sync.Mutex
	calls   map[string]*CallSession
	timeout time.Duration
	now     func() time.Time
}

// NewCallStore 创建通话会话表
func NewCallStore(timeout time.Duration) *CallStore {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &CallStore{
		calls:   make(map[string]*CallSession),
		timeout: timeout,
		now:     time.Now,
	}
}

// Create 登记新的振铃中通话，id 为空时生成
func (s *CallStore) Create(id string, callerID, calleeID uint, callType string) (*CallSession, error) {
	if id == "" {
		id = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.calls[id]; ok && !s.expired(existing) {
		return nil, errCallExists
	}
	call := &CallSession{
		ID:        id,
		CallerID:  callerID,
		CalleeID:  calleeID,
		CallType:  callType,
		State:     CallRinging,
		ExpiresAt: s.now().Add(s.timeout),
	}
	s.calls[id] = call
	return call, nil
}

// Accept 被叫方接听振铃中的通话
func (s *CallStore) Accept(id string, calleeID uint) (CallSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	call, ok := s.calls[id]
	if !ok || s.expired(call) || call.CalleeID != calleeID || call.State != CallRinging {
		return CallSession{}, errCallNotFound
	}
	call.State = CallAccepted
	// 接通后不再按振铃超时过期
	call.ExpiresAt = time.Time{}
	return *call, nil
}

// Reject 被叫拒接振铃中的通话
func (s *CallStore) Reject(id string, calleeID uint) (CallSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	call, ok := s.calls[id]
	if !ok || s.expired(call) || call.CalleeID != calleeID || call.State != CallRinging {
		return CallSession{}, errCallNotFound
	}
	delete(s.calls, id)
	return *call, nil
}

// Remove 结束通话，只有通话双方可以操作
func (s *CallStore) Remove(id string, userID uint) (CallSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	call, ok := s.calls[id]
	if !ok || s.expired(call) || (call.CallerID != userID && call.CalleeID != userID) {
		return CallSession{}, errCallNotFound
	}
	delete(s.calls, id)
	return *call, nil
}

// Sweep 清理过期的振铃，返回清理数量
func (s *CallStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, call := range s.calls {
		if s.expired(call) {
			delete(s.calls, id)
			n++
		}
	}
	return n
}

// Len 当前通话数
func (s *CallStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *CallStore) expired(call *CallSession) bool {
	return !call.ExpiresAt.IsZero() && s.now().After(call.ExpiresAt)
}
