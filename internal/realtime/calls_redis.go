package realtime

import (
	"context"
	"errors"
	"time"

	"marketplace-im/pkg/redis"

	"github.com/google/uuid"
)

// 接通后的会话最长保留时间，防止异常断开的通话一直占用 key
const talkTTL = 4 * time.Hour

// RedisCallStore 多进程共享的通话会话表
type RedisCallStore struct {
	timeout time.Duration
}

// NewRedisCallStore 创建 Redis 通话会话表
func NewRedisCallStore(timeout time.Duration) *RedisCallStore {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &RedisCallStore{timeout: timeout}
}

// Create 登记新的振铃中通话，id 为空时生成
func (s *RedisCallStore) Create(id string, callerID, calleeID uint, callType string) (*CallSession, error) {
	if id == "" {
		id = uuid.NewString()
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := redis.CreateCall(ctx, id, callerID, calleeID, callType, s.timeout); err != nil {
		return nil, mapCallErr(err)
	}
	return &CallSession{
		ID:        id,
		CallerID:  callerID,
		CalleeID:  calleeID,
		CallType:  callType,
		State:     CallRinging,
		ExpiresAt: time.Now().Add(s.timeout),
	}, nil
}

// Accept 被叫方接听振铃中的通话
func (s *RedisCallStore) Accept(id string, calleeID uint) (CallSession, error) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	return sessionOf(redis.AcceptCall(ctx, id, calleeID, talkTTL))
}

// Reject 被叫拒接振铃中的通话
func (s *RedisCallStore) Reject(id string, calleeID uint) (CallSession, error) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	return sessionOf(redis.RejectCall(ctx, id, calleeID))
}

// Remove 结束通话，只有通话双方可以操作
func (s *RedisCallStore) Remove(id string, userID uint) (CallSession, error) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	return sessionOf(redis.EndCall(ctx, id, userID))
}

func sessionOf(rec *redis.CallRecord, err error) (CallSession, error) {
	if err != nil {
		return CallSession{}, mapCallErr(err)
	}
	return CallSession{
		ID:       rec.ID,
		CallerID: rec.CallerID,
		CalleeID: rec.CalleeID,
		CallType: rec.CallType,
		State:    CallState(rec.State),
	}, nil
}

func mapCallErr(err error) error {
	switch {
	case errors.Is(err, redis.ErrCallExists):
		return errCallExists
	case errors.Is(err, redis.ErrCallNotFound):
		return errCallNotFound
	}
	return err
}
