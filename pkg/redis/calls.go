package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// CallKeyPrefix 通话会话 hash 的 key 前缀
const CallKeyPrefix = "mkt:call:"

var (
	// ErrCallExists 通话ID仍在使用中
	ErrCallExists = errors.New("通话ID已存在")
	// ErrCallNotFound 通话不存在、已过期或状态不允许该操作
	ErrCallNotFound = errors.New("通话不存在或已过期")
)

// CallRecord 跨进程共享的通话会话
type CallRecord struct {
	ID       string
	CallerID uint
	CalleeID uint
	CallType string
	State    string
}

func callKey(id string) string {
	return CallKeyPrefix + id
}

// 字段顺序：caller, callee, type, state
var (
	createCallScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('HSET', KEYS[1], 'caller', ARGV[1], 'callee', ARGV[2], 'type', ARGV[3], 'state', 'ringing')
redis.call('PEXPIRE', KEYS[1], ARGV[4])
return 1
`)

	acceptCallScript = redis.NewScript(`
local f = redis.call('HMGET', KEYS[1], 'caller', 'callee', 'type', 'state')
if not f[1] or f[2] ~= ARGV[1] or f[4] ~= 'ringing' then
	return false
end
redis.call('HSET', KEYS[1], 'state', 'accepted')
redis.call('PEXPIRE', KEYS[1], ARGV[2])
f[4] = 'accepted'
return f
`)

	rejectCallScript = redis.NewScript(`
local f = redis.call('HMGET', KEYS[1], 'caller', 'callee', 'type', 'state')
if not f[1] or f[2] ~= ARGV[1] or f[4] ~= 'ringing' then
	return false
end
redis.call('DEL', KEYS[1])
return f
`)

	endCallScript = redis.NewScript(`
local f = redis.call('HMGET', KEYS[1], 'caller', 'callee', 'type', 'state')
if not f[1] or (f[1] ~= ARGV[1] and f[2] ~= ARGV[1]) then
	return false
end
redis.call('DEL', KEYS[1])
return f
`)
)

// CreateCall 登记振铃中的通话，ringTTL 后自动过期
func CreateCall(ctx context.Context, id string, callerID, calleeID uint, callType string, ringTTL time.Duration) error {
	if client == nil {
		return ErrNotInitialized
	}

	created, err := createCallScript.Run(ctx, client, []string{callKey(id)},
		callerID, calleeID, callType, ringTTL.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("创建通话失败: %w", err)
	}
	if created == 0 {
		return ErrCallExists
	}
	return nil
}

// AcceptCall 被叫接听，接通后的会话按 talkTTL 保留
func AcceptCall(ctx context.Context, id string, calleeID uint, talkTTL time.Duration) (*CallRecord, error) {
	return runCallScript(ctx, acceptCallScript, id, calleeID, talkTTL.Milliseconds())
}

// RejectCall 被叫拒接振铃中的通话
func RejectCall(ctx context.Context, id string, calleeID uint) (*CallRecord, error) {
	return runCallScript(ctx, rejectCallScript, id, calleeID)
}

// EndCall 通话任一方结束通话
func EndCall(ctx context.Context, id string, userID uint) (*CallRecord, error) {
	return runCallScript(ctx, endCallScript, id, userID)
}

func runCallScript(ctx context.Context, script *redis.Script, id string, args ...interface{}) (*CallRecord, error) {
	if client == nil {
		return nil, ErrNotInitialized
	}

	fields, err := script.Run(ctx, client, []string{callKey(id)}, args...).StringSlice()
	if err != nil {
		if isNil(err) {
			return nil, ErrCallNotFound
		}
		return nil, fmt.Errorf("更新通话失败: %w", err)
	}
	if len(fields) != 4 {
		return nil, fmt.Errorf("通话数据不完整: %v", fields)
	}

	callerID, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("解析主叫ID失败: %w", err)
	}
	calleeID, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("解析被叫ID失败: %w", err)
	}
	return &CallRecord{
		ID:       id,
		CallerID: uint(callerID),
		CalleeID: uint(calleeID),
		CallType: fields[2],
		State:    fields[3],
	}, nil
}
