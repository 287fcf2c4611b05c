package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// 未读通知计数相关常量
const (
	UnreadCountKeyPrefix = "mkt:notify:unread:" // 未读通知计数key前缀
	UnreadCountTTL       = 24 * time.Hour
)

func unreadKey(userID uint) string {
	return fmt.Sprintf("%s%d", UnreadCountKeyPrefix, userID)
}

func isNil(err error) bool {
	return errors.Is(err, redis.Nil)
}

// 计数存在时才递增并续期，原子执行
var incrIfExists = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return -1
end
local n = redis.call('INCR', KEYS[1])
redis.call('PEXPIRE', KEYS[1], ARGV[1])
return n
`)

// IncrementUnreadCount 增加用户未读通知计数
// 计数不存在时不创建，交给下一次读取时从数据库重建
func IncrementUnreadCount(ctx context.Context, userID uint) error {
	if client == nil {
		return ErrNotInitialized
	}

	err := incrIfExists.Run(ctx, client, []string{unreadKey(userID)}, UnreadCountTTL.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("增加未读通知计数失败: %w", err)
	}
	return nil
}

// GetUnreadCount 获取用户未读通知计数，found 为 false 表示需要从数据库获取
func GetUnreadCount(ctx context.Context, userID uint) (count int64, found bool, err error) {
	if client == nil {
		return 0, false, ErrNotInitialized
	}

	count, err = client.Get(ctx, unreadKey(userID)).Int64()
	if err != nil {
		if isNil(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("获取未读通知计数失败: %w", err)
	}
	return count, true, nil
}

// SetUnreadCount 设置用户未读通知计数（用于从数据库重建）
func SetUnreadCount(ctx context.Context, userID uint, count int64) error {
	if client == nil {
		return ErrNotInitialized
	}

	if err := client.Set(ctx, unreadKey(userID), count, UnreadCountTTL).Err(); err != nil {
		return fmt.Errorf("设置未读通知计数失败: %w", err)
	}
	return nil
}

// ResetUnreadCount 重置用户未读通知计数为0
func ResetUnreadCount(ctx context.Context, userID uint) error {
	if client == nil {
		return ErrNotInitialized
	}

	if err := client.Set(ctx, unreadKey(userID), 0, UnreadCountTTL).Err(); err != nil {
		return fmt.Errorf("重置未读通知计数失败: %w", err)
	}
	return nil
}
