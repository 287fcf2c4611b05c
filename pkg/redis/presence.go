package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// PresenceData 在线状态数据
type PresenceData struct {
	UserID   uint      `json:"user_id"`
	Status   string    `json:"status"` // online/offline
	LastSeen time.Time `json:"last_seen"`
}

// 在线状态相关常量
const (
	PresenceKeyPrefix = "mkt:presence:user:" // 用户在线状态key前缀
	OnlineUsersKey    = "mkt:online:users"   // 在线用户集合key
	PresenceTTL       = 2 * time.Minute      // 在线状态TTL（2倍心跳周期）
)

func presenceKey(userID uint) string {
	return fmt.Sprintf("%s%d", PresenceKeyPrefix, userID)
}

// SetUserOnline 标记用户上线（首个连接建立时调用）
func SetUserOnline(ctx context.Context, userID uint) error {
	if client == nil {
		return ErrNotInitialized
	}

	data, err := json.Marshal(PresenceData{
		UserID:   userID,
		Status:   "online",
		LastSeen: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("序列化在线状态失败: %w", err)
	}

	pipe := client.TxPipeline()
	pipe.Set(ctx, presenceKey(userID), data, PresenceTTL)
	pipe.SAdd(ctx, OnlineUsersKey, userID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("设置用户在线状态失败: %w", err)
	}
	return nil
}

// IsUserOnline 检查用户是否在线
func IsUserOnline(ctx context.Context, userID uint) (bool, error) {
	if client == nil {
		return false, ErrNotInitialized
	}

	exists, err := client.Exists(ctx, presenceKey(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("检查用户在线状态失败: %w", err)
	}
	return exists > 0, nil
}

// RefreshUserPresence 刷新用户在线状态（心跳时延长TTL）
func RefreshUserPresence(ctx context.Context, userID uint) error {
	if client == nil {
		return ErrNotInitialized
	}

	ok, err := client.Expire(ctx, presenceKey(userID), PresenceTTL).Result()
	if err != nil {
		return fmt.Errorf("刷新用户在线状态失败: %w", err)
	}
	if !ok {
		// key 已过期，重新写入
		return SetUserOnline(ctx, userID)
	}
	return nil
}

// RemoveUserPresence 移除用户在线状态（最后一个连接断开时调用）
func RemoveUserPresence(ctx context.Context, userID uint) error {
	if client == nil {
		return ErrNotInitialized
	}

	pipe := client.TxPipeline()
	pipe.Del(ctx, presenceKey(userID))
	pipe.SRem(ctx, OnlineUsersKey, userID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("删除用户在线状态失败: %w", err)
	}
	return nil
}

// GetOnlineUsers 获取所有在线用户ID列表
func GetOnlineUsers(ctx context.Context) ([]uint, error) {
	if client == nil {
		return nil, ErrNotInitialized
	}

	members, err := client.SMembers(ctx, OnlineUsersKey).Result()
	if err != nil {
		return nil, fmt.Errorf("获取在线用户列表失败: %w", err)
	}

	var userIDs []uint
	for _, member := range members {
		var userID uint
		if _, err := fmt.Sscanf(member, "%d", &userID); err == nil {
			userIDs = append(userIDs, userID)
		}
	}
	return userIDs, nil
}

// CleanExpiredPresence 清理在线集合中已过期的用户，由网关后台定期调用
func CleanExpiredPresence(ctx context.Context) error {
	userIDs, err := GetOnlineUsers(ctx)
	if err != nil {
		return err
	}

	for _, userID := range userIDs {
		ttl, err := client.TTL(ctx, presenceKey(userID)).Result()
		if err != nil {
			continue
		}
		// -2 key不存在，-1 无过期时间
		if ttl == -2 || ttl == -1 {
			client.SRem(ctx, OnlineUsersKey, userID)
		}
	}
	return nil
}
