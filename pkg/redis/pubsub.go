package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Publish 向频道发布消息
func Publish(ctx context.Context, channel string, payload []byte) error {
	if client == nil {
		return ErrNotInitialized
	}
	if err := client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("发布消息失败: %w", err)
	}
	return nil
}

// Subscribe 订阅频道，调用方负责 Close
func Subscribe(ctx context.Context, channels ...string) (*redis.PubSub, error) {
	if client == nil {
		return nil, ErrNotInitialized
	}
	ps := client.Subscribe(ctx, channels...)
	// 等待订阅确认，保证返回后不会漏掉消息
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("订阅频道失败: %w", err)
	}
	return ps, nil
}
