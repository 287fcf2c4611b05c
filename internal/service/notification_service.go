package service

import (
	"context"
	"encoding/json"
	"time"

	"marketplace-im/config"
	"marketplace-im/internal/model"
	"marketplace-im/internal/repository"
	"marketplace-im/pkg/apperror"
	"marketplace-im/pkg/logger"
	"marketplace-im/pkg/redis"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Pusher 实时推送给用户的全部在线连接
type Pusher interface {
	PushToUser(userID uint, event string, data interface{})
}

// NotificationService 站内通知
// 通知写在触发它的事务之外：失败按配置重试，最终失败只记日志
type NotificationService struct {
	repo    *repository.NotificationRepository
	pusher  Pusher
	retries int
	backoff time.Duration
}

// NewNotificationService 创建NotificationService实例，pusher 可为 nil
func NewNotificationService(orm *gorm.DB, pusher Pusher, cfg config.NotificationConfig) *NotificationService {
	retries := cfg.RetryAttempts
	if retries <= 0 {
		retries = 1
	}
	return &NotificationService{
		repo:    repository.NewNotificationRepository(orm),
		pusher:  pusher,
		retries: retries,
		backoff: cfg.RetryBackoff,
	}
}

// SetPusher 设置实时推送器（网关在通知服务之后创建时使用）
func (s *NotificationService) SetPusher(p Pusher) {
	s.pusher = p
}

// Notify 写入一条通知，成功后递增未读计数并实时推送
func (s *NotificationService) Notify(ctx context.Context, userID uint, typ, title, message string, data map[string]interface{}) {
	n := &model.Notification{
		UserID:  userID,
		Type:    typ,
		Title:   title,
		Message: message,
	}
	if len(data) > 0 {
		raw, err := json.Marshal(data)
		if err != nil {
			logger.Warn("通知数据序列化失败", zap.Uint("user_id", userID), zap.String("type", typ), zap.Error(err))
		} else {
			n.Data = datatypes.JSON(raw)
		}
	}

	var err error
	for attempt := 1; attempt <= s.retries; attempt++ {
		// 触发方的请求可能已结束，通知写入不跟随它取消
		err = s.repo.Create(context.WithoutCancel(ctx), n)
		if err == nil {
			break
		}
		logger.Warn("写入通知失败",
			zap.Uint("user_id", userID),
			zap.String("type", typ),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if attempt < s.retries && s.backoff > 0 {
			time.Sleep(time.Duration(attempt) * s.backoff)
		}
	}
	if err != nil {
		logger.Error("通知最终写入失败，已放弃",
			zap.Uint("user_id", userID),
			zap.String("type", typ),
			zap.Error(err),
		)
		return
	}

	if err := redis.IncrementUnreadCount(ctx, userID); err != nil && redis.Enabled() {
		logger.Warn("增加未读通知计数失败", zap.Uint("user_id", userID), zap.Error(err))
	}
	if s.pusher != nil {
		s.pusher.PushToUser(userID, "notification", n)
	}
}

// List 分页获取通知
func (s *NotificationService) List(ctx context.Context, userID uint, limit, offset int) ([]*model.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.repo.List(ctx, userID, limit, offset)
	return rows, persistErr(err)
}

// MarkAsRead 标记单条通知为已读，不属于该用户时返回 NotFound
func (s *NotificationService) MarkAsRead(ctx context.Context, id, userID uint) error {
	ok, err := s.repo.MarkRead(ctx, id, userID)
	if err != nil {
		return persistErr(err)
	}
	if !ok {
		return apperror.ErrNotificationNotFound
	}
	s.resyncUnread(ctx, userID)
	return nil
}

// MarkAllAsRead 标记全部通知为已读
func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID uint) (int64, error) {
	n, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, persistErr(err)
	}
	if err := redis.ResetUnreadCount(ctx, userID); err != nil && redis.Enabled() {
		logger.Warn("重置未读通知计数失败", zap.Uint("user_id", userID), zap.Error(err))
	}
	return n, nil
}

// UnreadCount 未读通知数，优先读 Redis，缺失时从数据库统计并回写
func (s *NotificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	if count, found, err := redis.GetUnreadCount(ctx, userID); err == nil && found {
		return count, nil
	}
	return s.countFromDB(ctx, userID)
}

func (s *NotificationService) countFromDB(ctx context.Context, userID uint) (int64, error) {
	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, persistErr(err)
	}
	if err := redis.SetUnreadCount(ctx, userID, count); err != nil && redis.Enabled() {
		logger.Warn("回写未读通知计数失败", zap.Uint("user_id", userID), zap.Error(err))
	}
	return count, nil
}

func (s *NotificationService) resyncUnread(ctx context.Context, userID uint) {
	if !redis.Enabled() {
		return
	}
	if _, err := s.countFromDB(ctx, userID); err != nil {
		logger.Warn("同步未读通知计数失败", zap.Uint("user_id", userID), zap.Error(err))
	}
}
