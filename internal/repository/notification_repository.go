package repository

import (
	"context"

	"marketplace-im/internal/model"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// NotificationRepository 站内通知数据仓储
type NotificationRepository struct {
	orm *gorm.DB
}

func NewNotificationRepository(orm *gorm.DB) *NotificationRepository {
	return &NotificationRepository{orm: orm}
}

func (r *NotificationRepository) Create(ctx context.Context, n *model.Notification) error {
	if err := r.orm.WithContext(ctx).Create(n).Error; err != nil {
		return errors.Wrap(err, "notificationRepo.Create")
	}
	return nil
}

// List 分页获取用户通知，最新的在前
func (r *NotificationRepository) List(ctx context.Context, userID uint, limit, offset int) ([]*model.Notification, error) {
	var rows []*model.Notification
	err := r.orm.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	return rows, errors.Wrap(err, "notificationRepo.List")
}

// MarkRead 标记单条通知为已读，返回是否命中
func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID uint) (bool, error) {
	var n model.Notification
	err := r.orm.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Limit(1).
		Find(&n).Error
	if err != nil {
		return false, errors.Wrap(err, "notificationRepo.MarkRead")
	}
	if n.ID == 0 {
		return false, nil
	}
	if n.IsRead {
		return true, nil
	}
	err = r.orm.WithContext(ctx).Model(&model.Notification{}).
		Where("id = ?", id).
		Update("is_read", true).Error
	return true, errors.Wrap(err, "notificationRepo.MarkRead")
}

// MarkAllRead 标记用户全部通知为已读
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	res := r.orm.WithContext(ctx).Model(&model.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "notificationRepo.MarkAllRead")
	}
	return res.RowsAffected, nil
}

// CountUnread 统计未读通知数
func (r *NotificationRepository) CountUnread(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.orm.WithContext(ctx).Model(&model.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, errors.Wrap(err, "notificationRepo.CountUnread")
}
