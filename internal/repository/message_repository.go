package repository

import (
	"context"

	"marketplace-im/internal/model"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// MessageRepository 消息数据仓储
type MessageRepository struct {
	orm *gorm.DB
}

// NewMessageRepository 创建MessageRepository实例
func NewMessageRepository(orm *gorm.DB) *MessageRepository {
	return &MessageRepository{orm: orm}
}

func (r *MessageRepository) WithTx(tx *gorm.DB) *MessageRepository {
	return &MessageRepository{orm: tx}
}

// Create 创建消息
func (r *MessageRepository) Create(ctx context.Context, msg *model.Message) error {
	if err := r.orm.WithContext(ctx).Create(msg).Error; err != nil {
		return errors.Wrap(err, "messageRepo.Create")
	}
	return nil
}

// ListByConversation 分页获取会话消息，按时间正序返回
// beforeID 大于0时只返回该ID之前的消息
func (r *MessageRepository) ListByConversation(ctx context.Context, conversationID uint, limit int, beforeID uint) ([]*model.Message, error) {
	var messages []*model.Message

	query := r.orm.WithContext(ctx).Where("conversation_id = ?", conversationID)
	if beforeID > 0 {
		query = query.Where("id < ?", beforeID)
	}
	// 先倒序取最新的一页，再翻转为正序
	err := query.Order("id DESC").Limit(limit).Find(&messages).Error
	if err != nil {
		return nil, errors.Wrap(err, "messageRepo.ListByConversation")
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
