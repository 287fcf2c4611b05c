package repository

import (
	"context"
	"time"

	"marketplace-im/internal/model"
	"marketplace-im/pkg/apperror"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// ConversationRepository 会话数据仓储
type ConversationRepository struct {
	orm *gorm.DB
}

func NewConversationRepository(orm *gorm.DB) *ConversationRepository {
	return &ConversationRepository{orm: orm}
}

func (r *ConversationRepository) WithTx(tx *gorm.DB) *ConversationRepository {
	return &ConversationRepository{orm: tx}
}

// Create 创建会话，用户对已有会话时返回 gorm.ErrDuplicatedKey
func (r *ConversationRepository) Create(ctx context.Context, conv *model.Conversation) error {
	if err := r.orm.WithContext(ctx).Create(conv).Error; err != nil {
		return errors.Wrap(err, "conversationRepo.Create")
	}
	return nil
}

// GetByID 根据ID获取会话
func (r *ConversationRepository) GetByID(ctx context.Context, id uint) (*model.Conversation, error) {
	var conv model.Conversation
	if err := r.orm.WithContext(ctx).First(&conv, id).Error; err != nil {
		if isNotFound(err) {
			return nil, apperror.ErrConversationNotFound
		}
		return nil, errors.Wrap(err, "conversationRepo.GetByID")
	}
	return &conv, nil
}

// FindByPair 查找无序用户对的会话，不存在返回 nil
func (r *ConversationRepository) FindByPair(ctx context.Context, a, b uint) (*model.Conversation, error) {
	var convs []*model.Conversation
	err := r.orm.WithContext(ctx).
		Where("pair_key = ?", model.PairKey(a, b)).
		Limit(1).
		Find(&convs).Error
	if err != nil {
		return nil, errors.Wrap(err, "conversationRepo.FindByPair")
	}
	if len(convs) == 0 {
		return nil, nil
	}
	return convs[0], nil
}

// ListByUser 获取用户的全部会话，最近活跃的在前
func (r *ConversationRepository) ListByUser(ctx context.Context, userID uint) ([]*model.Conversation, error) {
	var convs []*model.Conversation
	err := r.orm.WithContext(ctx).
		Where("participant1 = ? OR participant2 = ?", userID, userID).
		Order("updated_at DESC, id DESC").
		Find(&convs).Error
	return convs, errors.Wrap(err, "conversationRepo.ListByUser")
}

// UpdateSummary 更新最后一条消息摘要
// 调用方已在同一事务内加载过会话；MySQL 对值未变化的行返回 RowsAffected=0，不能据此判断不存在
func (r *ConversationRepository) UpdateSummary(ctx context.Context, id uint, content string, at time.Time) error {
	err := r.orm.WithContext(ctx).Model(&model.Conversation{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_message":      content,
			"last_message_time": at,
			"updated_at":        at,
		}).Error
	return errors.Wrap(err, "conversationRepo.UpdateSummary")
}

// TouchByPair 刷新用户对会话的 updated_at，会话不存在时什么也不做
func (r *ConversationRepository) TouchByPair(ctx context.Context, a, b uint) error {
	err := r.orm.WithContext(ctx).Model(&model.Conversation{}).
		Where("pair_key = ?", model.PairKey(a, b)).
		Update("updated_at", time.Now()).Error
	return errors.Wrap(err, "conversationRepo.TouchByPair")
}
