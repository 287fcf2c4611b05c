package repository

import (
	"context"

	"marketplace-im/internal/model"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BlockRepository 拉黑记录数据仓储
type BlockRepository struct {
	orm *gorm.DB
}

func NewBlockRepository(orm *gorm.DB) *BlockRepository {
	return &BlockRepository{orm: orm}
}

func (r *BlockRepository) WithTx(tx *gorm.DB) *BlockRepository {
	return &BlockRepository{orm: tx}
}

// Upsert 写入拉黑记录，已存在时不做任何修改
func (r *BlockRepository) Upsert(ctx context.Context, blockerID, blockedID uint, reason string) error {
	err := r.orm.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "blocker_id"}, {Name: "blocked_id"}},
			DoNothing: true,
		}).
		Create(&model.BlockedUser{BlockerID: blockerID, BlockedID: blockedID, Reason: reason}).Error
	return errors.Wrap(err, "blockRepo.Upsert")
}

// ExistsBetween 任一方向存在拉黑记录
func (r *BlockRepository) ExistsBetween(ctx context.Context, a, b uint) (bool, error) {
	var count int64
	err := r.orm.WithContext(ctx).Model(&model.BlockedUser{}).
		Where("(blocker_id = ? AND blocked_id = ?) OR (blocker_id = ? AND blocked_id = ?)", a, b, b, a).
		Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "blockRepo.ExistsBetween")
	}
	return count > 0, nil
}

// Delete 删除拉黑记录，不存在时不报错
func (r *BlockRepository) Delete(ctx context.Context, blockerID, blockedID uint) error {
	err := r.orm.WithContext(ctx).
		Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).
		Delete(&model.BlockedUser{}).Error
	return errors.Wrap(err, "blockRepo.Delete")
}

// ListByBlocker 获取用户拉黑的全部记录
func (r *BlockRepository) ListByBlocker(ctx context.Context, blockerID uint) ([]*model.BlockedUser, error) {
	var rows []*model.BlockedUser
	err := r.orm.WithContext(ctx).
		Where("blocker_id = ?", blockerID).
		Order("created_at DESC, id DESC").
		Find(&rows).Error
	return rows, errors.Wrap(err, "blockRepo.ListByBlocker")
}
