package repository

import (
	"context"

	"marketplace-im/internal/model"
	"marketplace-im/pkg/apperror"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// ConnectionRepository 联系请求数据仓储
type ConnectionRepository struct {
	orm *gorm.DB
}

// NewConnectionRepository 创建ConnectionRepository实例
func NewConnectionRepository(orm *gorm.DB) *ConnectionRepository {
	return &ConnectionRepository{orm: orm}
}

// WithTx 返回绑定到事务的仓储
func (r *ConnectionRepository) WithTx(tx *gorm.DB) *ConnectionRepository {
	return &ConnectionRepository{orm: tx}
}

// Create 创建连接，用户对已存在时返回 gorm.ErrDuplicatedKey
func (r *ConnectionRepository) Create(ctx context.Context, conn *model.Connection) error {
	if err := r.orm.WithContext(ctx).Create(conn).Error; err != nil {
		return errors.Wrap(err, "connectionRepo.Create")
	}
	return nil
}

// GetByID 根据ID获取连接
func (r *ConnectionRepository) GetByID(ctx context.Context, id uint) (*model.Connection, error) {
	var conn model.Connection
	if err := r.orm.WithContext(ctx).First(&conn, id).Error; err != nil {
		if isNotFound(err) {
			return nil, apperror.ErrConnectionNotFound
		}
		return nil, errors.Wrap(err, "connectionRepo.GetByID")
	}
	return &conn, nil
}

// FindByPair 查找无序用户对的连接，不存在返回 nil
func (r *ConnectionRepository) FindByPair(ctx context.Context, a, b uint) (*model.Connection, error) {
	var conns []*model.Connection
	err := r.orm.WithContext(ctx).
		Where("pair_key = ?", model.PairKey(a, b)).
		Limit(1).
		Find(&conns).Error
	if err != nil {
		return nil, errors.Wrap(err, "connectionRepo.FindByPair")
	}
	if len(conns) == 0 {
		return nil, nil
	}
	return conns[0], nil
}

// CountByPair 统计无序用户对的连接行数
func (r *ConnectionRepository) CountByPair(ctx context.Context, a, b uint) (int64, error) {
	var count int64
	err := r.orm.WithContext(ctx).Model(&model.Connection{}).
		Where("(from_user_id = ? AND to_user_id = ?) OR (from_user_id = ? AND to_user_id = ?)", a, b, b, a).
		Count(&count).Error
	return count, errors.Wrap(err, "connectionRepo.CountByPair")
}

// ListByUser 获取用户参与的全部连接，最新的在前
func (r *ConnectionRepository) ListByUser(ctx context.Context, userID uint) ([]*model.Connection, error) {
	var conns []*model.Connection
	err := r.orm.WithContext(ctx).
		Where("from_user_id = ? OR to_user_id = ?", userID, userID).
		Order("created_at DESC, id DESC").
		Find(&conns).Error
	return conns, errors.Wrap(err, "connectionRepo.ListByUser")
}

// ListPendingFor 获取发给用户的待处理请求
func (r *ConnectionRepository) ListPendingFor(ctx context.Context, userID uint) ([]*model.Connection, error) {
	var conns []*model.Connection
	err := r.orm.WithContext(ctx).
		Where("to_user_id = ? AND status = ?", userID, model.ConnectionPending).
		Order("created_at DESC, id DESC").
		Find(&conns).Error
	return conns, errors.Wrap(err, "connectionRepo.ListPendingFor")
}

// Transition 条件更新状态：仅当连接发给 toUserID 且当前状态为 from 时生效
// 返回是否有行被更新
func (r *ConnectionRepository) Transition(ctx context.Context, id, toUserID uint, from, to model.ConnectionStatus) (bool, error) {
	if !from.CanTransition(to) {
		return false, apperror.Validation("illegal connection transition " + string(from) + " -> " + string(to))
	}
	res := r.orm.WithContext(ctx).Model(&model.Connection{}).
		Where("id = ? AND to_user_id = ? AND status = ?", id, toUserID, from).
		Update("status", to)
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "connectionRepo.Transition")
	}
	return res.RowsAffected > 0, nil
}

// RejectActiveBetween 把用户对之间 pending/accepted 的连接置为 rejected
func (r *ConnectionRepository) RejectActiveBetween(ctx context.Context, a, b uint) (int64, error) {
	res := r.orm.WithContext(ctx).Model(&model.Connection{}).
		Where("pair_key = ? AND status IN ?", model.PairKey(a, b),
			[]model.ConnectionStatus{model.ConnectionPending, model.ConnectionAccepted}).
		Update("status", model.ConnectionRejected)
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "connectionRepo.RejectActiveBetween")
	}
	return res.RowsAffected, nil
}

// Delete 物理删除连接，只允许连接双方操作，返回是否删除
func (r *ConnectionRepository) Delete(ctx context.Context, id, userID uint) (bool, error) {
	res := r.orm.WithContext(ctx).
		Where("id = ? AND (from_user_id = ? OR to_user_id = ?)", id, userID, userID).
		Delete(&model.Connection{})
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "connectionRepo.Delete")
	}
	return res.RowsAffected > 0, nil
}
