package repository

import (
	"context"

	"marketplace-im/internal/model"
	"marketplace-im/pkg/apperror"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// UserRepository 读取外部维护的用户资料
type UserRepository struct {
	orm *gorm.DB
}

func NewUserRepository(orm *gorm.DB) *UserRepository {
	return &UserRepository{orm: orm}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	if err := r.orm.WithContext(ctx).Create(user).Error; err != nil {
		return errors.Wrap(err, "userRepo.Create")
	}
	return nil
}

// GetUser 根据ID获取用户，不存在时返回 ErrUserNotFound
func (r *UserRepository) GetUser(ctx context.Context, id uint) (*model.User, error) {
	var u model.User
	if err := r.orm.WithContext(ctx).First(&u, id).Error; err != nil {
		if isNotFound(err) {
			return nil, apperror.ErrUserNotFound
		}
		return nil, errors.Wrap(err, "userRepo.GetUser")
	}
	return &u, nil
}

// GetUsers 批量获取用户，按ID索引
func (r *UserRepository) GetUsers(ctx context.Context, ids []uint) (map[uint]*model.User, error) {
	result := make(map[uint]*model.User, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var users []*model.User
	if err := r.orm.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, errors.Wrap(err, "userRepo.GetUsers")
	}
	for _, u := range users {
		result[u.ID] = u
	}
	return result, nil
}
