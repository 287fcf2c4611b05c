package repository

import (
	"context"

	"marketplace-im/internal/model"
	"marketplace-im/pkg/apperror"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// ServiceRepository 服务目录
type ServiceRepository struct {
	orm *gorm.DB
}

func NewServiceRepository(orm *gorm.DB) *ServiceRepository {
	return &ServiceRepository{orm: orm}
}

func (r *ServiceRepository) Create(ctx context.Context, svc *model.Service) error {
	if err := r.orm.WithContext(ctx).Create(svc).Error; err != nil {
		return errors.Wrap(err, "serviceRepo.Create")
	}
	return nil
}

// GetService 根据ID获取服务，不存在时返回 ErrServiceNotFound
func (r *ServiceRepository) GetService(ctx context.Context, id uint) (*model.Service, error) {
	var svc model.Service
	if err := r.orm.WithContext(ctx).First(&svc, id).Error; err != nil {
		if isNotFound(err) {
			return nil, apperror.ErrServiceNotFound
		}
		return nil, errors.Wrap(err, "serviceRepo.GetService")
	}
	return &svc, nil
}
