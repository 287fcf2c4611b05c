package repository

import (
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// IsDuplicate 是否为唯一约束冲突（依赖 gorm TranslateError）
func IsDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
