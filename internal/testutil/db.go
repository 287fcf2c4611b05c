// Package testutil 提供测试用的内存数据库
package testutil

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"marketplace-im/internal/model"
	"marketplace-im/pkg/db"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDB 为每个测试创建独立的内存 SQLite 数据库并完成迁移
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	orm, err := gorm.Open(sqlite.Open(dsn), db.GormConfig(false))
	require.NoError(t, err)

	sqlDB, err := orm.DB()
	require.NoError(t, err)
	// 单连接：事务内的语句必须走 tx，否则会互相等待
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(orm, model.All()...))
	return orm
}

// SeedUsers 创建用户，用户名为 user<ID>
func SeedUsers(t testing.TB, orm *gorm.DB, ids ...uint) {
	t.Helper()
	for _, id := range ids {
		u := &model.User{
			ID:               id,
			Username:         fmt.Sprintf("user%d", id),
			VerificationTier: "basic",
			Avatar:           fmt.Sprintf("https://cdn.example.com/avatar/%d.png", id),
		}
		require.NoError(t, orm.WithContext(context.Background()).Create(u).Error)
	}
}

// SeedService 创建归属于 ownerID 的服务
func SeedService(t testing.TB, orm *gorm.DB, id, ownerID uint, title string) {
	t.Helper()
	require.NoError(t, orm.Create(&model.Service{ID: id, OwnerID: ownerID, Title: title}).Error)
}
