package model

import (
	"time"

	"gorm.io/gorm"
)

// User 用户资料（只读视图）
// 用户的注册、认证、等级评定由外部身份服务维护，这里只引用 ID 并读取公开资料
// VerificationTier: unverified/basic/verified/premium
// ReputationScore 由外部模拟评分写入

type User struct {
	ID               uint           `gorm:"primaryKey"`
	Username         string         `gorm:"type:varchar(64);not null;uniqueIndex;comment:用户名"`
	Avatar           string         `gorm:"type:varchar(255);comment:头像URL"`
	VerificationTier string         `gorm:"type:varchar(32);default:'unverified';comment:认证等级"`
	ReputationScore  float64        `gorm:"default:0;comment:信誉分"`
	CreatedAt        time.Time      `gorm:"comment:创建时间"`
	UpdatedAt        time.Time      `gorm:"comment:更新时间"`
	DeletedAt        gorm.DeletedAt `gorm:"index"`
}

// TableName 指定表名（因全局配置使用单数表名，这里与结构体名一致为 user）
func (User) TableName() string { return "user" }

// UserSummary 对方用户的公开摘要，冗余到连接/会话列表中
type UserSummary struct {
	ID               uint   `json:"id"`
	Username         string `json:"username"`
	VerificationTier string `json:"verification_tier"`
	Avatar           string `json:"avatar"`
}

// Summary 转换为公开摘要
func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:               u.ID,
		Username:         u.Username,
		VerificationTier: u.VerificationTier,
		Avatar:           u.Avatar,
	}
}
