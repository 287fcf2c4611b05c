package model

import "time"

// Service 服务目录中的服务，归属于某个用户
type Service struct {
	ID        uint      `gorm:"primaryKey"`
	Title     string    `gorm:"type:varchar(255);not null;comment:服务标题"`
	OwnerID   uint      `gorm:"not null;index;comment:服务提供者ID"`
	CreatedAt time.Time `gorm:"comment:创建时间"`
	UpdatedAt time.Time `gorm:"comment:更新时间"`
}

func (Service) TableName() string { return "service" }
