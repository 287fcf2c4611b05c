package model

import (
	"time"

	"gorm.io/datatypes"
)

// 通知类型
const (
	NotifyContactRequest  = "contact_request"
	NotifyRequestAccepted = "contact_accepted"
	NotifyRequestRejected = "contact_rejected"
	NotifyServiceInquiry  = "service_inquiry"
)

// Notification 站内通知，作为状态变更的副作用写入
type Notification struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	UserID    uint           `gorm:"not null;index:idx_user_read;comment:接收者ID" json:"user_id"`
	Type      string         `gorm:"type:varchar(64);not null;comment:通知类型" json:"type"`
	Title     string         `gorm:"type:varchar(255);comment:标题" json:"title"`
	Message   string         `gorm:"type:text;comment:内容" json:"message"`
	Data      datatypes.JSON `gorm:"comment:结构化数据" json:"data,omitempty"`
	IsRead    bool           `gorm:"not null;default:false;index:idx_user_read;comment:是否已读" json:"read"`
	CreatedAt time.Time      `gorm:"comment:创建时间" json:"created_at"`
}

func (Notification) TableName() string { return "notification" }
