package model

import (
	"time"

	"gorm.io/gorm"
)

// ConnectionStatus 连接状态
// pending 为初始状态，accepted / rejected 为终态
type ConnectionStatus string

const (
	ConnectionPending  ConnectionStatus = "pending"
	ConnectionAccepted ConnectionStatus = "accepted"
	ConnectionRejected ConnectionStatus = "rejected"
)

// 状态迁移表，终态没有出边
var connectionTransitions = map[ConnectionStatus][]ConnectionStatus{
	ConnectionPending: {ConnectionAccepted, ConnectionRejected},
}

// Valid 是否为合法状态
func (s ConnectionStatus) Valid() bool {
	switch s {
	case ConnectionPending, ConnectionAccepted, ConnectionRejected:
		return true
	}
	return false
}

// Terminal 是否为终态
func (s ConnectionStatus) Terminal() bool {
	return s == ConnectionAccepted || s == ConnectionRejected
}

// CanTransition 判断 from -> to 是否允许
func (s ConnectionStatus) CanTransition(to ConnectionStatus) bool {
	for _, next := range connectionTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// ConnectionType 连接类型
type ConnectionType string

const (
	ConnectionContactRequest ConnectionType = "contact_request"
	ConnectionServiceInquiry ConnectionType = "service_inquiry"
	ConnectionVideoCall      ConnectionType = "video_call"
)

// Valid 是否为合法类型
func (t ConnectionType) Valid() bool {
	switch t {
	case ConnectionContactRequest, ConnectionServiceInquiry, ConnectionVideoCall:
		return true
	}
	return false
}

// Connection 两个用户之间的联系请求
// 每个无序用户对最多一行，由 PairKey 唯一索引保证

type Connection struct {
	ID         uint             `gorm:"primaryKey" json:"id"`
	FromUserID uint             `gorm:"not null;index;comment:发起者ID" json:"from_user_id"`
	ToUserID   uint             `gorm:"not null;index;comment:接收者ID" json:"to_user_id"`
	PairKey    string           `gorm:"type:varchar(64);not null;uniqueIndex;comment:无序用户对" json:"-"`
	Type       ConnectionType   `gorm:"type:varchar(32);not null;default:'contact_request';comment:连接类型" json:"type"`
	Message    string           `gorm:"type:text;comment:附言" json:"message"`
	Status     ConnectionStatus `gorm:"type:varchar(32);not null;default:'pending';index;comment:连接状态" json:"status"`
	CreatedAt  time.Time        `gorm:"comment:创建时间" json:"created_at"`
	UpdatedAt  time.Time        `gorm:"comment:更新时间" json:"updated_at"`
}

func (Connection) TableName() string { return "connection" }

// BeforeCreate 写入前补齐 PairKey
func (c *Connection) BeforeCreate(tx *gorm.DB) error {
	c.PairKey = PairKey(c.FromUserID, c.ToUserID)
	return nil
}

// Counterpart 返回连接中另一方的ID
func (c *Connection) Counterpart(userID uint) uint {
	if c.FromUserID == userID {
		return c.ToUserID
	}
	return c.FromUserID
}
