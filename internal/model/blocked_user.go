package model

import "time"

// BlockedUser 拉黑记录，单向，每个有序对最多一行
type BlockedUser struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	BlockerID uint      `gorm:"not null;uniqueIndex:idx_blocker_blocked;comment:拉黑者ID" json:"blocker_id"`
	BlockedID uint      `gorm:"not null;uniqueIndex:idx_blocker_blocked;index;comment:被拉黑者ID" json:"blocked_id"`
	Reason    string    `gorm:"type:varchar(255);comment:原因" json:"reason,omitempty"`
	CreatedAt time.Time `gorm:"comment:创建时间" json:"created_at"`
}

func (BlockedUser) TableName() string { return "blocked_user" }
