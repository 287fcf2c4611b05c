package model

import (
	"time"

	"gorm.io/gorm"
)

// Conversation 两个用户之间的会话，每个无序用户对只有一个
// 拉黑不会删除会话，只刷新 UpdatedAt

type Conversation struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Participant1    uint       `gorm:"not null;index;comment:参与者1" json:"participant1"`
	Participant2    uint       `gorm:"not null;index;comment:参与者2" json:"participant2"`
	PairKey         string     `gorm:"type:varchar(64);not null;uniqueIndex;comment:无序用户对" json:"-"`
	LastMessage     string     `gorm:"type:text;comment:最后一条消息" json:"last_message"`
	LastMessageTime *time.Time `gorm:"comment:最后一条消息时间" json:"last_message_time"`
	CreatedAt       time.Time  `gorm:"comment:创建时间" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"comment:更新时间" json:"updated_at"`
}

func (Conversation) TableName() string { return "conversation" }

// BeforeCreate 写入前补齐 PairKey
func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	c.PairKey = PairKey(c.Participant1, c.Participant2)
	return nil
}

// HasMember 用户是否为会话参与者
func (c *Conversation) HasMember(userID uint) bool {
	return c.Participant1 == userID || c.Participant2 == userID
}

// Other 返回另一位参与者，非成员返回 0
func (c *Conversation) Other(userID uint) uint {
	switch userID {
	case c.Participant1:
		return c.Participant2
	case c.Participant2:
		return c.Participant1
	}
	return 0
}
