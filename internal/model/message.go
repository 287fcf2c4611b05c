package model

import (
	"time"

	"gorm.io/datatypes"
)

// MessageType 消息类型
type MessageType string

const (
	MessageText           MessageType = "text"
	MessageServiceInquiry MessageType = "service_inquiry"
	MessageSystem         MessageType = "system"
	MessageImage          MessageType = "image"
	MessageFile           MessageType = "file"
)

// MaxContentLength 单条消息最大字符数
const MaxContentLength = 5000

// Valid 是否为合法类型
func (t MessageType) Valid() bool {
	switch t {
	case MessageText, MessageServiceInquiry, MessageSystem, MessageImage, MessageFile:
		return true
	}
	return false
}

// Message 会话中的消息，只追加不修改
type Message struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	ConversationID uint           `gorm:"not null;index;comment:会话ID" json:"conversation_id"`
	SenderID       uint           `gorm:"not null;index;comment:发送者ID" json:"sender_id"`
	Content        string         `gorm:"type:text;not null;comment:消息内容" json:"content"`
	MessageType    MessageType    `gorm:"type:varchar(32);not null;default:'text';comment:消息类型" json:"message_type"`
	Metadata       datatypes.JSON `gorm:"comment:附加数据" json:"metadata,omitempty"`
	CreatedAt      time.Time      `gorm:"index;comment:创建时间" json:"created_at"`
}

func (Message) TableName() string { return "message" }
