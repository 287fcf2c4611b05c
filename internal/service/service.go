package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"marketplace-im/internal/model"
	"marketplace-im/pkg/apperror"
)

// ProfileProvider 外部身份/资料服务
type ProfileProvider interface {
	GetUser(ctx context.Context, id uint) (*model.User, error)
	GetUsers(ctx context.Context, ids []uint) (map[uint]*model.User, error)
}

// ServiceCatalog 外部服务目录
type ServiceCatalog interface {
	GetService(ctx context.Context, id uint) (*model.Service, error)
}

// Notifier 尽力而为的站内通知，失败只记录日志，不返回给调用方
type Notifier interface {
	Notify(ctx context.Context, userID uint, typ, title, message string, data map[string]interface{})
}

// MessageRelay 把已持久化的消息广播到会话房间
type MessageRelay interface {
	RelayMessage(conversationID uint, msg *model.Message)
}

// persistErr 已知业务错误原样返回，其余统一视为持久化失败
func persistErr(err error) error {
	if err == nil {
		return nil
	}
	if apperror.CodeOf(err) != apperror.CodeUnknown {
		return err
	}
	return apperror.Persistence(err)
}

// validateContent 消息内容：去掉首尾空白后非空，且不超过最大长度
func validateContent(content string) (string, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", apperror.ErrEmptyContent
	}
	if utf8.RuneCountInString(trimmed) > model.MaxContentLength {
		return "", apperror.ErrContentTooLong
	}
	return trimmed, nil
}

func validatePair(a, b uint) error {
	if a == 0 || b == 0 {
		return apperror.ErrInvalidIdentifier
	}
	return nil
}

func summaryOf(users map[uint]*model.User, id uint) model.UserSummary {
	if u, ok := users[id]; ok {
		return u.Summary()
	}
	return model.UserSummary{ID: id}
}
