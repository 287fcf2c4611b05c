package service

import (
	"context"
	"encoding/json"
	"time"

	"marketplace-im/internal/model"
	"marketplace-im/internal/repository"
	"marketplace-im/pkg/apperror"
	"marketplace-im/pkg/db"
	"marketplace-im/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultMessagePage = 50
	maxMessagePage     = 100
	// 并发创建会话撞到唯一约束后重新读取的次数
	createConversationRetries = 3
)

// MessageInput 写入消息的参数
type MessageInput struct {
	ConversationID uint
	SenderID       uint
	Content        string
	MessageType    model.MessageType
	Metadata       map[string]interface{}
}

// ConversationView 会话列表项，附带对方的公开资料
type ConversationView struct {
	*model.Conversation
	OtherUser model.UserSummary `json:"other_user"`
}

// ConversationService 会话服务
// 负责成员校验、拉黑校验，以及所有需要原子性的多表写入
type ConversationService struct {
	orm       *gorm.DB
	users     ProfileProvider
	convRepo  *repository.ConversationRepository
	msgRepo   *repository.MessageRepository
	blockRepo *repository.BlockRepository
	connRepo  *repository.ConnectionRepository
}

// NewConversationService 创建ConversationService实例
func NewConversationService(orm *gorm.DB, users ProfileProvider) *ConversationService {
	return &ConversationService{
		orm:       orm,
		users:     users,
		convRepo:  repository.NewConversationRepository(orm),
		msgRepo:   repository.NewMessageRepository(orm),
		blockRepo: repository.NewBlockRepository(orm),
		connRepo:  repository.NewConnectionRepository(orm),
	}
}

// IsMember 用户是否为会话参与者，会话不存在时返回 false
func (s *ConversationService) IsMember(ctx context.Context, conversationID, userID uint) (bool, error) {
	conv, err := s.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		if apperror.IsCode(err, apperror.CodeNotFound) {
			return false, nil
		}
		return false, persistErr(err)
	}
	return conv.HasMember(userID), nil
}

// GetOtherParticipant 返回会话中的另一方，会话不存在或用户不是成员时返回 0
func (s *ConversationService) GetOtherParticipant(ctx context.Context, conversationID, userID uint) (uint, error) {
	conv, err := s.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		if apperror.IsCode(err, apperror.CodeNotFound) {
			return 0, nil
		}
		return 0, persistErr(err)
	}
	return conv.Other(userID), nil
}

// IsBlockedBetween 任一方向存在拉黑
func (s *ConversationService) IsBlockedBetween(ctx context.Context, a, b uint) (bool, error) {
	blocked, err := s.blockRepo.ExistsBetween(ctx, a, b)
	return blocked, persistErr(err)
}

// CreateOrGetConversation 幂等地获取或创建用户对的会话
// 并发插入撞到唯一约束时重新读取已存在的会话
func (s *ConversationService) CreateOrGetConversation(ctx context.Context, a, b uint) (*model.Conversation, error) {
	if err := validatePair(a, b); err != nil {
		return nil, err
	}
	if a == b {
		return nil, apperror.ErrSelfConnection
	}

	for attempt := 0; attempt < createConversationRetries; attempt++ {
		conv, err := s.convRepo.FindByPair(ctx, a, b)
		if err != nil {
			return nil, persistErr(err)
		}
		if conv != nil {
			return conv, nil
		}

		conv = &model.Conversation{Participant1: a, Participant2: b}
		err = s.convRepo.Create(ctx, conv)
		if err == nil {
			return conv, nil
		}
		if !repository.IsDuplicate(err) {
			return nil, persistErr(err)
		}
		logger.Debug("会话并发创建冲突，重新读取",
			zap.Uint("user_a", a),
			zap.Uint("user_b", b),
			zap.Int("attempt", attempt+1),
		)
	}
	return nil, apperror.Persistence(apperror.New(apperror.CodeUnknown, "conversation create retries exhausted"))
}

// InsertMessageTx 写入消息，并在同一事务内更新会话摘要
// tx 为 nil 时自行开启、提交事务；传入 tx 时由调用方负责提交或回滚
func (s *ConversationService) InsertMessageTx(ctx context.Context, in MessageInput, tx *gorm.DB) (*model.Message, error) {
	content, err := validateContent(in.Content)
	if err != nil {
		return nil, err
	}
	if in.MessageType == "" {
		in.MessageType = model.MessageText
	}
	if !in.MessageType.Valid() {
		return nil, apperror.ErrInvalidMessage
	}

	var metadata datatypes.JSON
	if len(in.Metadata) > 0 {
		raw, err := json.Marshal(in.Metadata)
		if err != nil {
			return nil, apperror.Validation("invalid message metadata")
		}
		metadata = datatypes.JSON(raw)
	}

	msg := &model.Message{
		ConversationID: in.ConversationID,
		SenderID:       in.SenderID,
		Content:        content,
		MessageType:    in.MessageType,
		Metadata:       metadata,
	}

	insert := func(tx *gorm.DB) error {
		conv, err := s.convRepo.WithTx(tx).GetByID(ctx, in.ConversationID)
		if err != nil {
			return err
		}
		if !conv.HasMember(in.SenderID) {
			return apperror.ErrConversationNotFound
		}
		blocked, err := s.blockRepo.WithTx(tx).ExistsBetween(ctx, conv.Participant1, conv.Participant2)
		if err != nil {
			return err
		}
		if blocked {
			return apperror.ErrBlocked
		}

		msg.CreatedAt = time.Now()
		if err := s.msgRepo.WithTx(tx).Create(ctx, msg); err != nil {
			return err
		}
		return s.convRepo.WithTx(tx).UpdateSummary(ctx, conv.ID, msg.Content, msg.CreatedAt)
	}

	if tx != nil {
		if err := insert(tx); err != nil {
			return nil, persistErr(err)
		}
		return msg, nil
	}

	if err := db.WithTransaction(ctx, s.orm, insert); err != nil {
		return nil, persistErr(err)
	}
	return msg, nil
}

// BlockUser 拉黑的唯一事务入口：
// 写入拉黑记录（已存在则跳过），刷新会话时间，把 pending/accepted 的连接置为 rejected
func (s *ConversationService) BlockUser(ctx context.Context, blockerID, blockedID uint, reason string) error {
	if err := validatePair(blockerID, blockedID); err != nil {
		return err
	}
	if blockerID == blockedID {
		return apperror.ErrSelfBlock
	}

	var rejected int64
	err := db.WithTransaction(ctx, s.orm, func(tx *gorm.DB) error {
		if err := s.blockRepo.WithTx(tx).Upsert(ctx, blockerID, blockedID, reason); err != nil {
			return err
		}
		if err := s.convRepo.WithTx(tx).TouchByPair(ctx, blockerID, blockedID); err != nil {
			return err
		}
		n, err := s.connRepo.WithTx(tx).RejectActiveBetween(ctx, blockerID, blockedID)
		rejected = n
		return err
	})
	if err != nil {
		return persistErr(err)
	}

	logger.Info("用户已拉黑",
		zap.Uint("blocker_id", blockerID),
		zap.Uint("blocked_id", blockedID),
		zap.Int64("rejected_connections", rejected),
	)
	return nil
}

// GetUserConversations 获取用户的会话列表，最近活跃的在前
func (s *ConversationService) GetUserConversations(ctx context.Context, userID uint) ([]*ConversationView, error) {
	convs, err := s.convRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, persistErr(err)
	}

	ids := make([]uint, 0, len(convs))
	for _, c := range convs {
		ids = append(ids, c.Other(userID))
	}
	users, err := s.users.GetUsers(ctx, ids)
	if err != nil {
		return nil, persistErr(err)
	}

	views := make([]*ConversationView, 0, len(convs))
	for _, c := range convs {
		views = append(views, &ConversationView{
			Conversation: c,
			OtherUser:    summaryOf(users, c.Other(userID)),
		})
	}
	return views, nil
}

// GetMessages 分页获取会话消息（按时间正序），仅成员可读
// 拉黑后历史消息仍然可读
func (s *ConversationService) GetMessages(ctx context.Context, conversationID, userID uint, limit int, beforeID uint) ([]*model.Message, error) {
	member, err := s.IsMember(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, apperror.ErrConversationNotFound
	}

	if limit <= 0 {
		limit = defaultMessagePage
	}
	if limit > maxMessagePage {
		limit = maxMessagePage
	}

	messages, err := s.msgRepo.ListByConversation(ctx, conversationID, limit, beforeID)
	return messages, persistErr(err)
}

// SendMessage 用户发送消息，system 类型只能由服务端写入
func (s *ConversationService) SendMessage(ctx context.Context, conversationID, senderID uint, content string, typ model.MessageType) (*model.Message, error) {
	if conversationID == 0 || senderID == 0 {
		return nil, apperror.ErrInvalidIdentifier
	}
	if typ == "" {
		typ = model.MessageText
	}
	if !typ.Valid() || typ == model.MessageSystem {
		return nil, apperror.ErrInvalidMessage
	}

	return s.InsertMessageTx(ctx, MessageInput{
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		MessageType:    typ,
	}, nil)
}
