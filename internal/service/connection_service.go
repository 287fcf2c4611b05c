package service

import (
	"context"
	"fmt"
	"time"

	"marketplace-im/internal/model"
	"marketplace-im/internal/repository"
	"marketplace-im/pkg/apperror"
	"marketplace-im/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// WelcomeMessage 接受请求后以请求方身份写入会话的第一条系统消息
const WelcomeMessage = "Hi! Thanks for accepting my contact request."

// 响应联系请求的动作
const (
	ActionAccept = "accept"
	ActionReject = "reject"
)

const maxRequestMessageLength = 1000

// ConnectionStatusView 用户对的连接状态
type ConnectionStatusView struct {
	Exists       bool                   `json:"exists"`
	ConnectionID uint                   `json:"connection_id,omitempty"`
	FromUserID   uint                   `json:"from_user_id,omitempty"`
	Status       model.ConnectionStatus `json:"status,omitempty"`
	Type         model.ConnectionType   `json:"type,omitempty"`
	CreatedAt    *time.Time             `json:"created_at,omitempty"`
}

// ConnectionView 连接列表项，附带对方的公开资料
type ConnectionView struct {
	*model.Connection
	OtherUser model.UserSummary `json:"other_user"`
}

// RespondResult 响应联系请求的结果
type RespondResult struct {
	ConnectionID   uint                   `json:"connection_id"`
	Status         model.ConnectionStatus `json:"status"`
	ConversationID uint                   `json:"conversation_id,omitempty"`
}

// InquiryResult 服务咨询的结果
type InquiryResult struct {
	ConversationID uint `json:"conversation_id"`
	MessageID      uint `json:"message_id"`
}

// BlockedView 拉黑列表项
type BlockedView struct {
	*model.BlockedUser
	User model.UserSummary `json:"user"`
}

// ConnectionService 联系请求生命周期：请求、接受、拒绝、拉黑
type ConnectionService struct {
	users         ProfileProvider
	services      ServiceCatalog
	connRepo      *repository.ConnectionRepository
	blockRepo     *repository.BlockRepository
	conversations *ConversationService
	notifier      Notifier
	relay         MessageRelay
}

// NewConnectionService 创建ConnectionService实例，relay 可为 nil
func NewConnectionService(
	orm *gorm.DB,
	users ProfileProvider,
	services ServiceCatalog,
	conversations *ConversationService,
	notifier Notifier,
	relay MessageRelay,
) *ConnectionService {
	return &ConnectionService{
		users:         users,
		services:      services,
		connRepo:      repository.NewConnectionRepository(orm),
		blockRepo:     repository.NewBlockRepository(orm),
		conversations: conversations,
		notifier:      notifier,
		relay:         relay,
	}
}

// CheckConnectionStatus 查询无序用户对的连接状态，只读
func (s *ConnectionService) CheckConnectionStatus(ctx context.Context, a, b uint) (*ConnectionStatusView, error) {
	if err := validatePair(a, b); err != nil {
		return nil, err
	}

	conn, err := s.connRepo.FindByPair(ctx, a, b)
	if err != nil {
		return nil, persistErr(err)
	}
	if conn == nil {
		return &ConnectionStatusView{Exists: false}, nil
	}

	createdAt := conn.CreatedAt
	return &ConnectionStatusView{
		Exists:       true,
		ConnectionID: conn.ID,
		FromUserID:   conn.FromUserID,
		Status:       conn.Status,
		Type:         conn.Type,
		CreatedAt:    &createdAt,
	}, nil
}

// SendContactRequest 发起联系请求，返回新连接ID
func (s *ConnectionService) SendContactRequest(ctx context.Context, fromUser, toUser uint, message string, typ model.ConnectionType) (uint, error) {
	if err := validatePair(fromUser, toUser); err != nil {
		return 0, err
	}
	if fromUser == toUser {
		return 0, apperror.ErrSelfConnection
	}
	if typ == "" {
		typ = model.ConnectionContactRequest
	}
	if !typ.Valid() {
		return 0, apperror.ErrInvalidType
	}
	if len([]rune(message)) > maxRequestMessageLength {
		return 0, apperror.ErrContentTooLong
	}

	sender, err := s.users.GetUser(ctx, fromUser)
	if err != nil {
		return 0, persistErr(err)
	}
	if _, err := s.users.GetUser(ctx, toUser); err != nil {
		return 0, persistErr(err)
	}

	// 拉黑优先于已连接
	blocked, err := s.blockRepo.ExistsBetween(ctx, fromUser, toUser)
	if err != nil {
		return 0, persistErr(err)
	}
	if blocked {
		return 0, apperror.ErrBlocked
	}

	existing, err := s.connRepo.FindByPair(ctx, fromUser, toUser)
	if err != nil {
		return 0, persistErr(err)
	}
	if existing != nil {
		return 0, apperror.ErrAlreadyConnected
	}

	conn := &model.Connection{
		FromUserID: fromUser,
		ToUserID:   toUser,
		Type:       typ,
		Message:    message,
		Status:     model.ConnectionPending,
	}
	if err := s.connRepo.Create(ctx, conn); err != nil {
		// 并发请求撞到用户对唯一约束
		if repository.IsDuplicate(err) {
			return 0, apperror.ErrAlreadyConnected
		}
		return 0, persistErr(err)
	}

	s.notifier.Notify(ctx, toUser, model.NotifyContactRequest,
		"New contact request",
		fmt.Sprintf("%s wants to connect with you", sender.Username),
		map[string]interface{}{
			"connection_id": conn.ID,
			"from_user_id":  fromUser,
			"type":          string(typ),
			"message":       message,
		},
	)
	return conn.ID, nil
}

// RespondToContactRequest 接受或拒绝发给自己的待处理请求
// 已处理、不存在、不是发给自己的请求统一返回 NotFound
func (s *ConnectionService) RespondToContactRequest(ctx context.Context, connectionID, respondingUser uint, action string) (*RespondResult, error) {
	if connectionID == 0 || respondingUser == 0 {
		return nil, apperror.ErrInvalidIdentifier
	}

	var target model.ConnectionStatus
	switch action {
	case ActionAccept:
		target = model.ConnectionAccepted
	case ActionReject:
		target = model.ConnectionRejected
	default:
		return nil, apperror.ErrInvalidAction
	}

	conn, err := s.connRepo.GetByID(ctx, connectionID)
	if err != nil {
		return nil, persistErr(err)
	}
	if conn.ToUserID != respondingUser || conn.Status != model.ConnectionPending {
		return nil, apperror.ErrConnectionNotFound
	}

	// 条件更新：并发的拉黑已经把状态改为 rejected 时这里不会命中
	ok, err := s.connRepo.Transition(ctx, conn.ID, respondingUser, model.ConnectionPending, target)
	if err != nil {
		return nil, persistErr(err)
	}
	if !ok {
		return nil, apperror.ErrConnectionNotFound
	}

	result := &RespondResult{ConnectionID: conn.ID, Status: target}
	responder, err := s.users.GetUser(ctx, respondingUser)
	name := fmt.Sprintf("user %d", respondingUser)
	if err == nil {
		name = responder.Username
	}

	if target == model.ConnectionRejected {
		s.notifier.Notify(ctx, conn.FromUserID, model.NotifyRequestRejected,
			"Contact request declined",
			fmt.Sprintf("%s declined your contact request", name),
			map[string]interface{}{"connection_id": conn.ID, "user_id": respondingUser},
		)
		return result, nil
	}

	conv, err := s.conversations.CreateOrGetConversation(ctx, conn.FromUserID, conn.ToUserID)
	if err != nil {
		return nil, err
	}
	result.ConversationID = conv.ID

	msg, err := s.conversations.InsertMessageTx(ctx, MessageInput{
		ConversationID: conv.ID,
		SenderID:       conn.FromUserID,
		Content:        WelcomeMessage,
		MessageType:    model.MessageSystem,
	}, nil)
	if err != nil {
		return nil, err
	}
	if s.relay != nil {
		s.relay.RelayMessage(conv.ID, msg)
	}

	s.notifier.Notify(ctx, conn.FromUserID, model.NotifyRequestAccepted,
		"Contact request accepted",
		fmt.Sprintf("%s accepted your contact request", name),
		map[string]interface{}{
			"connection_id":   conn.ID,
			"conversation_id": conv.ID,
			"user_id":         respondingUser,
		},
	)
	return result, nil
}

// GetUserConnections 获取用户的全部连接，最新的在前
func (s *ConnectionService) GetUserConnections(ctx context.Context, userID uint) ([]*ConnectionView, error) {
	conns, err := s.connRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, persistErr(err)
	}
	return s.withCounterparts(ctx, userID, conns)
}

// GetPendingRequests 获取发给用户的待处理请求
func (s *ConnectionService) GetPendingRequests(ctx context.Context, userID uint) ([]*ConnectionView, error) {
	conns, err := s.connRepo.ListPendingFor(ctx, userID)
	if err != nil {
		return nil, persistErr(err)
	}
	return s.withCounterparts(ctx, userID, conns)
}

func (s *ConnectionService) withCounterparts(ctx context.Context, userID uint, conns []*model.Connection) ([]*ConnectionView, error) {
	ids := make([]uint, 0, len(conns))
	for _, c := range conns {
		ids = append(ids, c.Counterpart(userID))
	}
	users, err := s.users.GetUsers(ctx, ids)
	if err != nil {
		return nil, persistErr(err)
	}

	views := make([]*ConnectionView, 0, len(conns))
	for _, c := range conns {
		views = append(views, &ConnectionView{
			Connection: c,
			OtherUser:  summaryOf(users, c.Counterpart(userID)),
		})
	}
	return views, nil
}

// SendServiceInquiry 服务咨询：不经过联系请求状态机，直接建会话并写入咨询消息
func (s *ConnectionService) SendServiceInquiry(ctx context.Context, fromUser, toUser, serviceID uint, message string) (*InquiryResult, error) {
	if err := validatePair(fromUser, toUser); err != nil {
		return nil, err
	}
	if serviceID == 0 {
		return nil, apperror.ErrInvalidIdentifier
	}
	if fromUser == toUser {
		return nil, apperror.ErrSelfConnection
	}
	if _, err := validateContent(message); err != nil {
		return nil, err
	}

	sender, err := s.users.GetUser(ctx, fromUser)
	if err != nil {
		return nil, persistErr(err)
	}
	if _, err := s.users.GetUser(ctx, toUser); err != nil {
		return nil, persistErr(err)
	}

	svc, err := s.services.GetService(ctx, serviceID)
	if err != nil {
		return nil, persistErr(err)
	}
	if svc.OwnerID != toUser {
		return nil, apperror.ErrServiceMismatch
	}

	blocked, err := s.conversations.IsBlockedBetween(ctx, fromUser, toUser)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, apperror.ErrBlocked
	}

	conv, err := s.conversations.CreateOrGetConversation(ctx, fromUser, toUser)
	if err != nil {
		return nil, err
	}

	msg, err := s.conversations.InsertMessageTx(ctx, MessageInput{
		ConversationID: conv.ID,
		SenderID:       fromUser,
		Content:        message,
		MessageType:    model.MessageServiceInquiry,
		Metadata: map[string]interface{}{
			"service_id":    svc.ID,
			"service_title": svc.Title,
		},
	}, nil)
	if err != nil {
		return nil, err
	}
	if s.relay != nil {
		s.relay.RelayMessage(conv.ID, msg)
	}

	s.notifier.Notify(ctx, toUser, model.NotifyServiceInquiry,
		"New service inquiry",
		fmt.Sprintf("%s asked about %s", sender.Username, svc.Title),
		map[string]interface{}{
			"conversation_id": conv.ID,
			"service_id":      svc.ID,
			"from_user_id":    fromUser,
		},
	)
	return &InquiryResult{ConversationID: conv.ID, MessageID: msg.ID}, nil
}

// BlockUser 拉黑用户，事务由会话服务统一负责
func (s *ConnectionService) BlockUser(ctx context.Context, blockerID, blockedID uint, reason string) error {
	if err := validatePair(blockerID, blockedID); err != nil {
		return err
	}
	if blockerID == blockedID {
		return apperror.ErrSelfBlock
	}
	if _, err := s.users.GetUser(ctx, blockedID); err != nil {
		return persistErr(err)
	}
	return s.conversations.BlockUser(ctx, blockerID, blockedID, reason)
}

// UnblockUser 取消拉黑，记录不存在时也视为成功
// 被拉黑期间置为 rejected 的连接不会恢复
func (s *ConnectionService) UnblockUser(ctx context.Context, blockerID, blockedID uint) error {
	if err := validatePair(blockerID, blockedID); err != nil {
		return err
	}
	if err := s.blockRepo.Delete(ctx, blockerID, blockedID); err != nil {
		return persistErr(err)
	}
	logger.Info("用户已取消拉黑", zap.Uint("blocker_id", blockerID), zap.Uint("blocked_id", blockedID))
	return nil
}

// GetBlockedUsers 获取用户拉黑的名单
func (s *ConnectionService) GetBlockedUsers(ctx context.Context, userID uint) ([]*BlockedView, error) {
	rows, err := s.blockRepo.ListByBlocker(ctx, userID)
	if err != nil {
		return nil, persistErr(err)
	}

	ids := make([]uint, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.BlockedID)
	}
	users, err := s.users.GetUsers(ctx, ids)
	if err != nil {
		return nil, persistErr(err)
	}

	views := make([]*BlockedView, 0, len(rows))
	for _, r := range rows {
		views = append(views, &BlockedView{BlockedUser: r, User: summaryOf(users, r.BlockedID)})
	}
	return views, nil
}

// DeleteConnection 删除连接，只允许连接双方操作
func (s *ConnectionService) DeleteConnection(ctx context.Context, connectionID, requestingUser uint) error {
	if connectionID == 0 || requestingUser == 0 {
		return apperror.ErrInvalidIdentifier
	}
	ok, err := s.connRepo.Delete(ctx, connectionID, requestingUser)
	if err != nil {
		return persistErr(err)
	}
	if !ok {
		return apperror.ErrConnectionNotFound
	}
	return nil
}
