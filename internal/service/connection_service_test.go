package service

import (
	"strings"
	"sync"
	"testing"

	"marketplace-im/internal/model"
	"marketplace-im/internal/repository"
	"marketplace-im/pkg/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestSendContactRequest(t *testing.T) {
	f := newFixture(t)

	id, err := f.conn.SendContactRequest(f.ctx, 1, 2, "hi", "")
	require.NoError(t, err)
	assert.NotZero(t, id)

	status, err := f.conn.CheckConnectionStatus(f.ctx, 2, 1)
	require.NoError(t, err)
	assert.True(t, status.Exists)
	assert.Equal(t, model.ConnectionPending, status.Status)
	assert.Equal(t, model.ConnectionContactRequest, status.Type)
	assert.Equal(t, uint(1), status.FromUserID)

	pending, err := f.conn.GetPendingRequests(f.ctx, 2)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "user1", pending[0].OtherUser.Username)

	notes, err := f.notify.List(f.ctx, 2, 10, 0)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, model.NotifyContactRequest, notes[0].Type)
}

func TestSendContactRequestValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name     string
		from, to uint
		typ      model.ConnectionType
		want     apperror.Code
	}{
		{"self", 1, 1, "", apperror.CodeValidation},
		{"zero id", 0, 2, "", apperror.CodeValidation},
		{"bad type", 1, 2, "friend", apperror.CodeValidation},
		{"unknown target", 1, 99, "", apperror.CodeNotFound},
		{"unknown sender", 99, 1, "", apperror.CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.conn.SendContactRequest(f.ctx, tt.from, tt.to, "hi", tt.typ)
			assert.Equal(t, tt.want, apperror.CodeOf(err))
		})
	}
	assert.Zero(t, f.connectionCount(t, 1, 2))
}

func TestReverseRequestFailsAlreadyConnected(t *testing.T) {
	f := newFixture(t)

	_, err := f.conn.SendContactRequest(f.ctx, 1, 2, "hi", "")
	require.NoError(t, err)

	_, err = f.conn.SendContactRequest(f.ctx, 2, 1, "hello", "")
	assert.ErrorIs(t, err, apperror.ErrAlreadyConnected)
	assert.Equal(t, int64(1), f.connectionCount(t, 1, 2))
}

func TestConcurrentRequestsYieldOneConnection(t *testing.T) {
	f := newFixture(t)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			from, to := uint(1), uint(2)
			if i%2 == 1 {
				from, to = to, from
			}
			_, err := f.conn.SendContactRequest(f.ctx, from, to, "hi", "")

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case apperror.IsCode(err, apperror.CodeAlreadyConnected):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, conflicts)
	assert.Equal(t, int64(1), f.connectionCount(t, 1, 2))
}

func TestRequestLosingUniqueRaceIsAlreadyConnected(t *testing.T) {
	f := newFixture(t)
	// 反方向的请求在读检查之后先写入
	insertBeforeFirstCreate(t, f.orm, "connection", &model.Connection{
		FromUserID: 2,
		ToUserID:   1,
		Type:       model.ConnectionContactRequest,
		Status:     model.ConnectionPending,
	})

	_, err := f.conn.SendContactRequest(f.ctx, 1, 2, "hi", "")
	assert.ErrorIs(t, err, apperror.ErrAlreadyConnected)

	status, err := f.conn.CheckConnectionStatus(f.ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, uint(2), status.FromUserID)
	assert.Equal(t, int64(1), f.connectionCount(t, 1, 2))
}

func TestBlockPreventsRequestsInBothDirections(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.conn.BlockUser(f.ctx, 1, 2, "spam"))

	_, err := f.conn.SendContactRequest(f.ctx, 1, 2, "hi", "")
	assert.ErrorIs(t, err, apperror.ErrBlocked)
	_, err = f.conn.SendContactRequest(f.ctx, 2, 1, "hi", "")
	assert.ErrorIs(t, err, apperror.ErrBlocked)
}

func TestBlockedTakesPrecedenceOverAlreadyConnected(t *testing.T) {
	f := newFixture(t)

	_, err := f.conn.SendContactRequest(f.ctx, 1, 2, "hi", "")
	require.NoError(t, err)
	require.NoError(t, f.conn.BlockUser(f.ctx, 2, 1, ""))

	_, err = f.conn.SendContactRequest(f.ctx, 1, 2, "again", "")
	assert.ErrorIs(t, err, apperror.ErrBlocked)
}

func TestBlockSelfAndUnknown(t *testing.T) {
	f := newFixture(t)

	assert.ErrorIs(t, f.conn.BlockUser(f.ctx, 1, 1, ""), apperror.ErrSelfBlock)
	assert.ErrorIs(t, f.conn.BlockUser(f.ctx, 1, 99, ""), apperror.ErrUserNotFound)
}

func TestBlockIsIdempotent(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.conn.BlockUser(f.ctx, 1, 2, "first"))
	require.NoError(t, f.conn.BlockUser(f.ctx, 1, 2, "second"))

	blocked, err := f.conn.GetBlockedUsers(f.ctx, 1)
	require.NoError(t, err)
	require.Len(t, blocked, 1)
	assert.Equal(t, "first", blocked[0].Reason)
	assert.Equal(t, "user2", blocked[0].User.Username)
}

func TestAcceptCreatesConversationWithWelcomeMessage(t *testing.T) {
	f := newFixture(t)

	id, err := f.conn.SendContactRequest(f.ctx, 1, 2, "hi", "")
	require.NoError(t, err)

	res, err := f.conn.RespondToContactRequest(f.ctx, id, 2, ActionAccept)
	require.NoError(t, err)
	assert.Equal(t, model.ConnectionAccepted, res.Status)
	require.NotZero(t, res.ConversationID)

	status, err := f.conn.CheckConnectionStatus(f.ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, model.ConnectionAccepted, status.Status)

	msgs, err := f.conv.GetMessages(f.ctx, res.ConversationID, 2, 0, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, uint(1), msgs[0].SenderID)
	assert.Equal(t, model.MessageSystem, msgs[0].MessageType)
	assert.Equal(t, WelcomeMessage, msgs[0].Content)
	assert.Equal(t, 1, f.relay.count())

	notes, err := f.notify.List(f.ctx, 1, 10, 0)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, model.NotifyRequestAccepted, notes[0].Type)
}

func TestAcceptReusesExistingConversation(t *testing.T) {
	f := newFixture(t)

	// 先通过服务咨询建立会话
	inq, err := f.conn.SendServiceInquiry(f.ctx, 1, 2, 10, "Is this available?")
	require.NoError(t, err)

	id, err := f.conn.SendContactRequest(f.ctx, 1, 2, "hi", "")
	require.NoError(t, err)
	res, err := f.conn.RespondToContactRequest(f.ctx, id, 2, ActionAccept)
	require.NoError(t, err)

	assert.Equal(t, inq.ConversationID, res.ConversationID)
	assert.Equal(t, int64(1), f.conversationCount(t, 1, 2))
}

func TestRejectRequest(t *testing.T) {
	f := newFixture(t)

	id, err := f.conn.SendContactRequest(f.ctx, 1, 2, "hi", "")
	require.NoError(t, err)

	res, err := f.conn.RespondToContactRequest(f.ctx, id, 2, ActionReject)
	require.NoError(t, err)
	assert.Equal(t, model.ConnectionRejected, res.Status)
	assert.Zero(t, res.ConversationID)
	assert.Zero(t, f.conversationCount(t, 1, 2))

	notes, err := f.notify.List(f.ctx, 1, 10, 0)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, model.NotifyRequestRejected, notes[0].Type)
}

func TestRespondNotFoundCases(t *testing.T) {
	f := newFixture(t)

	id, err := f.conn.SendContactRequest(f.ctx, 1, 2, "hi", "")
	require.NoError(t, err)

	// 不是发给自己的请求
	_, err = f.conn.RespondToContactRequest(f.ctx, id, 1, ActionAccept)
	assert.ErrorIs(t, err, apperror.ErrConnectionNotFound)
	_, err = f.conn.RespondToContactRequest(f.ctx, id, 3, ActionAccept)
	assert.ErrorIs(t, err, apperror.ErrConnectionNotFound)

	// 不存在
	_, err = f.conn.RespondToContactRequest(f.ctx, id+100, 2, ActionAccept)
	assert.ErrorIs(t, err, apperror.ErrConnectionNotFound)

	// 非法动作
	_, err = f.conn.RespondToContactRequest(f.ctx, id, 2, "maybe")
	assert.ErrorIs(t, err, apperror.ErrInvalidAction)

	// 已处理
	_, err = f.conn.RespondToContactRequest(f.ctx, id, 2, ActionReject)
	require.NoError(t, err)
	_, err = f.conn.RespondToContactRequest(f.ctx, id, 2, ActionAccept)
	assert.ErrorIs(t, err, apperror.ErrConnectionNotFound)
}

func TestRespondAfterBlockIsNotFound(t *testing.T) {
	f := newFixture(t)

	id, err := f.conn.SendContactRequest(f.ctx, 1, 2, "hi", "")
	require.NoError(t, err)
	require.NoError(t, f.conn.BlockUser(f.ctx, 1, 2, ""))

	_, err = f.conn.RespondToContactRequest(f.ctx, id, 2, ActionAccept)
	assert.ErrorIs(t, err, apperror.ErrConnectionNotFound)

	status, err := f.conn.CheckConnectionStatus(f.ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, model.ConnectionRejected, status.Status)
}

func TestBlockRejectsAcceptedConnection(t *testing.T) {
	f := newFixture(t)

	id, err := f.conn.SendContactRequest(f.ctx, 1, 2, "hi", "")
	require.NoError(t, err)
	_, err = f.conn.RespondToContactRequest(f.ctx, id, 2, ActionAccept)
	require.NoError(t, err)

	require.NoError(t, f.conn.BlockUser(f.ctx, 2, 1, ""))

	status, err := f.conn.CheckConnectionStatus(f.ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, model.ConnectionRejected, status.Status)
}

func TestNotificationFailureDoesNotRollBackAccept(t *testing.T) {
	f := newFixture(t)

	id, err := f.conn.SendContactRequest(f.ctx, 1, 2, "hi", "")
	require.NoError(t, err)

	// 通知表不可用，接受请求仍然成功
	require.NoError(t, f.orm.Migrator().DropTable(&model.Notification{}))

	res, err := f.conn.RespondToContactRequest(f.ctx, id, 2, ActionAccept)
	require.NoError(t, err)
	assert.Equal(t, model.ConnectionAccepted, res.Status)

	status, err := f.conn.CheckConnectionStatus(f.ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, model.ConnectionAccepted, status.Status)
}

func TestNotifierReceivesRequest(t *testing.T) {
	f := newFixture(t)
	n := &mockNotifier{}
	n.On("Notify", uint(2), model.NotifyContactRequest).Once()

	svc := NewConnectionService(f.orm,
		repository.NewUserRepository(f.orm),
		repository.NewServiceRepository(f.orm),
		f.conv, n, nil)

	_, err := svc.SendContactRequest(f.ctx, 1, 2, "hi", model.ConnectionVideoCall)
	require.NoError(t, err)
	n.AssertExpectations(t)
	n.AssertNumberOfCalls(t, "Notify", 1)
	n.AssertNotCalled(t, "Notify", uint(1), mock.Anything)
}

func TestGetUserConnectionsNewestFirst(t *testing.T) {
	f := newFixture(t)

	first, err := f.conn.SendContactRequest(f.ctx, 1, 2, "hi", "")
	require.NoError(t, err)
	second, err := f.conn.SendContactRequest(f.ctx, 3, 1, "hey", "")
	require.NoError(t, err)

	conns, err := f.conn.GetUserConnections(f.ctx, 1)
	require.NoError(t, err)
	require.Len(t, conns, 2)
	assert.Equal(t, second, conns[0].ID)
	assert.Equal(t, "user3", conns[0].OtherUser.Username)
	assert.Equal(t, "basic", conns[0].OtherUser.VerificationTier)
	assert.Equal(t, first, conns[1].ID)
	assert.Equal(t, "user2", conns[1].OtherUser.Username)
}

func TestServiceInquiry(t *testing.T) {
	f := newFixture(t)

	res, err := f.conn.SendServiceInquiry(f.ctx, 1, 2, 10, "Is this available?")
	require.NoError(t, err)

	// 咨询不创建连接
	status, err := f.conn.CheckConnectionStatus(f.ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, status.Exists)

	msgs, err := f.conv.GetMessages(f.ctx, res.ConversationID, 2, 0, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, model.MessageServiceInquiry, msgs[0].MessageType)
	assert.Contains(t, string(msgs[0].Metadata), `"service_title":"Logo design"`)

	notes, err := f.notify.List(f.ctx, 2, 10, 0)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, model.NotifyServiceInquiry, notes[0].Type)
}

func TestServiceInquiryFailures(t *testing.T) {
	f := newFixture(t)

	_, err := f.conn.SendServiceInquiry(f.ctx, 1, 3, 10, "hello")
	assert.ErrorIs(t, err, apperror.ErrServiceMismatch)

	_, err = f.conn.SendServiceInquiry(f.ctx, 1, 2, 99, "hello")
	assert.ErrorIs(t, err, apperror.ErrServiceNotFound)

	_, err = f.conn.SendServiceInquiry(f.ctx, 1, 2, 10, "   ")
	assert.ErrorIs(t, err, apperror.ErrEmptyContent)

	require.NoError(t, f.conn.BlockUser(f.ctx, 2, 1, ""))
	_, err = f.conn.SendServiceInquiry(f.ctx, 1, 2, 10, "hello")
	assert.ErrorIs(t, err, apperror.ErrBlocked)

	assert.Zero(t, f.conversationCount(t, 1, 2))
}

func TestDeleteConnection(t *testing.T) {
	f := newFixture(t)

	id, err := f.conn.SendContactRequest(f.ctx, 1, 2, "hi", "")
	require.NoError(t, err)

	assert.ErrorIs(t, f.conn.DeleteConnection(f.ctx, id, 3), apperror.ErrConnectionNotFound)
	require.NoError(t, f.conn.DeleteConnection(f.ctx, id, 2))
	assert.ErrorIs(t, f.conn.DeleteConnection(f.ctx, id, 2), apperror.ErrConnectionNotFound)

	status, err := f.conn.CheckConnectionStatus(f.ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, status.Exists)
}

func TestUnblockAllowsNewRequest(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.conn.BlockUser(f.ctx, 1, 2, ""))
	require.NoError(t, f.conn.UnblockUser(f.ctx, 1, 2))
	require.NoError(t, f.conn.UnblockUser(f.ctx, 1, 2))

	blocked, err := f.conn.GetBlockedUsers(f.ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, blocked)

	_, err = f.conn.SendContactRequest(f.ctx, 2, 1, "friends again?", "")
	assert.NoError(t, err)
}

func TestEndToEndRequestAcceptAndChat(t *testing.T) {
	f := newFixture(t)
	const a, b = uint(1), uint(2)

	id, err := f.conn.SendContactRequest(f.ctx, a, b, "hi", "")
	require.NoError(t, err)
	res, err := f.conn.RespondToContactRequest(f.ctx, id, b, ActionAccept)
	require.NoError(t, err)

	_, err = f.conv.SendMessage(f.ctx, res.ConversationID, a, "thanks", "")
	require.NoError(t, err)

	convs, err := f.conv.GetUserConversations(f.ctx, b)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, "thanks", convs[0].LastMessage)
	assert.Equal(t, "user1", convs[0].OtherUser.Username)

	msgs, err := f.conv.GetMessages(f.ctx, convs[0].ID, b, 0, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.True(t, strings.HasPrefix(msgs[0].Content, "Hi! Thanks for accepting"))
	assert.Equal(t, "thanks", msgs[1].Content)
	assert.Equal(t, a, msgs[1].SenderID)
}

func TestEndToEndBlockRejectsPending(t *testing.T) {
	f := newFixture(t)

	_, err := f.conn.SendContactRequest(f.ctx, 1, 2, "hi", "")
	require.NoError(t, err)

	require.NoError(t, f.conn.BlockUser(f.ctx, 1, 2, ""))

	status, err := f.conn.CheckConnectionStatus(f.ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, model.ConnectionRejected, status.Status)
}
