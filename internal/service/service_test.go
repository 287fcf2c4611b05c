package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"marketplace-im/config"
	"marketplace-im/internal/model"
	"marketplace-im/internal/repository"
	"marketplace-im/internal/testutil"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// recordingRelay 记录广播过的消息
type recordingRelay struct {
	mu       sync.Mutex
	messages []*model.Message
}

func (r *recordingRelay) RelayMessage(conversationID uint, msg *model.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
}

func (r *recordingRelay) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(ctx context.Context, userID uint, typ, title, message string, data map[string]interface{}) {
	m.Called(userID, typ)
}

type fixture struct {
	ctx    context.Context
	orm    *gorm.DB
	conv   *ConversationService
	notify *NotificationService
	conn   *ConnectionService
	relay  *recordingRelay
}

// newFixture 用户 1..4 已存在，服务 10 归属用户 2
func newFixture(t *testing.T) *fixture {
	orm := testutil.NewDB(t)
	testutil.SeedUsers(t, orm, 1, 2, 3, 4)
	testutil.SeedService(t, orm, 10, 2, "Logo design")

	users := repository.NewUserRepository(orm)
	services := repository.NewServiceRepository(orm)
	relay := &recordingRelay{}

	conv := NewConversationService(orm, users)
	notify := NewNotificationService(orm, nil, config.NotificationConfig{RetryAttempts: 2, RetryBackoff: time.Millisecond})
	conn := NewConnectionService(orm, users, services, conv, notify, relay)

	return &fixture{
		ctx:    context.Background(),
		orm:    orm,
		conv:   conv,
		notify: notify,
		conn:   conn,
		relay:  relay,
	}
}

func (f *fixture) connectionCount(t *testing.T, a, b uint) int64 {
	n, err := repository.NewConnectionRepository(f.orm).CountByPair(f.ctx, a, b)
	if err != nil {
		t.Fatalf("count connections: %v", err)
	}
	return n
}

func (f *fixture) conversationCount(t *testing.T, a, b uint) int64 {
	var n int64
	err := f.orm.Model(&model.Conversation{}).
		Where("(participant1 = ? AND participant2 = ?) OR (participant1 = ? AND participant2 = ?)", a, b, b, a).
		Count(&n).Error
	if err != nil {
		t.Fatalf("count conversations: %v", err)
	}
	return n
}

// insertBeforeFirstCreate 在第一次写入 table 之前先插入 rival，
// 模拟另一个请求在读检查之后、写入之前抢先提交
func insertBeforeFirstCreate(t *testing.T, orm *gorm.DB, table string, rival interface{}) {
	t.Helper()
	fired := false
	err := orm.Callback().Create().Before("gorm:create").Register("test:rival_"+table, func(tx *gorm.DB) {
		if fired || tx.Statement.Table != table {
			return
		}
		fired = true
		if err := tx.Session(&gorm.Session{NewDB: true}).Create(rival).Error; err != nil {
			_ = tx.AddError(err)
		}
	})
	require.NoError(t, err)
}
