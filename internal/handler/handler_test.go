package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"marketplace-im/config"
	"marketplace-im/internal/repository"
	"marketplace-im/internal/service"
	"marketplace-im/internal/testutil"
	"marketplace-im/pkg/jwt"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticPresence map[uint]bool

func (p staticPresence) IsOnline(userID uint) bool { return p[userID] }

type apiResp struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Reason  string          `json:"reason"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	t      *testing.T
	router *gin.Engine
	jwt    *jwt.JWTService
}

func newTestServer(t *testing.T) *testServer {
	gin.SetMode(gin.TestMode)

	orm := testutil.NewDB(t)
	testutil.SeedUsers(t, orm, 1, 2, 3)
	testutil.SeedService(t, orm, 10, 2, "Logo design")

	users := repository.NewUserRepository(orm)
	convSvc := service.NewConversationService(orm, users)
	notifySvc := service.NewNotificationService(orm, nil, config.NotificationConfig{RetryAttempts: 1, RetryBackoff: time.Millisecond})
	connSvc := service.NewConnectionService(orm, users, repository.NewServiceRepository(orm), convSvc, notifySvc, nil)

	jwtSvc := jwt.NewJWTService(config.JWTConfig{Secret: "test-secret", ExpireTime: time.Hour, Issuer: "test"})
	handlers := &Handlers{
		Connection:   NewConnectionHandler(connSvc),
		Conversation: NewConversationHandler(convSvc, nil),
		Notification: NewNotificationHandler(notifySvc),
		User:         NewUserHandler(staticPresence{2: true}),
	}

	r := gin.New()
	handlers.Register(r, jwtSvc.AuthMiddleware())
	return &testServer{t: t, router: r, jwt: jwtSvc}
}

func (s *testServer) do(userID uint, method, path string, body interface{}) (int, apiResp) {
	s.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != 0 {
		token, err := s.jwt.GenerateToken(strconv.Itoa(int(userID)), nil)
		require.NoError(s.t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var resp apiResp
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w.Code, resp
}

func TestRequiresToken(t *testing.T) {
	s := newTestServer(t)
	status, _ := s.do(0, http.MethodGet, "/api/v1/connections", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestContactRequestFlow(t *testing.T) {
	s := newTestServer(t)

	status, resp := s.do(1, http.MethodPost, "/api/v1/connections/requests", gin.H{"to_user_id": 2, "message": "hi"})
	require.Equal(t, http.StatusOK, status, resp.Message)
	var created struct {
		ConnectionID uint `json:"connection_id"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &created))
	require.NotZero(t, created.ConnectionID)

	status, resp = s.do(2, http.MethodPost, "/api/v1/connections/requests", gin.H{"to_user_id": 1})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "ALREADY_CONNECTED", resp.Reason)

	status, resp = s.do(2, http.MethodGet, "/api/v1/notifications/unread/count", nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"count":1}`, string(resp.Data))

	// 发起方不能处理自己的请求
	path := "/api/v1/connections/requests/" + strconv.Itoa(int(created.ConnectionID)) + "/respond"
	status, _ = s.do(1, http.MethodPost, path, gin.H{"action": "accept"})
	assert.Equal(t, http.StatusNotFound, status)

	status, resp = s.do(2, http.MethodPost, path, gin.H{"action": "accept"})
	require.Equal(t, http.StatusOK, status, resp.Message)
	var result service.RespondResult
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	require.NotZero(t, result.ConversationID)

	convPath := "/api/v1/conversations/" + strconv.Itoa(int(result.ConversationID)) + "/messages"
	status, _ = s.do(2, http.MethodPost, convPath, gin.H{"content": "hello back"})
	require.Equal(t, http.StatusOK, status)

	status, resp = s.do(1, http.MethodGet, convPath, nil)
	require.Equal(t, http.StatusOK, status)
	var messages []struct {
		SenderID uint   `json:"sender_id"`
		Content  string `json:"content"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &messages))
	require.Len(t, messages, 2)
	assert.Equal(t, "hello back", messages[1].Content)

	// 非成员看不到会话
	status, resp = s.do(3, http.MethodGet, convPath, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", resp.Reason)
}

func TestBlockEndpoints(t *testing.T) {
	s := newTestServer(t)

	status, resp := s.do(1, http.MethodPost, "/api/v1/connections/block", gin.H{"user_id": 1})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "SELF_BLOCK", resp.Reason)

	status, _ = s.do(1, http.MethodPost, "/api/v1/connections/block", gin.H{"user_id": 3, "reason": "spam"})
	require.Equal(t, http.StatusOK, status)

	status, resp = s.do(3, http.MethodPost, "/api/v1/connections/requests", gin.H{"to_user_id": 1})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "BLOCKED", resp.Reason)

	status, resp = s.do(1, http.MethodGet, "/api/v1/connections/blocked", nil)
	require.Equal(t, http.StatusOK, status)
	var blocked []map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Data, &blocked))
	assert.Len(t, blocked, 1)

	status, _ = s.do(1, http.MethodDelete, "/api/v1/connections/block/3", nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = s.do(3, http.MethodPost, "/api/v1/connections/requests", gin.H{"to_user_id": 1})
	assert.Equal(t, http.StatusOK, status)
}

func TestServiceInquiryEndpoint(t *testing.T) {
	s := newTestServer(t)

	status, resp := s.do(3, http.MethodPost, "/api/v1/connections/inquiries", gin.H{"to_user_id": 1, "service_id": 10, "message": "price?"})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "SERVICE_MISMATCH", resp.Reason)

	// 服务不存在按未找到处理，而不是归属不符
	status, resp = s.do(3, http.MethodPost, "/api/v1/connections/inquiries", gin.H{"to_user_id": 2, "service_id": 99, "message": "price?"})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", resp.Reason)
	assert.Contains(t, resp.Message, "service not found")

	status, resp = s.do(3, http.MethodPost, "/api/v1/connections/inquiries", gin.H{"to_user_id": 2, "service_id": 10, "message": "price?"})
	require.Equal(t, http.StatusOK, status, resp.Message)

	status, resp = s.do(2, http.MethodGet, "/api/v1/conversations", nil)
	require.Equal(t, http.StatusOK, status)
	var convs []map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Data, &convs))
	assert.Len(t, convs, 1)
}

func TestBadParams(t *testing.T) {
	s := newTestServer(t)

	status, _ := s.do(1, http.MethodGet, "/api/v1/connections/status/abc", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = s.do(1, http.MethodPost, "/api/v1/connections/requests/1/respond", gin.H{"action": "maybe"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestUserOnline(t *testing.T) {
	s := newTestServer(t)

	status, resp := s.do(1, http.MethodGet, "/api/v1/users/2/online", nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"user_id":2,"online":true}`, string(resp.Data))

	_, resp = s.do(1, http.MethodGet, "/api/v1/users/3/online", nil)
	assert.JSONEq(t, `{"user_id":3,"online":false}`, string(resp.Data))
}

func TestNotificationEndpoints(t *testing.T) {
	s := newTestServer(t)

	status, _ := s.do(1, http.MethodPost, "/api/v1/connections/requests", gin.H{"to_user_id": 2})
	require.Equal(t, http.StatusOK, status)

	status, resp := s.do(2, http.MethodGet, "/api/v1/notifications", nil)
	require.Equal(t, http.StatusOK, status)
	var list []struct {
		ID   uint   `json:"id"`
		Type string `json:"type"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "contact_request", list[0].Type)

	status, _ = s.do(1, http.MethodPut, "/api/v1/notifications/"+strconv.Itoa(int(list[0].ID))+"/read", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = s.do(2, http.MethodPut, "/api/v1/notifications/read-all", nil)
	require.Equal(t, http.StatusOK, status)

	_, resp = s.do(2, http.MethodGet, "/api/v1/notifications/unread/count", nil)
	assert.JSONEq(t, `{"count":0}`, string(resp.Data))
}
