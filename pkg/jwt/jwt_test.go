package jwt

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"marketplace-im/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() *JWTService {
	return NewJWTService(config.JWTConfig{
		Secret:     "test-secret-key-for-unit-tests",
		Issuer:     "marketplace-im",
		ExpireTime: time.Hour,
	})
}

func TestUserIDFromToken(t *testing.T) {
	svc := newTestService()

	token, err := svc.GenerateToken("42", map[string]interface{}{"username": "alice"})
	require.NoError(t, err)

	id, err := svc.UserIDFromToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), id)

	bad, err := svc.GenerateToken("alice", nil)
	require.NoError(t, err)
	_, err = svc.UserIDFromToken(bad)
	assert.Error(t, err)
}

func TestValidateTokenRejectsOtherIssuerAndExpired(t *testing.T) {
	svc := newTestService()

	other := NewJWTService(config.JWTConfig{Secret: "test-secret-key-for-unit-tests", Issuer: "someone-else", ExpireTime: time.Hour})
	token, err := other.GenerateToken("1", nil)
	require.NoError(t, err)
	_, err = svc.ValidateToken(token)
	assert.Error(t, err)

	expired := NewJWTService(config.JWTConfig{Secret: "test-secret-key-for-unit-tests", Issuer: "marketplace-im", ExpireTime: -time.Minute})
	token, err = expired.GenerateToken("1", nil)
	require.NoError(t, err)
	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := newTestService()

	r := gin.New()
	r.GET("/me", svc.AuthMiddleware(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"uid": GetUserIDUint(c), "sub": c.GetString(ContextUserIDKey)})
	})

	token, err := svc.GenerateToken("7", nil)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Token " + token, http.StatusUnauthorized},
		{"garbage", "Bearer abc.def", http.StatusUnauthorized},
		{"ok", "Bearer " + token, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.JSONEq(t, `{"uid":7,"sub":"7"}`, w.Body.String())
			}
		})
	}
}
