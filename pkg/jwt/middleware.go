package jwt

import (
	"strconv"
	"strings"

	"marketplace-im/pkg/logger"
	"marketplace-im/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// ContextUserIDKey 用户ID（字符串）在gin.Context中的键名，请求日志读取
	ContextUserIDKey = "user_id"
	// ContextUserUIDKey 用户ID（数值）在gin.Context中的键名
	ContextUserUIDKey = "user_uid"
)

// AuthMiddleware JWT认证中间件
// 从请求头中提取Authorization: Bearer <token>
// 验证token并将用户信息存入gin.Context
func (s *JWTService) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 从请求头获取Authorization
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, "缺少Authorization请求头")
			c.Abort()
			return
		}

		// 检查Bearer前缀
		if !strings.HasPrefix(authHeader, "Bearer ") {
			response.Unauthorized(c, "Authorization格式错误，应为Bearer <token>")
			c.Abort()
			return
		}

		// 提取token
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == "" {
			response.Unauthorized(c, "token不能为空")
			c.Abort()
			return
		}

		claims, err := s.ValidateToken(tokenString)
		if err != nil {
			logger.Warn("JWT验证失败",
				zap.Error(err),
				zap.String("path", c.Request.URL.Path),
				zap.String("ip", c.ClientIP()),
			)
			response.Unauthorized(c, "token无效或已过期")
			c.Abort()
			return
		}

		// Subject 必须是正整数用户ID
		uid, err := strconv.ParseUint(claims.Subject, 10, 64)
		if err != nil || uid == 0 {
			response.Unauthorized(c, "用户信息无效")
			c.Abort()
			return
		}

		// 将用户信息存入Context
		c.Set(ContextUserIDKey, claims.Subject)
		c.Set(ContextUserUIDKey, uint(uid))

		c.Next()
	}
}

// GetUserIDUint 从gin.Context中获取数值用户ID，未认证时返回0
func GetUserIDUint(c *gin.Context) uint {
	if v, exists := c.Get(ContextUserUIDKey); exists {
		if id, ok := v.(uint); ok {
			return id
		}
	}
	return 0
}
