package handler

import (
	"strconv"

	"marketplace-im/pkg/jwt"
	"marketplace-im/pkg/response"

	"github.com/gin-gonic/gin"
)

// currentUser 当前登录用户ID，未登录时回 401 并返回 false
func currentUser(c *gin.Context) (uint, bool) {
	userID := jwt.GetUserIDUint(c)
	if userID == 0 {
		response.Unauthorized(c, "未登录")
		return 0, false
	}
	return userID, true
}

// uintParam 解析路径参数，非法时回 400
func uintParam(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || v == 0 {
		response.BadRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(v), true
}

// intQuery 解析查询参数，缺失或非法时用默认值
func intQuery(c *gin.Context, name string, def int) int {
	v, err := strconv.Atoi(c.DefaultQuery(name, strconv.Itoa(def)))
	if err != nil || v < 0 {
		return def
	}
	return v
}
