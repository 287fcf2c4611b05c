package response

import (
	"net/http"

	"marketplace-im/pkg/apperror"
	"marketplace-im/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`                // 状态码：0表示成功，其他表示错误
	Message string      `json:"message"`             // 响应消息
	Reason  string      `json:"reason,omitempty"`    // 业务错误码，例如 ALREADY_CONNECTED
	Data    interface{} `json:"data,omitempty"`      // 响应数据
	Error   string      `json:"error,omitempty"`     // 错误详情（仅在开发环境显示）
	Retry   bool        `json:"retryable,omitempty"` // 是否可以重试
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// SuccessWithMessage 带自定义消息的成功响应
func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    0,
		Message: message,
		Data:    data,
	})
}

// Error 错误响应，code 同时作为 HTTP 状态码
func Error(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
	})
}

// BadRequest 400错误
func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

// Unauthorized 401错误
func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, message)
}

// StatusOf 业务错误码对应的 HTTP 状态
func StatusOf(code apperror.Code) int {
	switch code {
	case apperror.CodeNotFound:
		return http.StatusNotFound
	case apperror.CodeAlreadyConnected:
		return http.StatusConflict
	case apperror.CodeBlocked:
		return http.StatusForbidden
	case apperror.CodeServiceMismatch:
		return http.StatusUnprocessableEntity
	case apperror.CodeSelfBlock, apperror.CodeValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// FromError 将业务错误转换为响应
// 持久化失败和未知错误统一返回可重试的通用错误，不暴露内部细节
func FromError(c *gin.Context, err error) {
	code := apperror.CodeOf(err)
	status := StatusOf(code)

	if status == http.StatusInternalServerError {
		logger.Error("请求处理失败",
			zap.String("path", c.Request.URL.Path),
			zap.String("reason", string(code)),
			zap.Error(err),
		)
		_ = c.Error(err)
		resp := Response{
			Code:    status,
			Message: "服务器繁忙，请稍后重试",
			Reason:  string(apperror.CodePersistence),
			Retry:   true,
		}
		if gin.Mode() == gin.DebugMode {
			resp.Error = err.Error()
		}
		c.JSON(status, resp)
		return
	}

	c.JSON(status, Response{
		Code:    status,
		Message: err.Error(),
		Reason:  string(code),
	})
}
