package apperror

import (
	"errors"
	"fmt"
)

// AppError 带错误码的业务错误
type AppError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

// New 创建业务错误
func New(code Code, message string) error {
	return &AppError{Code: code, Message: message}
}

// Wrap 创建带底层原因的业务错误
func Wrap(code Code, message string, cause error) error {
	return &AppError{Code: code, Message: message, Cause: cause}
}

// Validation 参数校验错误，在任何写操作之前返回
func Validation(msg string) error {
	return New(CodeValidation, msg)
}

// Persistence 数据库/事务失败，唯一映射为可重试的通用错误
func Persistence(cause error) error {
	return Wrap(CodePersistence, "persistence failure", cause)
}

// CodeOf 取出错误链上的业务错误码，非业务错误返回 CodeUnknown
func CodeOf(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// IsCode 判断错误链上是否为指定业务错误码
func IsCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}
