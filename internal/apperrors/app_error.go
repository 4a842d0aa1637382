package apperrors

import (
	"net/http"
)

// AppError 自定义错误类型
type AppError struct {
	Code    int
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithCode 创建通用业务错误
func WithCode(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// BusinessError 封装业务逻辑错误（通用）
func BusinessError(code int, message string) *AppError {
	return WithCode(code, message)
}

// NotFoundError slug 不存在或已惰性过期。不记为系统错误，调用方重定向到默认页。
func NotFoundError() *AppError {
	return WithCode(http.StatusNotFound, "error.link_not_found")
}

// DuplicateSlugError 唯一性冲突：自定义 slug 已被占用
func DuplicateSlugError(slug string) *AppError {
	return WithCode(http.StatusConflict, "error.slug_taken")
}

// InvalidRequestError 封装参数校验错误
func InvalidRequestError(message string) *AppError {
	return WithCode(http.StatusBadRequest, message)
}

// InvalidRequestErrorDefault 默认参数校验错误
func InvalidRequestErrorDefault() *AppError {
	return WithCode(http.StatusBadRequest, "error.invalid_request")
}

// TooManyAttemptsError 密码尝试超限，窗口期内拒绝后续校验
func TooManyAttemptsError() *AppError {
	return WithCode(http.StatusTooManyRequests, "error.too_many_attempts")
}

// VerificationFailedError 密码错误；Remaining 为剩余尝试次数
type VerificationFailedError struct {
	AppError
	Remaining int
}

func NewVerificationFailed(remaining int) *VerificationFailedError {
	return &VerificationFailedError{
		AppError:  AppError{Code: http.StatusUnauthorized, Message: "error.wrong_password"},
		Remaining: remaining,
	}
}

// FatalResolutionError 瞬态存储错误重试耗尽后的终态错误
func FatalResolutionError(cause error) *AppError {
	return &AppError{
		Code:    http.StatusInternalServerError,
		Message: "error.resolution_failed",
		Cause:   cause,
	}
}

// SystemError 封装系统内部错误
func SystemError(message string) *AppError {
	return WithCode(http.StatusInternalServerError, message)
}

// SystemErrorDefault 默认系统内部错误
func SystemErrorDefault() *AppError {
	return WithCode(http.StatusInternalServerError, "error.system")
}
