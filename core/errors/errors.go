package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError 应用业务错误
type AppError struct {
	Code    ErrCode // 业务错误码
	Message string  // 错误消息
	cause   error
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 返回底层错误
func (e *AppError) Unwrap() error {
	return e.cause
}

// Is 按错误码比较，便于 errors.Is(err, errors.New(code, ""))
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

// New 创建新的业务错误
func New(code ErrCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Newf 创建新的业务错误（格式化消息）
func Newf(code ErrCode, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap 用业务错误码包装底层错误
func Wrap(code ErrCode, err error, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		cause:   err,
	}
}

// Wrapf 用业务错误码包装底层错误（格式化消息）
func Wrapf(code ErrCode, err error, format string, args ...interface{}) *AppError {
	return Wrap(code, err, fmt.Sprintf(format, args...))
}

// IsAppError 判断是否为业务错误
func IsAppError(err error) bool {
	return GetAppError(err) != nil
}

// GetAppError 获取业务错误，如果不是则返回nil
func GetAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// CodeOf 返回错误链上的业务错误码，没有时返回 ErrInternalError
func CodeOf(err error) ErrCode {
	if appErr := GetAppError(err); appErr != nil {
		return appErr.Code
	}
	return ErrInternalError
}

// HasCode 判断错误链上是否存在指定错误码
func HasCode(err error, code ErrCode) bool {
	return stderrors.Is(err, &AppError{Code: code})
}
