// Package errors 提供统一的错误定义
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode 错误码类型
type ErrorCode string

// 预定义错误码
const (
	// 通用错误 (1xxx)
	CodeSuccess            ErrorCode = "0"
	CodeUnknown            ErrorCode = "1000"
	CodeInvalidParam       ErrorCode = "1001"
	CodeUnauthorized       ErrorCode = "1002"
	CodeForbidden          ErrorCode = "1003"
	CodeNotFound           ErrorCode = "1004"
	CodeConflict           ErrorCode = "1005"
	CodeTooManyRequests    ErrorCode = "1006"
	CodeInternalError      ErrorCode = "1007"
	CodeServiceUnavailable ErrorCode = "1008"

	// 认证授权错误 (2xxx)
	CodeTokenExpired ErrorCode = "2001"
	CodeTokenInvalid ErrorCode = "2002"
	CodeTokenMissing ErrorCode = "2003"

	// 资源错误 (3xxx)
	CodePersonaNotFound     ErrorCode = "3001"
	CodeScenarioNotFound    ErrorCode = "3002"
	CodePersonaRunNotFound  ErrorCode = "3003"
	CodeScenarioRunNotFound ErrorCode = "3004"
	CodeFeedbackNotFound    ErrorCode = "3005"

	// 业务错误 (4xxx)
	CodeRunCompleted         ErrorCode = "4001"
	CodeRunNotCompleted      ErrorCode = "4002"
	CodeFeedbackGenFailed    ErrorCode = "4003"
	CodePersonaReplyFailed   ErrorCode = "4004"
	CodeLLMCallFailed        ErrorCode = "4005"
	CodeDuplicatePersonaRun  ErrorCode = "4006"
	CodeInvalidFeedbackState ErrorCode = "4007"

	// 外部服务错误 (5xxx)
	CodeDatabaseError    ErrorCode = "5001"
	CodeCacheError       ErrorCode = "5002"
	CodeLLMProviderError ErrorCode = "5005"
)

// AppError 应用错误
type AppError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Detail     string    `json:"detail,omitempty"`
	HTTPStatus int       `json:"-"`
	Err        error     `json:"-"`
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 返回底层错误
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is 按错误码比较，支持 errors.Is(err, ErrPersonaRunNotFound)
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithDetail 添加详细信息（返回副本，避免污染预定义错误）
func (e *AppError) WithDetail(detail string) *AppError {
	cp := *e
	cp.Detail = detail
	return &cp
}

// WithError 添加底层错误（返回副本）
func (e *AppError) WithError(err error) *AppError {
	cp := *e
	cp.Err = err
	return &cp
}

// New 创建新的应用错误
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

// Wrap 包装错误
func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Err:        err,
	}
}

// codeToHTTPStatus 错误码转 HTTP 状态码
func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case CodeSuccess:
		return http.StatusOK
	case CodeInvalidParam:
		return http.StatusBadRequest
	case CodeUnauthorized, CodeTokenExpired, CodeTokenInvalid, CodeTokenMissing:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound, CodePersonaNotFound, CodeScenarioNotFound, CodePersonaRunNotFound,
		CodeScenarioRunNotFound, CodeFeedbackNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeRunCompleted, CodeRunNotCompleted, CodeDuplicatePersonaRun, CodeInvalidFeedbackState:
		return http.StatusConflict
	case CodeTooManyRequests:
		return http.StatusTooManyRequests
	case CodeServiceUnavailable:
		return http.StatusServiceUnavailable
	case CodeLLMCallFailed, CodeLLMProviderError, CodeFeedbackGenFailed, CodePersonaReplyFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// 预定义错误
var (
	ErrInvalidParam       = New(CodeInvalidParam, "invalid parameter")
	ErrUnauthorized       = New(CodeUnauthorized, "unauthorized")
	ErrForbidden          = New(CodeForbidden, "forbidden")
	ErrNotFound           = New(CodeNotFound, "resource not found")
	ErrConflict           = New(CodeConflict, "resource conflict")
	ErrTooManyRequests    = New(CodeTooManyRequests, "too many requests")
	ErrInternalError      = New(CodeInternalError, "internal server error")
	ErrServiceUnavailable = New(CodeServiceUnavailable, "service unavailable")

	ErrTokenExpired = New(CodeTokenExpired, "token expired")
	ErrTokenInvalid = New(CodeTokenInvalid, "token invalid")
	ErrTokenMissing = New(CodeTokenMissing, "token missing")

	ErrPersonaNotFound     = New(CodePersonaNotFound, "persona not found")
	ErrScenarioNotFound    = New(CodeScenarioNotFound, "scenario not found")
	ErrPersonaRunNotFound  = New(CodePersonaRunNotFound, "persona run not found")
	ErrScenarioRunNotFound = New(CodeScenarioRunNotFound, "scenario run not found")
	ErrFeedbackNotFound    = New(CodeFeedbackNotFound, "feedback not found")

	ErrRunCompleted        = New(CodeRunCompleted, "persona run already completed")
	ErrRunNotCompleted     = New(CodeRunNotCompleted, "persona run not completed yet")
	ErrFeedbackGenFailed   = New(CodeFeedbackGenFailed, "feedback generation failed")
	ErrPersonaReplyFailed  = New(CodePersonaReplyFailed, "persona reply failed")
	ErrLLMCallFailed       = New(CodeLLMCallFailed, "LLM call failed")
	ErrDuplicatePersonaRun = New(CodeDuplicatePersonaRun, "persona run already exists for scenario run")
)

// IsAppError 检查是否为 AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// AsAppError 将错误转换为 AppError
func AsAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return Wrap(err, CodeUnknown, "unknown error")
}

// IsNotFound 判断是否为资源不存在类错误
func IsNotFound(err error) bool {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return false
	}
	return appErr.HTTPStatus == http.StatusNotFound
}
