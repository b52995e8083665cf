// Package conversation 是终端侧的会话生命周期协调层：
// 创建或恢复角色会话、组装聊天视图、驱动反馈生成与下一角色推进。
package conversation

import (
	"errors"
	"fmt"
	"net/http"
)

// 错误分类，使用 errors.Is 判断
var (
	ErrNotFound   = errors.New("not found")
	ErrTransient  = errors.New("transient failure")
	ErrValidation = errors.New("validation failed")
)

// APIError 后端返回的非 2xx 响应
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d [%s]: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Unwrap 将状态码映射到错误分类
func (e *APIError) Unwrap() error {
	switch {
	case e.Status == http.StatusNotFound:
		return ErrNotFound
	case e.Status == http.StatusBadRequest, e.Status == http.StatusConflict, e.Status == http.StatusUnprocessableEntity:
		return ErrValidation
	default:
		return ErrTransient
	}
}

// IsConflict 后端拒绝了重复创建
func IsConflict(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict
}

// ValidationError 创建请求参数不合法，在发出请求前返回
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Kind 错误分类
type Kind int

const (
	KindTransient Kind = iota
	KindNotFound
	KindValidation
)

// Classify 未识别的错误一律视为 KindTransient
func Classify(err error) Kind {
	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrValidation):
		return KindValidation
	default:
		return KindTransient
	}
}

// RecoveryAction 失败后提供给用户的唯一恢复动作
type RecoveryAction string

const (
	ActionRetryFetch    RecoveryAction = "retry_fetch"
	ActionRetryGenerate RecoveryAction = "retry_generate"
	ActionBackToList    RecoveryAction = "back_to_list"
)

// Failure 面向用户的失败描述
type Failure struct {
	Message string
	Action  RecoveryAction
}

// Operation 产生失败的操作
type Operation int

const (
	OpLoadConversation Operation = iota
	OpEnsureRun
	OpFetchFeedback
	OpGenerateFeedback
	OpNextPersona
)

// FailureFor 为失败的操作生成提示与恢复动作
func FailureFor(op Operation, err error) Failure {
	kind := Classify(err)
	switch op {
	case OpLoadConversation, OpEnsureRun:
		switch kind {
		case KindNotFound:
			return Failure{Message: "This conversation no longer exists.", Action: ActionBackToList}
		case KindValidation:
			return Failure{Message: "The conversation could not be started: " + err.Error(), Action: ActionBackToList}
		default:
			return Failure{Message: "The conversation could not be loaded. Please try again later.", Action: ActionBackToList}
		}
	case OpFetchFeedback:
		return Failure{Message: "Feedback could not be loaded.", Action: ActionRetryFetch}
	case OpGenerateFeedback:
		switch kind {
		case KindValidation:
			return Failure{Message: "Feedback is not available for this conversation yet.", Action: ActionRetryGenerate}
		default:
			return Failure{Message: "Feedback generation failed. You can try again.", Action: ActionRetryGenerate}
		}
	case OpNextPersona:
		if errors.Is(err, ErrInvalidFeedbackState) {
			return Failure{Message: "Finish this conversation before moving to the next persona.", Action: ActionBackToList}
		}
		return Failure{Message: "The next conversation could not be opened.", Action: ActionBackToList}
	default:
		return Failure{Message: err.Error(), Action: ActionBackToList}
	}
}
