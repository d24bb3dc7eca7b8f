package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// ========== 响应码常量定义 ==========

// CodeSuccess 成功码
const (
	CodeSuccess = 200
)

// HTTP层错误码 (400-599)
const (
	CodeInvalidParam     = 400
	CodeUnauthorized     = 401
	CodeNoPermission     = 403
	CodeResourceNotFound = 404
	CodeConflict         = 409
	CodeServerError      = 500
	CodeBadGateway       = 502
)

// ========== 领域错误 ==========

// ErrorCode 领域错误码，字符串形式便于日志和 JSON 输出
type ErrorCode string

const (
	// CodeValidation 用户输入不合法，生成不会继续
	CodeValidation ErrorCode = "VALIDATION_ERROR"
	// CodeTemplateNotAssociated 模板未关联到该物业
	CodeTemplateNotAssociated ErrorCode = "TEMPLATE_NOT_ASSOCIATED"
	// CodeRenderFailure 外部渲染或产物存储失败
	CodeRenderFailure ErrorCode = "RENDER_FAILURE"
	// CodeSignatureStateConflict 签署状态冲突
	CodeSignatureStateConflict ErrorCode = "SIGNATURE_STATE_CONFLICT"
	// CodeLeaseStateConflict 租约状态不允许该操作
	CodeLeaseStateConflict ErrorCode = "LEASE_STATE_CONFLICT"
	CodeNotFound              ErrorCode = "NOT_FOUND"
	CodeForbidden             ErrorCode = "FORBIDDEN"
	CodeInternal              ErrorCode = "INTERNAL"
)

// AppError 带错误码的领域错误
type AppError struct {
	Code    ErrorCode         `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
	Err     error             `json:"-"`
}

func (e *AppError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " [%s: %s]", k, e.Details[k])
		}
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New 创建领域错误
func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap 包装底层错误
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// NotFound 资源不存在
func NotFound(resource string) *AppError {
	return New(CodeNotFound, resource+"不存在")
}

// CodeOf 取出错误码，非 AppError 视为内部错误
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// Is 判断错误是否为指定错误码
func Is(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// ValidationError 字段级校验错误集合
type ValidationError struct {
	fields map[string]string
}

// NewValidation 创建空的校验错误收集器
func NewValidation() *ValidationError {
	return &ValidationError{fields: make(map[string]string)}
}

// Add 记录字段错误，同一字段保留第一条
func (v *ValidationError) Add(field, message string) {
	if _, exists := v.fields[field]; !exists {
		v.fields[field] = message
	}
}

// HasErrors 是否存在错误
func (v *ValidationError) HasErrors() bool {
	return len(v.fields) > 0
}

// Err 没有错误时返回 nil
func (v *ValidationError) Err() error {
	if !v.HasErrors() {
		return nil
	}
	return &AppError{Code: CodeValidation, Message: "租约参数校验失败", Details: v.fields}
}

// HTTPCode 领域错误码到响应码的映射
func HTTPCode(code ErrorCode) int {
	switch code {
	case CodeValidation, CodeTemplateNotAssociated:
		return CodeInvalidParam
	case CodeNotFound:
		return CodeResourceNotFound
	case CodeForbidden:
		return CodeNoPermission
	case CodeSignatureStateConflict, CodeLeaseStateConflict:
		return CodeConflict
	case CodeRenderFailure:
		return CodeBadGateway
	default:
		return CodeServerError
	}
}
