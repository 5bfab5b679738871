package core

import "errors"

// DomainError 是领域层的统一错误类型。
//
// 使用场景：
//   - 图构建错误：MALFORMED_GRAPH
//   - 训练错误：NEGATIVE_SAMPLING_EXHAUSTED
//   - 推荐错误：UNKNOWN_USER, EMPTY_PREFERENCE
//   - 向量错误：NOT_FOUND, INVALID_INPUT, VECTOR_BACKEND_UNAVAILABLE
type DomainError struct {
	Code    string // 错误代码（如 "NOT_FOUND", "UNKNOWN_USER"）
	Message string // 错误消息
	Module  string // 模块名称（如 "graph", "train", "vector"）
	Err     error  // 底层错误（可选）
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *DomainError) Unwrap() error { return e.Err }

// Is 让 errors.Is 按 Code 匹配，Module 为空的 target 匹配任意模块。
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	if t.Code != e.Code {
		return false
	}
	return t.Module == "" || t.Module == e.Module
}

// IsDomainError 检查错误链中是否存在 DomainError
func IsDomainError(err error) bool {
	return GetDomainError(err) != nil
}

// GetDomainError 获取错误链中的 DomainError，如果不存在则返回 nil
func GetDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

// NewDomainError 创建新的领域错误
func NewDomainError(module, code, message string) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
	}
}

// WrapDomainError 创建携带底层错误的领域错误
func WrapDomainError(module, code, message string, err error) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// 错误代码常量
const (
	ErrorCodeNotFound      = "NOT_FOUND"      // 资源不存在
	ErrorCodeNotSupported  = "NOT_SUPPORTED"  // 操作不支持
	ErrorCodeUnavailable   = "UNAVAILABLE"    // 服务不可用
	ErrorCodeInvalidInput  = "INVALID_INPUT"  // 输入无效
	ErrorCodeInternalError = "INTERNAL_ERROR" // 内部错误

	ErrorCodeMalformedGraph            = "MALFORMED_GRAPH"
	ErrorCodeNegativeSamplingExhausted = "NEGATIVE_SAMPLING_EXHAUSTED"
	ErrorCodeUnknownUser               = "UNKNOWN_USER"
	ErrorCodeEmptyPreference           = "EMPTY_PREFERENCE"
	ErrorCodeVectorBackendUnavailable  = "VECTOR_BACKEND_UNAVAILABLE"
)

// 模块名称常量
const (
	ModuleStore  = "store"  // 存储模块
	ModuleGraph  = "graph"  // 交互图
	ModuleTrain  = "train"  // 训练
	ModuleVector = "vector" // 向量模块
	ModuleEngine = "engine" // 推荐引擎
)

// 哨兵错误，配合 errors.Is 使用（匹配任意模块）。
var (
	ErrMalformedGraph            = &DomainError{Code: ErrorCodeMalformedGraph, Message: "malformed graph"}
	ErrNegativeSamplingExhausted = &DomainError{Code: ErrorCodeNegativeSamplingExhausted, Message: "negative sampling exhausted"}
	ErrUnknownUser               = &DomainError{Code: ErrorCodeUnknownUser, Message: "unknown user"}
	ErrEmptyPreference           = &DomainError{Code: ErrorCodeEmptyPreference, Message: "empty preference"}
	ErrVectorBackendUnavailable  = &DomainError{Code: ErrorCodeVectorBackendUnavailable, Message: "vector backend unavailable"}
	ErrNotFound                  = &DomainError{Code: ErrorCodeNotFound, Message: "not found"}
	ErrInvalidInput              = &DomainError{Code: ErrorCodeInvalidInput, Message: "invalid input"}
)

func hasCode(err error, code string) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == code
	}
	return false
}

// IsNotFound 检查错误是否为 NOT_FOUND
func IsNotFound(err error) bool { return hasCode(err, ErrorCodeNotFound) }

// IsNotSupported 检查错误是否为 NOT_SUPPORTED
func IsNotSupported(err error) bool { return hasCode(err, ErrorCodeNotSupported) }

// IsUnavailable 检查错误是否为 UNAVAILABLE
func IsUnavailable(err error) bool { return hasCode(err, ErrorCodeUnavailable) }

// IsInvalidInput 检查错误是否为 INVALID_INPUT
func IsInvalidInput(err error) bool { return hasCode(err, ErrorCodeInvalidInput) }

func IsMalformedGraph(err error) bool { return hasCode(err, ErrorCodeMalformedGraph) }

func IsNegativeSamplingExhausted(err error) bool {
	return hasCode(err, ErrorCodeNegativeSamplingExhausted)
}

func IsUnknownUser(err error) bool { return hasCode(err, ErrorCodeUnknownUser) }

func IsEmptyPreference(err error) bool { return hasCode(err, ErrorCodeEmptyPreference) }

func IsVectorBackendUnavailable(err error) bool {
	return hasCode(err, ErrorCodeVectorBackendUnavailable)
}
