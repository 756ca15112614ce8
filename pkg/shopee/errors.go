package shopee

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrAuthInvalid 授权被 Shopee 明确拒绝 (code/refresh_token 失效)
// 只有匹配此错误时才允许清除本地 Token
var ErrAuthInvalid = errors.New("shopee: authorization invalid")

// authErrorCodes 视为授权失效的业务错误码
var authErrorCodes = map[string]bool{
	"error_auth":       true,
	"error_permission": true,
}

// ==================== TransientError ====================

// TransientError 瞬时错误：网络失败、超时、5xx、429
// 允许在重试预算内重试
type TransientError struct {
	StatusCode int // 0 表示请求未得到响应
	Body       string
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("shopee: transient network error: %v", e.Err)
	}
	return fmt.Sprintf("shopee: transient http %d: %s", e.StatusCode, e.Body)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// ==================== APIError ====================

// APIError 应用层错误：响应体 error 字段非空 (即使 HTTP 200)，或不可重试的非 200 状态
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	RequestID  string
}

func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("shopee api error [%s]: %s (request_id=%s)", e.Code, e.Message, e.RequestID)
	}
	return fmt.Sprintf("shopee api error [%s]: %s", e.Code, e.Message)
}

// Is 授权类错误码同时匹配 ErrAuthInvalid
func (e *APIError) Is(target error) bool {
	if target != ErrAuthInvalid {
		return false
	}
	if e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden {
		return true
	}
	return authErrorCodes[e.Code]
}

// ==================== 分类工具 ====================

// IsRetryable 判断错误是否值得重试
func IsRetryable(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// ProviderMessage 提取 Shopee 返回的错误文案，非 APIError 时返回 err.Error()
func ProviderMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}

// classifyStatus 非 200 状态码归类
func classifyStatus(status int, body string) error {
	if status >= http.StatusInternalServerError || status == http.StatusTooManyRequests {
		return &TransientError{StatusCode: status, Body: body}
	}
	return &APIError{StatusCode: status, Code: fmt.Sprintf("http_%d", status), Message: body}
}
