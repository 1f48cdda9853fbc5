package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// NetworkError 无法连接服务端或连接中断
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("backend: %s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// TimeoutError 调用超过了超时时间
type TimeoutError struct {
	Op    string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	if e.After > 0 {
		return fmt.Sprintf("backend: %s: timed out after %s", e.Op, e.After)
	}
	return fmt.Sprintf("backend: %s: timed out", e.Op)
}

// Is 让 errors.Is(err, context.DeadlineExceeded) 对超时也成立
func (e *TimeoutError) Is(target error) bool {
	return target == context.DeadlineExceeded
}

// AuthError 未认证或无权限（401/403）
type AuthError struct {
	Op      string
	Status  int
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("backend: %s: unauthorized (%d): %s", e.Op, e.Status, e.Message)
}

// APIError 服务端返回了其他非 2xx 响应，操作没有发生
type APIError struct {
	Op      string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend: %s: %d %s: %s", e.Op, e.Status, http.StatusText(e.Status), e.Message)
}

// IsRetryable 判断错误是否值得让用户重试
// 网络错误、超时和 5xx 可重试；认证错误和 4xx 不可重试
func IsRetryable(err error) bool {
	var (
		netErr     *NetworkError
		timeoutErr *TimeoutError
		apiErr     *APIError
	)
	switch {
	case errors.As(err, &netErr), errors.As(err, &timeoutErr):
		return true
	case errors.As(err, &apiErr):
		return apiErr.Status >= 500 || apiErr.Status == http.StatusTooManyRequests
	default:
		return false
	}
}

// UserMessage 返回展示给用户的简短提示
func UserMessage(err error) string {
	var (
		netErr     *NetworkError
		timeoutErr *TimeoutError
		authErr    *AuthError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &timeoutErr):
		return "The server took too long to answer. Press again to retry."
	case errors.As(err, &netErr):
		return "Could not reach the server. Check your connection and retry."
	case errors.As(err, &authErr):
		return "Your session has expired. Please sign in again."
	case IsRetryable(err):
		return "The server had a problem. Press again to retry."
	default:
		return "Something went wrong. Please try again later."
	}
}
