package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the service.
type ErrorCode string

// Synthesis error codes
const (
	// ErrValidation 请求参数不合法，未发起任何网络调用
	ErrValidation ErrorCode = "VALIDATION"
	// ErrAuthentication 上游凭证无效，不重试
	ErrAuthentication ErrorCode = "AUTHENTICATION"
	// ErrRateLimited 上游明确拒绝（限流），可重试
	ErrRateLimited ErrorCode = "RATE_LIMITED"
	// ErrTransientNetwork 网络/超时/5xx，可重试
	ErrTransientNetwork ErrorCode = "TRANSIENT_NETWORK"
	// ErrProvider 上游业务错误（内容审核、余额不足等），不重试
	ErrProvider ErrorCode = "PROVIDER_ERROR"
	// ErrTimeoutExceeded 异步任务等待超过上限
	ErrTimeoutExceeded ErrorCode = "TIMEOUT_EXCEEDED"
	// ErrStreamInterrupted 流式传输中途失败
	ErrStreamInterrupted ErrorCode = "STREAM_INTERRUPTED"
)

// Service error codes
const (
	ErrNotFound      ErrorCode = "NOT_FOUND"
	ErrConflict      ErrorCode = "CONFLICT"
	ErrInternalError ErrorCode = "INTERNAL_ERROR"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Provider   string    `json:"provider,omitempty"`
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf creates a new Error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// NewValidationError 创建参数校验错误。
func NewValidationError(field string, format string, args ...any) *Error {
	return &Error{
		Code:    ErrValidation,
		Message: field + ": " + fmt.Sprintf(format, args...),
	}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithProvider sets the provider name.
func (e *Error) WithProvider(provider string) *Error {
	e.Provider = provider
	return e
}

// AsError extracts a *Error from the chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := AsError(err); ok {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

// IsErrorCode reports whether err carries the given code.
func IsErrorCode(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}
