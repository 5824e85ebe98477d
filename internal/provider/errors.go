package provider

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode classifies provider failures.
type ErrorCode string

const (
	ErrCodeAuthFailed            ErrorCode = "AUTH_FAILED"
	ErrCodeRateLimited           ErrorCode = "RATE_LIMITED"
	ErrCodeQuotaExceeded         ErrorCode = "QUOTA_EXCEEDED"
	ErrCodeServiceUnavailable    ErrorCode = "SERVICE_UNAVAILABLE"
	ErrCodeModelNotFound         ErrorCode = "MODEL_NOT_FOUND"
	ErrCodeNetworkError          ErrorCode = "NETWORK_ERROR"
	ErrCodeInvalidRequest        ErrorCode = "INVALID_REQUEST"
	ErrCodeContentFiltered       ErrorCode = "CONTENT_FILTERED"
	ErrCodeTimeout               ErrorCode = "TIMEOUT"
	ErrCodeContextWindowExceeded ErrorCode = "CONTEXT_WINDOW_EXCEEDED"
	ErrCodeUnknown               ErrorCode = "UNKNOWN"
)

// ProviderError is a structured error returned by a Client.
type ProviderError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Provider   string    `json:"provider"`
	Retryable  bool      `json:"retryable"`
	StatusCode int       `json:"status_code,omitempty"`
	// RemoteCode is the error code reported by DashScope, e.g. "InvalidApiKey".
	RemoteCode string `json:"remote_code,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
	Cause      error  `json:"-"`
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.RemoteCode != "" {
		return fmt.Sprintf("[%s] %s (%s): %s", e.Provider, e.Code, e.RemoteCode, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Provider, e.Code, e.Message)
}

// Unwrap returns the underlying transport error, if any.
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// NewProviderError creates a new ProviderError.
func NewProviderError(code ErrorCode, message, provider string, retryable bool) *ProviderError {
	return &ProviderError{
		Code:      code,
		Message:   message,
		Provider:  provider,
		Retryable: retryable,
	}
}

// NewNetworkError wraps a transport failure.
func NewNetworkError(provider string, cause error) *ProviderError {
	return &ProviderError{
		Code:      ErrCodeNetworkError,
		Message:   cause.Error(),
		Provider:  provider,
		Retryable: true,
		Cause:     cause,
	}
}

// FromStatus builds a ProviderError from an HTTP status and the DashScope
// error body fields. The remote code takes precedence over the status.
func FromStatus(provider string, status int, remoteCode, message, requestID string) *ProviderError {
	e := &ProviderError{
		Provider:   provider,
		StatusCode: status,
		RemoteCode: remoteCode,
		Message:    message,
		RequestID:  requestID,
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}

	switch {
	case remoteCode == "InvalidApiKey":
		e.Code = ErrCodeAuthFailed
	case remoteCode == "Arrearage":
		e.Code = ErrCodeQuotaExceeded
	case strings.HasPrefix(remoteCode, "Throttling"):
		e.Code = ErrCodeRateLimited
		e.Retryable = true
	case remoteCode == "DataInspectionFailed":
		e.Code = ErrCodeContentFiltered
	case remoteCode == "ModelNotFound" || remoteCode == "model_not_found":
		e.Code = ErrCodeModelNotFound
	case remoteCode == "RequestTimeOut":
		e.Code = ErrCodeTimeout
		e.Retryable = true
	case isContextWindowMessage(message):
		e.Code = ErrCodeContextWindowExceeded
	default:
		e.Code, e.Retryable = codeFromStatus(status)
	}
	return e
}

func codeFromStatus(status int) (ErrorCode, bool) {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrCodeAuthFailed, false
	case status == http.StatusTooManyRequests:
		return ErrCodeRateLimited, true
	case status == http.StatusNotFound:
		return ErrCodeModelNotFound, false
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return ErrCodeTimeout, true
	case status >= 500:
		return ErrCodeServiceUnavailable, true
	case status >= 400:
		return ErrCodeInvalidRequest, false
	default:
		return ErrCodeUnknown, false
	}
}

func isContextWindowMessage(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "context window") ||
		strings.Contains(msg, "context length exceeded") ||
		strings.Contains(msg, "maximum context length") ||
		strings.Contains(msg, "range of input length") ||
		strings.Contains(msg, "too many tokens")
}

// IsContextWindowExceeded reports whether err means the input did not fit the
// model context window. Untyped errors fall back to keyword matching.
func IsContextWindowExceeded(err error) bool {
	if err == nil {
		return false
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Code == ErrCodeContextWindowExceeded
	}
	return isContextWindowMessage(err.Error())
}

// IsRetryable reports whether err is a transient provider error.
func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}
