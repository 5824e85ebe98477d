// Package handlers holds the HTTP pieces shared by the gateway and api/v1:
// JSON and error responses, the SSE writer used by /api/v1/chat/stream, and
// the /health handler.
package handlers

import (
	"encoding/json"
	"net/http"

	"qwenlink/pkg/logger"
)

// Error codes produced by the gateway itself. Provider failures are reported
// with the provider's own code (RATE_LIMITED, AUTH_FAILED, ...).
const (
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrCodeGatewayTimeout     = "GATEWAY_TIMEOUT"
	ErrCodeUpstreamError      = "UPSTREAM_ERROR"
)

// ErrorDetail is the error object of every failed API call, and of the
// "error" event of /api/v1/chat/stream.
type ErrorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Provider  string `json:"provider,omitempty"`
	Retryable bool   `json:"retryable"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse wraps an ErrorDetail as {"error": {...}}.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// SendJSON writes data as JSON with the given status. A nil data writes
// headers only.
func SendJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Debug().Err(err).Int("status", status).Msg("Failed to encode response")
	}
}

// SendError writes a gateway error that is not retryable.
func SendError(w http.ResponseWriter, status int, code, message string) {
	SendErrorDetail(w, status, ErrorDetail{Code: code, Message: message})
}

// SendErrorDetail writes detail as the error body.
func SendErrorDetail(w http.ResponseWriter, status int, detail ErrorDetail) {
	SendJSON(w, status, ErrorResponse{Error: detail})
}
