package v1

import (
	"context"
	"errors"
	"net/http"

	"qwenlink/internal/chat"
	"qwenlink/internal/embedding"
	"qwenlink/internal/gateway/handlers"
	"qwenlink/internal/provider"
	"qwenlink/internal/storage"
	"qwenlink/pkg/logger"
)

// Classify maps an orchestrator error to an HTTP status and error detail.
func Classify(err error) (int, *ErrorDetail) {
	var convErr *chat.SettingsConversionError
	var provErr *provider.ProviderError
	var countErr *embedding.CountMismatchError

	switch {
	case errors.As(err, &convErr), errors.Is(err, chat.ErrNilHistory):
		return http.StatusBadRequest, &ErrorDetail{Code: handlers.ErrCodeInvalidRequest, Message: err.Error()}
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, &ErrorDetail{Code: handlers.ErrCodeNotFound, Message: err.Error()}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, &ErrorDetail{Code: handlers.ErrCodeGatewayTimeout, Message: err.Error(), Retryable: true}
	case errors.As(err, &provErr):
		return providerStatus(provErr.Code), &ErrorDetail{
			Code:      string(provErr.Code),
			Message:   provErr.Message,
			Provider:  provErr.Provider,
			Retryable: provErr.Retryable,
			RequestID: provErr.RequestID,
		}
	case errors.Is(err, chat.ErrNoChoices), errors.As(err, &countErr):
		return http.StatusBadGateway, &ErrorDetail{Code: handlers.ErrCodeUpstreamError, Message: err.Error()}
	default:
		return http.StatusInternalServerError, &ErrorDetail{Code: handlers.ErrCodeInternalError, Message: err.Error()}
	}
}

func providerStatus(code provider.ErrorCode) int {
	switch code {
	case provider.ErrCodeRateLimited, provider.ErrCodeQuotaExceeded:
		return http.StatusTooManyRequests
	case provider.ErrCodeInvalidRequest, provider.ErrCodeContextWindowExceeded,
		provider.ErrCodeContentFiltered, provider.ErrCodeModelNotFound:
		return http.StatusBadRequest
	case provider.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case provider.ErrCodeServiceUnavailable, provider.ErrCodeNetworkError:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func sendChatError(w http.ResponseWriter, err error) {
	status, detail := Classify(err)
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Int("status", status).Msg("Chat request failed")
	}
	handlers.SendErrorDetail(w, status, *detail)
}
