package web

import (
	"errors"
	"net/http"

	"bedrock-chatbot/internal/domain"
	"bedrock-chatbot/internal/infra/i18n"
)

// errorView maps a turn error to an HTTP status and a message safe to show.
func (s *Server) errorView(err error) (int, string) {
	return statusOf(err), s.tr.T(i18n.ErrorKey(err))
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrSessionBusy):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrMemorySummarization):
		return http.StatusInternalServerError
	case errors.Is(err, domain.ErrAuthentication):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrRequestTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
