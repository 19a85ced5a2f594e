package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/MayankTamakuwala/TranscriBelt/internal/services"
)

// StatusCode maps an error to the HTTP status returned to clients.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrUnsupportedMedia), errors.Is(err, ErrEmptyUpload):
		return http.StatusUnsupportedMediaType
	}
	switch services.KindOf(err) {
	case services.KindValidation:
		return http.StatusBadRequest
	case services.KindThrottle:
		return http.StatusTooManyRequests
	case services.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// ClientMessage renders err for a response body. Unexpected errors are not
// echoed.
func ClientMessage(err error) string {
	switch services.KindOf(err) {
	case services.KindValidation, services.KindThrottle, services.KindNotFound:
		if msg := strings.TrimSpace(services.UserMessage(err)); msg != "" {
			return msg
		}
	case services.KindTransient:
		return "service temporarily unavailable"
	}
	return "internal error"
}
