package response

import (
	"context"
	"errors"
	"net/http"

	"face-attendance/internal/core/auth"
	"face-attendance/internal/domain"
)

var statusText = map[int]string{
	http.StatusBadRequest:            "Bad Request",
	http.StatusUnauthorized:          "Unauthorized",
	http.StatusForbidden:             "Forbidden",
	http.StatusNotFound:              "Not Found",
	http.StatusRequestEntityTooLarge: "Request Entity Too Large",
	http.StatusTooManyRequests:       "Too Many Requests",
	http.StatusInternalServerError:   "Internal Server Error",
	http.StatusServiceUnavailable:    "Service Unavailable",
	http.StatusGatewayTimeout:        "Gateway Timeout",
}

func StatusText(code int) string {
	if s, ok := statusText[code]; ok {
		return s
	}
	return http.StatusText(code)
}

// StatusOf 业务错误 → HTTP 状态码
func StatusOf(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrDuplicateEmail),
		errors.Is(err, domain.ErrInvalidCredentials),
		errors.Is(err, domain.ErrFaceNotRecognized):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// PublicMessage 5xx 不暴露内部错误细节
func PublicMessage(err error) string {
	if code := StatusOf(err); code >= http.StatusInternalServerError {
		return StatusText(code)
	}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return ve.Error()
	}
	for _, known := range []error{
		domain.ErrDuplicateEmail, domain.ErrInvalidCredentials,
		domain.ErrFaceNotRecognized, domain.ErrNotFound, auth.ErrInvalidToken,
	} {
		if errors.Is(err, known) {
			return capitalize(known.Error())
		}
	}
	return err.Error()
}

func capitalize(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
