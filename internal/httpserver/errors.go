package httpserver

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"friendchat/internal/domain"
	"friendchat/internal/security"
	"friendchat/internal/service"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrMissingFields),
		errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrEmailTaken),
		errors.Is(err, service.ErrProfilePicRequired),
		errors.Is(err, service.ErrEmptyMessage),
		errors.Is(err, service.ErrSelfRequest),
		errors.Is(err, security.ErrPasswordTooShort),
		errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrAlreadyFriends),
		errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrNoPendingRequest),
		errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps err to a status and a {"message"} body. Internal errors
// are logged and not echoed to the client.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	status := statusFor(err)
	msg := err.Error()
	switch status {
	case http.StatusInternalServerError:
		log.Error("request failed", zap.Error(err))
		msg = "Internal server error"
	case http.StatusUnauthorized:
		msg = "Unauthorized - Invalid Token"
	}
	writeJSON(w, status, map[string]string{"message": msg})
}
