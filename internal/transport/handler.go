package transport

import (
	"net/http"

	"marketplace/internal/apperrors"
	"marketplace/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Guards are the access gates handlers attach to their protected routes
type Guards struct {
	Auth  func(http.Handler) http.Handler
	Admin func(http.Handler) http.Handler
}

var (
	errInvalidID  = apperrors.Validation("invalid id")
	errIDMismatch = apperrors.Validation("id in body does not match the url")
)

// pathID parses the chi url parameter name as a uuid
func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, errInvalidID
	}
	return id, nil
}

// respondError writes err and logs failures that are not the caller's fault
func respondError(w http.ResponseWriter, logger *zap.Logger, msg string, err error) {
	if apperrors.KindOf(err) == apperrors.KindInternal {
		logger.Error(msg, zap.Error(err))
	} else {
		logger.Debug(msg, zap.Error(err))
	}
	middleware.RespondWithAppError(w, err)
}

// decode reads a JSON body into v, responding and returning false on failure
func decode(w http.ResponseWriter, r *http.Request, logger *zap.Logger, v interface{}) bool {
	if err := middleware.DecodeAndValidate(r, v); err != nil {
		logger.Debug("Request validation failed", zap.String("path", r.URL.Path), zap.Error(err))
		middleware.RespondWithDecodeError(w, err)
		return false
	}
	return true
}
