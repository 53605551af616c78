package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"marketplace/internal/apperrors"

	"go.uber.org/zap"
)

// ErrorResponse represents a structured error response
type ErrorResponse struct {
	Success   bool                   `json:"success"`
	Message   string                 `json:"message"`
	Code      string                 `json:"code"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp string                 `json:"timestamp"`
}

// RespondWithError sends a structured error response
func RespondWithError(w http.ResponseWriter, statusCode int, message string) {
	RespondWithErrorDetails(w, statusCode, message, nil)
}

// RespondWithErrorDetails sends a structured error response with additional details
func RespondWithErrorDetails(w http.ResponseWriter, statusCode int, message string, details map[string]interface{}) {
	writeError(w, statusCode, codeForStatus(statusCode), message, details)
}

// RespondWithAppError sends err with the status and code of its kind.
// Untyped errors are reported as a generic internal error.
func RespondWithAppError(w http.ResponseWriter, err error) {
	writeError(w, apperrors.HTTPStatus(err), string(apperrors.KindOf(err)), apperrors.PublicMessage(err), nil)
}

func writeError(w http.ResponseWriter, statusCode int, code, message string, details map[string]interface{}) {
	response := ErrorResponse{
		Success:   false,
		Message:   message,
		Code:      code,
		Details:   details,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	RespondWithJSON(w, statusCode, response)
}

func codeForStatus(statusCode int) string {
	switch statusCode {
	case http.StatusBadRequest:
		return string(apperrors.KindValidation)
	case http.StatusUnauthorized:
		return string(apperrors.KindUnauthorized)
	case http.StatusForbidden:
		return string(apperrors.KindForbidden)
	case http.StatusNotFound:
		return string(apperrors.KindNotFound)
	case http.StatusConflict:
		return string(apperrors.KindConflict)
	case http.StatusUnprocessableEntity:
		return string(apperrors.KindBusinessRule)
	case http.StatusTooManyRequests:
		return "RATE_LIMITED"
	}
	if statusCode >= http.StatusInternalServerError {
		return string(apperrors.KindInternal)
	}
	return "ERROR"
}

// RespondWithValidationErrors sends validation error response
func RespondWithValidationErrors(w http.ResponseWriter, errors []ValidationError) {
	details := make(map[string]interface{})
	details["validation_errors"] = errors

	RespondWithErrorDetails(w, http.StatusBadRequest, "validation failed", details)
}

// ErrorHandlingMiddleware catches panics and converts them to 500 errors
func ErrorHandlingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}

					logger.Error("Panic recovered",
						zap.Any("error", err),
						zap.String("path", r.URL.Path),
						zap.String("method", r.Method),
					)

					RespondWithError(w, http.StatusInternalServerError, "internal server error")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// RespondWithJSON sends a JSON response
func RespondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

// RespondWithSuccess sends fields merged into {"success": true}
func RespondWithSuccess(w http.ResponseWriter, statusCode int, fields map[string]interface{}) {
	body := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		body[k] = v
	}
	body["success"] = true

	RespondWithJSON(w, statusCode, body)
}
