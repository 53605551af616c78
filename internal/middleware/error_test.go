package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"marketplace/internal/apperrors"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errorStatusCodes = []int{
	http.StatusBadRequest,
	http.StatusUnauthorized,
	http.StatusForbidden,
	http.StatusNotFound,
	http.StatusConflict,
	http.StatusUnprocessableEntity,
	http.StatusTooManyRequests,
	http.StatusInternalServerError,
	http.StatusServiceUnavailable,
}

// Every error body carries success=false, the message, a code and an RFC3339 timestamp
func TestProperty_ErrorsHaveConsistentStructure(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("all error responses have consistent structure", prop.ForAll(
		func(message string, pick int) bool {
			statusCode := errorStatusCodes[pick%len(errorStatusCodes)]

			w := httptest.NewRecorder()
			RespondWithError(w, statusCode, message)

			if w.Code != statusCode || w.Header().Get("Content-Type") != "application/json" {
				return false
			}

			var raw map[string]interface{}
			if err := json.Unmarshal(w.Body.Bytes(), &raw); err != nil {
				return false
			}
			if success, ok := raw["success"].(bool); !ok || success {
				return false
			}

			var response ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
				return false
			}
			if response.Code == "" || response.Message != message {
				return false
			}
			_, err := time.Parse(time.RFC3339, response.Timestamp)
			return err == nil
		},
		gen.AlphaString().SuchThat(func(s string) bool { return len(s) > 0 }),
		gen.IntRange(0, 100),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Error responses with details include them in the body
func TestProperty_ErrorDetailsAreIncluded(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("error responses with details include them", prop.ForAll(
		func(detailKey string, detailValue string) bool {
			w := httptest.NewRecorder()
			RespondWithErrorDetails(w, http.StatusBadRequest, "bad input", map[string]interface{}{
				detailKey: detailValue,
			})

			var response ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
				return false
			}

			val, ok := response.Details[detailKey]
			return ok && val == detailValue
		},
		gen.Identifier(),
		gen.AlphaString(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestRespondWithAppError_UsesKindStatus(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    apperrors.Kind
		wantMessage string
	}{
		{"validation", apperrors.Validation("price must be a non-negative number"), http.StatusBadRequest, apperrors.KindValidation, "price must be a non-negative number"},
		{"unauthorized", apperrors.Unauthorized("invalid email or password"), http.StatusUnauthorized, apperrors.KindUnauthorized, "invalid email or password"},
		{"forbidden", apperrors.Forbidden("not permitted"), http.StatusForbidden, apperrors.KindForbidden, "not permitted"},
		{"not found", apperrors.NotFound("product not found"), http.StatusNotFound, apperrors.KindNotFound, "product not found"},
		{"conflict", apperrors.Conflict("email is already registered"), http.StatusConflict, apperrors.KindConflict, "email is already registered"},
		{"business rule", apperrors.BusinessRule("cart is empty"), http.StatusUnprocessableEntity, apperrors.KindBusinessRule, "cart is empty"},
		{"wrapped", fmt.Errorf("failed to load: %w", apperrors.NotFound("order not found")), http.StatusNotFound, apperrors.KindNotFound, "order not found"},
		{"untyped", errors.New("pq: connection refused"), http.StatusInternalServerError, apperrors.KindInternal, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			RespondWithAppError(w, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)

			var response ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.False(t, response.Success)
			assert.Equal(t, string(tt.wantCode), response.Code)
			assert.Equal(t, tt.wantMessage, response.Message)
		})
	}
}

func TestRespondWithValidationErrors(t *testing.T) {
	w := httptest.NewRecorder()
	RespondWithValidationErrors(w, []ValidationError{{Field: "email", Message: "Invalid email format"}})

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var response ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "validation failed", response.Message)
	assert.Equal(t, string(apperrors.KindValidation), response.Code)
	assert.Contains(t, response.Details, "validation_errors")
}

func TestRespondWithSuccess_AddsSuccessFlag(t *testing.T) {
	w := httptest.NewRecorder()
	RespondWithSuccess(w, http.StatusCreated, map[string]interface{}{"id": "abc", "success": false})

	assert.Equal(t, http.StatusCreated, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "abc", body["id"])
}

// JSON payloads round through RespondWithJSON unchanged
func TestProperty_JSONResponsesAreValid(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("JSON responses are valid and parseable", prop.ForAll(
		func(data map[string]string) bool {
			w := httptest.NewRecorder()
			RespondWithJSON(w, http.StatusOK, data)

			var result map[string]string
			if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
				return false
			}
			for k, v := range data {
				if result[k] != v {
					return false
				}
			}
			return w.Header().Get("Content-Type") == "application/json"
		},
		gen.MapOf(gen.AlphaString(), gen.AlphaString()),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestErrorHandlingMiddleware_RecoversPanics(t *testing.T) {
	handler := ErrorHandlingMiddleware(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/orders", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var response ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "internal server error", response.Message)
}
