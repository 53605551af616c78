package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"marketplace/internal/domain"
	"marketplace/internal/session"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testCookie = "test_session"

func newTestManager(t *testing.T) *session.Manager {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return session.NewManager(session.NewRedisStore(client, time.Hour, "test_session"), "test-secret", time.Hour)
}

func startSession(t *testing.T, manager *session.Manager, role domain.Role) (*session.Session, string) {
	t.Helper()
	user := &domain.User{ID: uuid.New(), Name: "Tester", Email: "tester@example.com", Role: role}
	sess, err := manager.Start(context.Background(), nil, user)
	require.NoError(t, err)
	token, err := manager.Token(sess)
	require.NoError(t, err)
	return sess, token
}

// captureSession records the session each request reached the handler with
func captureSession(got **session.Session) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = GetSession(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

// Protected routes reject anonymous callers regardless of path and method
func TestProperty_ProtectedEndpointsRejectAnonymousCallers(t *testing.T) {
	manager := newTestManager(t)
	logger := zap.NewNop()
	properties := gopter.NewProperties(nil)

	properties.Property("requests without a session are rejected with 401", prop.ForAll(
		func(pathSuffix string, method string) bool {
			handler := SessionMiddleware(manager, testCookie, logger)(
				RequireAuth(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusOK)
				})),
			)

			path := "/" + pathSuffix
			if path == "/" {
				path = "/test"
			}

			req := httptest.NewRequest(method, path, nil)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			return w.Code == http.StatusUnauthorized
		},
		gen.AlphaString(),
		gen.OneConstOf("GET", "POST", "PUT", "DELETE"),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Arbitrary garbage tokens never produce an authenticated session
func TestProperty_GarbageTokensLoadAnonymousSession(t *testing.T) {
	manager := newTestManager(t)
	logger := zap.NewNop()
	properties := gopter.NewProperties(nil)

	properties.Property("unknown tokens are treated as anonymous", prop.ForAll(
		func(token string, viaCookie bool) bool {
			var got *session.Session
			handler := SessionMiddleware(manager, testCookie, logger)(captureSession(&got))

			req := httptest.NewRequest("GET", "/test", nil)
			if viaCookie {
				req.AddCookie(&http.Cookie{Name: testCookie, Value: token})
			} else {
				req.Header.Set("Authorization", "Bearer "+token)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			return w.Code == http.StatusOK && got != nil && !got.IsAuthenticated()
		},
		gen.AlphaString(),
		gen.Bool(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestSessionMiddleware_LoadsFromCookieAndBearer(t *testing.T) {
	manager := newTestManager(t)
	logger := zap.NewNop()
	sess, token := startSession(t, manager, domain.RoleUser)

	t.Run("cookie", func(t *testing.T) {
		var got *session.Session
		handler := SessionMiddleware(manager, testCookie, logger)(captureSession(&got))

		req := httptest.NewRequest("GET", "/test", nil)
		req.AddCookie(&http.Cookie{Name: testCookie, Value: token})
		handler.ServeHTTP(httptest.NewRecorder(), req)

		require.NotNil(t, got)
		assert.True(t, got.IsAuthenticated())
		assert.Equal(t, sess.UserID, got.UserID)
	})

	t.Run("bearer", func(t *testing.T) {
		var got *session.Session
		handler := SessionMiddleware(manager, testCookie, logger)(captureSession(&got))

		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		handler.ServeHTTP(httptest.NewRecorder(), req)

		require.NotNil(t, got)
		assert.Equal(t, sess.ID, got.ID)
	})

	t.Run("malformed authorization header wins over cookie", func(t *testing.T) {
		var got *session.Session
		handler := SessionMiddleware(manager, testCookie, logger)(captureSession(&got))

		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("Authorization", "Token "+token)
		req.AddCookie(&http.Cookie{Name: testCookie, Value: token})
		handler.ServeHTTP(httptest.NewRecorder(), req)

		require.NotNil(t, got)
		assert.False(t, got.IsAuthenticated())
	})

	t.Run("destroyed session", func(t *testing.T) {
		other, otherToken := startSession(t, manager, domain.RoleUser)
		require.NoError(t, manager.Destroy(context.Background(), other))

		var got *session.Session
		handler := SessionMiddleware(manager, testCookie, logger)(captureSession(&got))

		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("Authorization", "Bearer "+otherToken)
		handler.ServeHTTP(httptest.NewRecorder(), req)

		require.NotNil(t, got)
		assert.False(t, got.IsAuthenticated())
	})
}

type failingLoader struct{}

func (failingLoader) Load(ctx context.Context, token string) (*session.Session, error) {
	return nil, errors.New("redis unavailable")
}

func TestSessionMiddleware_StoreFailureFallsBackToAnonymous(t *testing.T) {
	var got *session.Session
	handler := SessionMiddleware(failingLoader{}, testCookie, zap.NewNop())(captureSession(&got))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, got)
	assert.False(t, got.IsAuthenticated())
}

func TestGetSession_DefaultsToAnonymous(t *testing.T) {
	sess := GetSession(context.Background())
	require.NotNil(t, sess)
	assert.False(t, sess.IsAuthenticated())
	assert.False(t, sess.IsAdmin())
}

func TestRequireAdmin(t *testing.T) {
	manager := newTestManager(t)
	logger := zap.NewNop()
	_, userToken := startSession(t, manager, domain.RoleUser)
	_, adminToken := startSession(t, manager, domain.RoleAdmin)

	handler := SessionMiddleware(manager, testCookie, logger)(
		RequireAdmin(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})),
	)

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"anonymous", "", http.StatusUnauthorized},
		{"user", userToken, http.StatusForbidden},
		{"admin", adminToken, http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("DELETE", "/api/products/1", nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestRequireRole_AllowsListedRoles(t *testing.T) {
	logger := zap.NewNop()
	handler := RequireRole([]domain.Role{domain.RoleUser, domain.RoleAdmin}, logger)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	)

	for _, role := range []domain.Role{domain.RoleUser, domain.RoleAdmin} {
		sess := &session.Session{ID: "s", UserID: uuid.New(), Role: role, Authenticated: true}
		req := httptest.NewRequest("GET", "/test", nil).WithContext(WithSession(context.Background(), sess))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, string(role))
	}
}
