package middleware

import (
	"context"
	"net/http"
	"strings"

	"marketplace/internal/session"

	"go.uber.org/zap"
)

type contextKey string

const SessionKey contextKey = "session"

// SessionLoader resolves a client token to its session
type SessionLoader interface {
	Load(ctx context.Context, token string) (*session.Session, error)
}

// SessionMiddleware loads the caller's session from the session cookie or a
// Bearer token and stores it in the request context. Requests without a
// valid token carry an anonymous session.
func SessionMiddleware(loader SessionLoader, cookieName string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := tokenFromRequest(r, cookieName)

			sess, err := loader.Load(r.Context(), token)
			if err != nil {
				// the caller continues as anonymous
				logger.Error("Failed to load session", zap.Error(err))
			}
			if sess == nil {
				sess = session.Anonymous()
			}

			if sess.IsAuthenticated() {
				logger.Debug("Session loaded",
					zap.String("user_id", sess.UserID.String()),
					zap.String("role", string(sess.Role)),
				)
			}

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
		})
	}
}

// tokenFromRequest prefers the Authorization header over the cookie
func tokenFromRequest(r *http.Request, cookieName string) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
		return ""
	}

	if cookie, err := r.Cookie(cookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// WithSession returns a copy of ctx carrying sess
func WithSession(ctx context.Context, sess *session.Session) context.Context {
	return context.WithValue(ctx, SessionKey, sess)
}

// GetSession returns the request's session, anonymous when none was loaded
func GetSession(ctx context.Context) *session.Session {
	if sess, ok := ctx.Value(SessionKey).(*session.Session); ok && sess != nil {
		return sess
	}
	return session.Anonymous()
}

// RequireAuth rejects anonymous callers with 401
func RequireAuth(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !GetSession(r.Context()).IsAuthenticated() {
				logger.Debug("Unauthenticated request", zap.String("path", r.URL.Path))
				RespondWithError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
