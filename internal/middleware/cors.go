package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// CORSMiddleware configures CORS settings. Development without an explicit
// list accepts any web origin; production without one accepts none.
func CORSMiddleware(allowedOrigins []string, isDevelopment bool) func(http.Handler) http.Handler {
	options := cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}

	if len(allowedOrigins) == 0 {
		if isDevelopment {
			options.AllowedOrigins = []string{"http://*", "https://*"}
		} else {
			// an empty list would allow every origin
			options.AllowOriginFunc = func(r *http.Request, origin string) bool { return false }
		}
	}

	return cors.Handler(options)
}

// DefaultMiddlewareStack returns the chi middleware every request passes
// through before logging. Panics are recovered by ErrorHandlingMiddleware.
func DefaultMiddlewareStack() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.RealIP,
		middleware.Compress(5),
	}
}
