package transport

import (
	"net/http"
	"time"

	"marketplace/internal/middleware"
	"marketplace/internal/service"
	"marketplace/internal/session"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// TokenIssuer signs session tokens for clients
type TokenIssuer interface {
	Token(sess *session.Session) (string, error)
	TTL() time.Duration
}

// CookieConfig controls the session cookie
type CookieConfig struct {
	Name   string
	Secure bool
}

// RegisterRequest represents the registration request payload
type RegisterRequest struct {
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Phone    *string `json:"phone"`
	Address  *string `json:"address"`
}

func (req RegisterRequest) input() service.RegisterInput {
	return service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Phone:    req.Phone,
		Address:  req.Address,
	}
}

// LoginRequest represents the login request payload
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthHandler handles registration and the session lifecycle
type AuthHandler struct {
	accounts service.AccountService
	tokens   TokenIssuer
	cookie   CookieConfig
	logger   *zap.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(accounts service.AccountService, tokens TokenIssuer, cookie CookieConfig, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		accounts: accounts,
		tokens:   tokens,
		cookie:   cookie,
		logger:   logger,
	}
}

// RegisterRoutes registers the auth routes. loginLimiter wraps the login endpoint.
func (h *AuthHandler) RegisterRoutes(r chi.Router, guards Guards, loginLimiter func(http.Handler) http.Handler) {
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.With(loginLimiter).Post("/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(guards.Auth)
			r.Post("/logout", h.Logout)
			r.Get("/me", h.Me)
		})
	})
}

// Register handles user registration
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decode(w, r, h.logger, &req) {
		return
	}

	user, err := h.accounts.Register(r.Context(), req.input())
	if err != nil {
		respondError(w, h.logger, "Registration failed", err)
		return
	}

	h.logger.Info("User registered", zap.String("user_id", user.ID.String()))
	middleware.RespondWithSuccess(w, http.StatusCreated, map[string]interface{}{
		"user_id": user.ID,
		"user":    user,
	})
}

// Login verifies credentials, rotates the session and hands the token to the client
// both as a cookie and in the body.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decode(w, r, h.logger, &req) {
		return
	}

	sess, user, err := h.accounts.Authenticate(r.Context(), middleware.GetSession(r.Context()), req.Email, req.Password)
	if err != nil {
		respondError(w, h.logger, "Login failed", err)
		return
	}

	token, err := h.tokens.Token(sess)
	if err != nil {
		respondError(w, h.logger, "Failed to issue session token", err)
		return
	}

	http.SetCookie(w, h.sessionCookie(token, int(h.tokens.TTL().Seconds())))

	h.logger.Info("User logged in", zap.String("user_id", user.ID.String()))
	middleware.RespondWithSuccess(w, http.StatusOK, map[string]interface{}{
		"token":      token,
		"expires_in": int(h.tokens.TTL().Seconds()),
		"user":       user,
	})
}

// Logout destroys the current session and expires the cookie
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())
	userID := sess.UserID

	if err := h.accounts.EndSession(r.Context(), sess); err != nil {
		respondError(w, h.logger, "Logout failed", err)
		return
	}

	http.SetCookie(w, h.sessionCookie("", -1))

	h.logger.Info("User logged out", zap.String("user_id", userID.String()))
	middleware.RespondWithSuccess(w, http.StatusOK, map[string]interface{}{
		"message": "logged out",
	})
}

// Me returns the logged in user's profile
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())

	user, err := h.accounts.FindByID(r.Context(), sess.UserID)
	if err != nil {
		respondError(w, h.logger, "Failed to load current user", err)
		return
	}

	middleware.RespondWithSuccess(w, http.StatusOK, map[string]interface{}{
		"user": user,
	})
}

func (h *AuthHandler) sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     h.cookie.Name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
