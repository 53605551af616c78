package transport

import (
	"net/http"

	"marketplace/internal/apperrors"
	"marketplace/internal/domain"
	"marketplace/internal/middleware"
	"marketplace/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

var errInvalidRole = apperrors.Validation("role must be user or admin")

// CreateUserRequest is an admin's request to open an account
type CreateUserRequest struct {
	RegisterRequest
	Role string `json:"role"`
}

// UpdateUserRequest represents a profile update. Omitted optional fields are kept.
type UpdateUserRequest struct {
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	Role     *string `json:"role"`
	Password *string `json:"password"`
	Phone    *string `json:"phone"`
	Address  *string `json:"address"`
}

// UserHandler handles HTTP requests for user management
type UserHandler struct {
	accounts service.AccountService
	logger   *zap.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(accounts service.AccountService, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		accounts: accounts,
		logger:   logger,
	}
}

// RegisterRoutes registers all user routes
func (h *UserHandler) RegisterRoutes(r chi.Router, guards Guards) {
	r.Route("/api/users", func(r chi.Router) {
		r.Use(guards.Auth)

		r.Get("/{id}", h.Get)
		r.Put("/{id}", h.Update)

		r.Group(func(r chi.Router) {
			r.Use(guards.Admin)
			r.Get("/", h.List)
			r.Post("/", h.Create)
			r.Delete("/{id}", h.Delete)
		})
	})
}

// List returns every user, or the users of one role
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	role := domain.Role(r.URL.Query().Get("role"))
	if role != "" && !role.Valid() {
		respondError(w, h.logger, "Invalid role filter", errInvalidRole)
		return
	}

	users, err := h.accounts.ListByRole(r.Context(), middleware.GetSession(r.Context()), role)
	if err != nil {
		respondError(w, h.logger, "Failed to list users", err)
		return
	}

	middleware.RespondWithSuccess(w, http.StatusOK, map[string]interface{}{
		"users": users,
	})
}

// Create opens an account on behalf of an admin
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !decode(w, r, h.logger, &req) {
		return
	}

	role := domain.RoleUser
	if req.Role != "" {
		role = domain.Role(req.Role)
		if !role.Valid() {
			respondError(w, h.logger, "Invalid role", errInvalidRole)
			return
		}
	}

	user, err := h.accounts.CreateUser(r.Context(), middleware.GetSession(r.Context()), req.input(), role)
	if err != nil {
		respondError(w, h.logger, "Failed to create user", err)
		return
	}

	h.logger.Info("User created by admin",
		zap.String("user_id", user.ID.String()),
		zap.String("role", string(user.Role)),
	)
	middleware.RespondWithSuccess(w, http.StatusCreated, map[string]interface{}{
		"user_id": user.ID,
		"user":    user,
	})
}

// Get returns one user. Users may only read their own profile.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, h.logger, "Invalid user id", err)
		return
	}

	sess := middleware.GetSession(r.Context())
	if !sess.IsAdmin() && !sess.Owns(id) {
		respondError(w, h.logger, "User read denied", service.ErrNotPermitted)
		return
	}

	user, err := h.accounts.FindByID(r.Context(), id)
	if err != nil {
		respondError(w, h.logger, "Failed to get user", err)
		return
	}

	middleware.RespondWithSuccess(w, http.StatusOK, map[string]interface{}{
		"user": user,
	})
}

// Update changes a profile. Roles sent by non-admins are ignored.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, h.logger, "Invalid user id", err)
		return
	}

	var req UpdateUserRequest
	if !decode(w, r, h.logger, &req) {
		return
	}

	input := service.UpdateProfileInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Phone:    req.Phone,
		Address:  req.Address,
	}
	if req.Role != nil {
		role := domain.Role(*req.Role)
		input.Role = &role
	}

	user, err := h.accounts.UpdateProfile(r.Context(), middleware.GetSession(r.Context()), id, input)
	if err != nil {
		respondError(w, h.logger, "Failed to update user", err)
		return
	}

	middleware.RespondWithSuccess(w, http.StatusOK, map[string]interface{}{
		"user": user,
	})
}

// Delete removes an account other than the caller's own
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, h.logger, "Invalid user id", err)
		return
	}

	if err := h.accounts.Delete(r.Context(), middleware.GetSession(r.Context()), id); err != nil {
		respondError(w, h.logger, "Failed to delete user", err)
		return
	}

	h.logger.Info("User deleted", zap.String("user_id", id.String()))
	middleware.RespondWithSuccess(w, http.StatusOK, map[string]interface{}{
		"message": "user deleted",
	})
}
