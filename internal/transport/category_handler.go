package transport

import (
	"net/http"

	"marketplace/internal/middleware"
	"marketplace/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// CreateCategoryRequest represents a new category
type CreateCategoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CategoryHandler serves product categories
type CategoryHandler struct {
	catalog service.CatalogService
	logger  *zap.Logger
}

// NewCategoryHandler creates a new CategoryHandler
func NewCategoryHandler(catalog service.CatalogService, logger *zap.Logger) *CategoryHandler {
	return &CategoryHandler{catalog: catalog, logger: logger}
}

// RegisterRoutes registers the category routes
func (h *CategoryHandler) RegisterRoutes(r chi.Router, guards Guards) {
	r.Route("/api/categories", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.With(guards.Auth, guards.Admin).Post("/", h.Create)
	})
}

func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.ListCategories(r.Context())
	if err != nil {
		respondError(w, h.logger, "Failed to list categories", err)
		return
	}

	middleware.RespondWithSuccess(w, http.StatusOK, map[string]interface{}{
		"categories": categories,
	})
}

func (h *CategoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, h.logger, "Invalid category id", err)
		return
	}

	category, err := h.catalog.FindCategory(r.Context(), id)
	if err != nil {
		respondError(w, h.logger, "Failed to get category", err)
		return
	}

	middleware.RespondWithSuccess(w, http.StatusOK, map[string]interface{}{
		"category": category,
	})
}

func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateCategoryRequest
	if !decode(w, r, h.logger, &req) {
		return
	}

	category, err := h.catalog.CreateCategory(r.Context(), req.Name, req.Description)
	if err != nil {
		respondError(w, h.logger, "Failed to create category", err)
		return
	}

	h.logger.Info("Category created", zap.String("category_id", category.ID.String()))
	middleware.RespondWithSuccess(w, http.StatusCreated, map[string]interface{}{
		"category_id": category.ID,
		"category":    category,
	})
}
