package transport

import (
	"net/http"

	"marketplace/internal/middleware"
	"marketplace/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AddCartItemRequest puts a product into the cart. An omitted quantity adds one.
type AddCartItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  *int   `json:"quantity"`
}

// UpdateCartItemRequest sets the quantity of a line; 0 removes it
type UpdateCartItemRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

// CartHandler serves the logged in user's cart
type CartHandler struct {
	carts  service.CartService
	logger *zap.Logger
}

// NewCartHandler creates a new CartHandler
func NewCartHandler(carts service.CartService, logger *zap.Logger) *CartHandler {
	return &CartHandler{carts: carts, logger: logger}
}

// RegisterRoutes registers the cart routes
func (h *CartHandler) RegisterRoutes(r chi.Router, guards Guards) {
	r.Route("/api/cart", func(r chi.Router) {
		r.Use(guards.Auth)
		r.Get("/", h.Get)
		r.Delete("/", h.Clear)
		r.Post("/items", h.AddItem)
		r.Put("/items/{productID}", h.UpdateItem)
		r.Delete("/items/{productID}", h.RemoveItem)
	})
}

// Get returns the cart lines with live prices and the cart total
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.respondWithCart(w, r, http.StatusOK)
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddCartItemRequest
	if !decode(w, r, h.logger, &req) {
		return
	}

	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	userID := middleware.GetSession(r.Context()).UserID
	if err := h.carts.AddItem(r.Context(), userID, uuid.MustParse(req.ProductID), quantity); err != nil {
		respondError(w, h.logger, "Failed to add cart item", err)
		return
	}

	h.respondWithCart(w, r, http.StatusCreated)
}

func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	productID, err := pathID(r, "productID")
	if err != nil {
		respondError(w, h.logger, "Invalid product id", err)
		return
	}

	var req UpdateCartItemRequest
	if !decode(w, r, h.logger, &req) {
		return
	}

	userID := middleware.GetSession(r.Context()).UserID
	if err := h.carts.UpdateQuantity(r.Context(), userID, productID, *req.Quantity); err != nil {
		respondError(w, h.logger, "Failed to update cart item", err)
		return
	}

	h.respondWithCart(w, r, http.StatusOK)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	productID, err := pathID(r, "productID")
	if err != nil {
		respondError(w, h.logger, "Invalid product id", err)
		return
	}

	userID := middleware.GetSession(r.Context()).UserID
	if err := h.carts.RemoveItem(r.Context(), userID, productID); err != nil {
		respondError(w, h.logger, "Failed to remove cart item", err)
		return
	}

	h.respondWithCart(w, r, http.StatusOK)
}

func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetSession(r.Context()).UserID
	if err := h.carts.Clear(r.Context(), userID); err != nil {
		respondError(w, h.logger, "Failed to clear cart", err)
		return
	}

	h.respondWithCart(w, r, http.StatusOK)
}

func (h *CartHandler) respondWithCart(w http.ResponseWriter, r *http.Request, status int) {
	userID := middleware.GetSession(r.Context()).UserID

	items, err := h.carts.Items(r.Context(), userID)
	if err != nil {
		respondError(w, h.logger, "Failed to load cart", err)
		return
	}
	total, err := h.carts.Total(r.Context(), userID)
	if err != nil {
		respondError(w, h.logger, "Failed to total cart", err)
		return
	}

	middleware.RespondWithSuccess(w, status, map[string]interface{}{
		"items": items,
		"total": total,
	})
}
