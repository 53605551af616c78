package transport

import (
	"net/http"
	"strconv"

	"marketplace/internal/apperrors"
	"marketplace/internal/domain"
	"marketplace/internal/middleware"
	"marketplace/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var errInvalidRecent = apperrors.Validation("recent must be a positive number")

// CreateOrderRequest places an order from the caller's cart
type CreateOrderRequest struct {
	ShippingAddress string `json:"shipping_address"`
}

// UpdateOrderStatusRequest changes an order's status. ID is optional and must
// match the url when sent.
type UpdateOrderStatusRequest struct {
	ID     string `json:"id" validate:"omitempty,uuid"`
	Status string `json:"status" validate:"required"`
}

// OrderHandler serves order placement, lookup and status changes
type OrderHandler struct {
	orders service.OrderService
	logger *zap.Logger
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(orders service.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, logger: logger}
}

// RegisterRoutes registers the order routes
func (h *OrderHandler) RegisterRoutes(r chi.Router, guards Guards) {
	r.Route("/api/orders", func(r chi.Router) {
		r.Use(guards.Auth)
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.With(guards.Admin).Put("/{id}/status", h.UpdateStatus)
	})
}

// Create turns the caller's cart into an order
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if !decode(w, r, h.logger, &req) {
		return
	}

	userID := middleware.GetSession(r.Context()).UserID
	order, err := h.orders.CreateFromCart(r.Context(), userID, req.ShippingAddress)
	if err != nil {
		respondError(w, h.logger, "Failed to create order", err)
		return
	}

	items, err := h.orders.ListItems(r.Context(), order.ID)
	if err != nil {
		respondError(w, h.logger, "Failed to load order items", err)
		return
	}

	h.logger.Info("Order created",
		zap.String("order_id", order.ID.String()),
		zap.String("user_id", userID.String()),
		zap.String("total", order.TotalAmount.StringFixed(2)),
	)
	middleware.RespondWithSuccess(w, http.StatusCreated, map[string]interface{}{
		"order_id": order.ID,
		"order":    order,
		"items":    items,
	})
}

// List returns every order to admins and the caller's own orders to users.
// Admins may filter by status or ask for the most recent orders.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := middleware.GetSession(ctx)
	query := r.URL.Query()

	status := domain.OrderStatus(query.Get("status"))
	if status != "" && !status.Valid() {
		respondError(w, h.logger, "Invalid status filter", service.ErrInvalidStatus)
		return
	}

	var (
		orders []*domain.Order
		err    error
	)
	switch {
	case !sess.IsAdmin():
		orders, err = h.orders.ListByUser(ctx, sess.UserID)
		if err == nil && status != "" {
			orders = filterByStatus(orders, status)
		}
	case status != "":
		orders, err = h.orders.ListByStatus(ctx, status)
	case query.Get("recent") != "":
		limit, convErr := strconv.Atoi(query.Get("recent"))
		if convErr != nil || limit < 1 {
			respondError(w, h.logger, "Invalid recent limit", errInvalidRecent)
			return
		}
		orders, err = h.orders.ListRecent(ctx, limit)
	default:
		orders, err = h.orders.ListAll(ctx)
	}
	if err != nil {
		respondError(w, h.logger, "Failed to list orders", err)
		return
	}

	middleware.RespondWithSuccess(w, http.StatusOK, map[string]interface{}{
		"orders": orders,
	})
}

// Get returns an order with its items to its owner or an admin
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, h.logger, "Invalid order id", err)
		return
	}

	order, err := h.orders.FindByID(r.Context(), id)
	if err != nil {
		respondError(w, h.logger, "Failed to get order", err)
		return
	}

	sess := middleware.GetSession(r.Context())
	if !sess.IsAdmin() && !sess.Owns(order.UserID) {
		respondError(w, h.logger, "Order read denied", service.ErrNotPermitted)
		return
	}

	items, err := h.orders.ListItems(r.Context(), id)
	if err != nil {
		respondError(w, h.logger, "Failed to load order items", err)
		return
	}

	middleware.RespondWithSuccess(w, http.StatusOK, map[string]interface{}{
		"order": order,
		"items": items,
	})
}

// UpdateStatus moves an order to a new status; cancelling returns its items to stock
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, h.logger, "Invalid order id", err)
		return
	}

	var req UpdateOrderStatusRequest
	if !decode(w, r, h.logger, &req) {
		return
	}
	if req.ID != "" && uuid.MustParse(req.ID) != id {
		respondError(w, h.logger, "Order id mismatch", errIDMismatch)
		return
	}

	order, err := h.orders.UpdateStatus(r.Context(), id, domain.OrderStatus(req.Status))
	if err != nil {
		respondError(w, h.logger, "Failed to update order status", err)
		return
	}

	h.logger.Info("Order status updated",
		zap.String("order_id", id.String()),
		zap.String("status", string(order.Status)),
	)
	middleware.RespondWithSuccess(w, http.StatusOK, map[string]interface{}{
		"order": order,
	})
}

func filterByStatus(orders []*domain.Order, status domain.OrderStatus) []*domain.Order {
	out := make([]*domain.Order, 0, len(orders))
	for _, o := range orders {
		if o.Status == status {
			out = append(out, o)
		}
	}
	return out
}
