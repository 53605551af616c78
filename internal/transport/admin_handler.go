package transport

import (
	"context"
	"net/http"
	"strconv"

	"marketplace/internal/apperrors"
	"marketplace/internal/domain"
	"marketplace/internal/middleware"
	"marketplace/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

var errInvalidThreshold = apperrors.Validation("low_stock must be a non-negative number")

// AdminHandler serves the dashboard aggregates
type AdminHandler struct {
	accounts service.AccountService
	catalog  service.CatalogService
	orders   service.OrderService
	logger   *zap.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(accounts service.AccountService, catalog service.CatalogService, orders service.OrderService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		accounts: accounts,
		catalog:  catalog,
		orders:   orders,
		logger:   logger,
	}
}

// RegisterRoutes registers the admin routes
func (h *AdminHandler) RegisterRoutes(r chi.Router, guards Guards) {
	r.With(guards.Auth, guards.Admin).Get("/api/admin/stats", h.Stats)
}

// Stats reports counts, revenue, low stock products and recent orders.
// low_stock sets the stock threshold, recent the number of orders.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	threshold := domain.DefaultLowStockThreshold
	if raw := query.Get("low_stock"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(w, h.logger, "Invalid low stock threshold", errInvalidThreshold)
			return
		}
		threshold = n
	}

	recent := domain.DefaultRecentOrders
	if raw := query.Get("recent"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondError(w, h.logger, "Invalid recent limit", errInvalidRecent)
			return
		}
		recent = n
	}

	stats, err := h.collect(r.Context(), threshold, recent)
	if err != nil {
		respondError(w, h.logger, "Failed to collect stats", err)
		return
	}

	middleware.RespondWithSuccess(w, http.StatusOK, map[string]interface{}{
		"stats": stats,
	})
}

func (h *AdminHandler) collect(ctx context.Context, threshold, recent int) (map[string]interface{}, error) {
	users, err := h.accounts.Count(ctx)
	if err != nil {
		return nil, err
	}
	usersByRole := map[domain.Role]int{}
	for _, role := range []domain.Role{domain.RoleUser, domain.RoleAdmin} {
		if usersByRole[role], err = h.accounts.CountByRole(ctx, role); err != nil {
			return nil, err
		}
	}

	products, err := h.catalog.Count(ctx)
	if err != nil {
		return nil, err
	}
	lowStock, err := h.catalog.ListLowStock(ctx, threshold)
	if err != nil {
		return nil, err
	}

	orders, err := h.orders.Count(ctx)
	if err != nil {
		return nil, err
	}
	ordersByStatus := map[domain.OrderStatus]int{}
	for _, status := range domain.AllOrderStatuses {
		if ordersByStatus[status], err = h.orders.CountByStatus(ctx, status); err != nil {
			return nil, err
		}
	}
	revenue, err := h.orders.TotalRevenue(ctx)
	if err != nil {
		return nil, err
	}
	recentOrders, err := h.orders.ListRecent(ctx, recent)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"users":            users,
		"users_by_role":    usersByRole,
		"products":         products,
		"low_stock":        lowStock,
		"orders":           orders,
		"orders_by_status": ordersByStatus,
		"revenue":          revenue,
		"recent_orders":    recentOrders,
	}, nil
}
