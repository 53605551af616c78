package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"marketplace/internal/apperrors"
	"marketplace/internal/domain"
	"marketplace/internal/metrics"
	"marketplace/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrEmptyAddress      = apperrors.Validation("shipping address is required")
	ErrEmptyCart         = apperrors.BusinessRule("cart is empty")
	ErrInvalidStatus     = apperrors.Validation("invalid order status")
	ErrInsufficientStock = apperrors.BusinessRule("insufficient stock")
)

// Stock is the stock mutation order handling needs from the catalog
type Stock interface {
	AdjustStock(ctx context.Context, id uuid.UUID, delta int) (bool, error)
}

// OrderService defines order placement, status changes and reporting
type OrderService interface {
	// CreateFromCart turns the user's cart into a pending order in one transaction
	CreateFromCart(ctx context.Context, userID uuid.UUID, shippingAddress string) (*domain.Order, error)
	ListAll(ctx context.Context) ([]*domain.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Order, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ListItems(ctx context.Context, orderID uuid.UUID) ([]*domain.OrderItem, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) (*domain.Order, error)
	Count(ctx context.Context) (int, error)
	CountByStatus(ctx context.Context, status domain.OrderStatus) (int, error)
	TotalRevenue(ctx context.Context) (decimal.Decimal, error)
	ListRecent(ctx context.Context, limit int) ([]*domain.Order, error)
	ListByStatus(ctx context.Context, status domain.OrderStatus) ([]*domain.Order, error)
}

type orderService struct {
	orders repository.OrderRepository
	tx     repository.Transactor
	stock  Stock
	cart   Cart
}

// NewOrderService creates a new instance of OrderService
func NewOrderService(orders repository.OrderRepository, tx repository.Transactor, stock Stock, cart Cart) OrderService {
	return &orderService{
		orders: orders,
		tx:     tx,
		stock:  stock,
		cart:   cart,
	}
}

func (s *orderService) CreateFromCart(ctx context.Context, userID uuid.UUID, shippingAddress string) (*domain.Order, error) {
	address := strings.TrimSpace(shippingAddress)
	if address == "" {
		return nil, ErrEmptyAddress
	}

	if err := s.cart.Validate(ctx, userID); err != nil {
		metrics.OrdersFailedTotal.WithLabelValues(metrics.ReasonInvalidCart).Inc()
		return nil, err
	}

	items, err := s.cart.Items(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		metrics.OrdersFailedTotal.WithLabelValues(metrics.ReasonEmptyCart).Inc()
		return nil, ErrEmptyCart
	}

	// the order is built from this one read of the cart
	total := domain.CartTotal(items)

	now := time.Now()
	order := &domain.Order{
		ID:              uuid.New(),
		UserID:          userID,
		TotalAmount:     total,
		Status:          domain.StatusPending,
		ShippingAddress: html.EscapeString(address),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.orders.Create(ctx, order); err != nil {
			return err
		}

		for _, item := range items {
			line := &domain.OrderItem{
				ID:        uuid.New(),
				OrderID:   order.ID,
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				Price:     item.Price,
			}
			if err := s.orders.CreateItem(ctx, line); err != nil {
				return err
			}

			ok, err := s.stock.AdjustStock(ctx, item.ProductID, -item.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w for %s", ErrInsufficientStock, item.ProductName)
			}

			// only the ordered lines leave the cart
			if err := s.cart.RemoveItem(ctx, userID, item.ProductID); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		reason := metrics.ReasonStore
		if errors.Is(err, ErrInsufficientStock) {
			reason = metrics.ReasonInsufficientStock
		}
		metrics.OrdersFailedTotal.WithLabelValues(reason).Inc()
		return nil, apperrors.Wrap(err, "failed to create order")
	}

	metrics.OrdersCreatedTotal.Inc()
	return order, nil
}

// ListAll returns every order with purchaser name and email, newest first
func (s *orderService) ListAll(ctx context.Context) ([]*domain.Order, error) {
	return s.orders.List(ctx, repository.OrderFilter{})
}

func (s *orderService) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Order, error) {
	return s.orders.List(ctx, repository.OrderFilter{UserID: &userID})
}

func (s *orderService) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return s.orders.FindByID(ctx, id)
}

func (s *orderService) ListItems(ctx context.Context, orderID uuid.UUID) ([]*domain.OrderItem, error) {
	return s.orders.ListItems(ctx, orderID)
}

// UpdateStatus moves the order along its state machine. Setting the current
// status again changes nothing. Cancelling returns every line to stock in the
// same transaction as the status write.
func (s *orderService) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) (*domain.Order, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}

	var (
		updated   *domain.Order
		cancelled bool
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		order, err := s.orders.FindByID(ctx, id)
		if err != nil {
			return err
		}

		if order.Status == status {
			updated = order
			return nil
		}

		if err := domain.CanTransition(order.Status, status); err != nil {
			return apperrors.Conflict(err.Error())
		}

		if err := s.orders.UpdateStatus(ctx, id, order.Status, status); err != nil {
			return err
		}

		if status == domain.StatusCancelled {
			if err := s.restoreStock(ctx, id); err != nil {
				return err
			}
			cancelled = true
		}

		order.Status = status
		order.UpdatedAt = time.Now()
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	if cancelled {
		metrics.OrdersCancelledTotal.Inc()
	}
	return updated, nil
}

func (s *orderService) restoreStock(ctx context.Context, orderID uuid.UUID) error {
	items, err := s.orders.ListItems(ctx, orderID)
	if err != nil {
		return err
	}
	for _, item := range items {
		ok, err := s.stock.AdjustStock(ctx, item.ProductID, item.Quantity)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.Internal(fmt.Sprintf("failed to restore stock for %s", item.ProductName), nil)
		}
	}
	return nil
}

func (s *orderService) Count(ctx context.Context) (int, error) {
	return s.orders.Count(ctx)
}

func (s *orderService) CountByStatus(ctx context.Context, status domain.OrderStatus) (int, error) {
	if !status.Valid() {
		return 0, ErrInvalidStatus
	}
	return s.orders.CountByStatus(ctx, status)
}

// TotalRevenue sums processing, shipped and completed orders
func (s *orderService) TotalRevenue(ctx context.Context) (decimal.Decimal, error) {
	return s.orders.SumTotals(ctx, domain.RevenueStatuses)
}

// ListRecent returns the newest orders, domain.DefaultRecentOrders when limit is non-positive
func (s *orderService) ListRecent(ctx context.Context, limit int) ([]*domain.Order, error) {
	if limit <= 0 {
		limit = domain.DefaultRecentOrders
	}
	return s.orders.List(ctx, repository.OrderFilter{Limit: limit})
}

func (s *orderService) ListByStatus(ctx context.Context, status domain.OrderStatus) ([]*domain.Order, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	return s.orders.List(ctx, repository.OrderFilter{Status: status})
}
