package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"marketplace/internal/apperrors"
	"marketplace/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrOrderNotFound      = apperrors.NotFound("order not found")
	ErrOrderStatusChanged = apperrors.Conflict("order status was changed by another request")
)

// OrderFilter narrows order listings. Zero value lists every order.
type OrderFilter struct {
	UserID *uuid.UUID
	Status domain.OrderStatus
	// Limit caps the number of rows when positive.
	Limit int
}

// OrderRepository defines the interface for order data access
type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	CreateItem(ctx context.Context, item *domain.OrderItem) error
	// FindByID returns the order joined with the purchaser's name, email and phone.
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	// List returns orders joined with the purchaser's name and email, newest first.
	List(ctx context.Context, filter OrderFilter) ([]*domain.Order, error)
	// ListItems returns the order's lines joined with product name and image.
	ListItems(ctx context.Context, orderID uuid.UUID) ([]*domain.OrderItem, error)
	// UpdateStatus moves the order from status from to status to.
	// It fails with ErrOrderStatusChanged when the stored status is no longer from.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus) error
	Count(ctx context.Context) (int, error)
	CountByStatus(ctx context.Context, status domain.OrderStatus) (int, error)
	// SumTotals adds total_amount over orders in any of statuses.
	SumTotals(ctx context.Context, statuses []domain.OrderStatus) (decimal.Decimal, error)
}

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new instance of OrderRepository
func NewOrderRepository(db *sql.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	query := `
		INSERT INTO orders (id, user_id, total_amount, status, shipping_address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := conn(ctx, r.db).ExecContext(
		ctx,
		query,
		order.ID,
		order.UserID,
		order.TotalAmount,
		order.Status,
		order.ShippingAddress,
		order.CreatedAt,
		order.UpdatedAt,
	)

	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to create order: %w", err)
	}

	return nil
}

func (r *orderRepository) CreateItem(ctx context.Context, item *domain.OrderItem) error {
	query := `
		INSERT INTO order_items (id, order_id, product_id, quantity, price)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := conn(ctx, r.db).ExecContext(ctx, query, item.ID, item.OrderID, item.ProductID, item.Quantity, item.Price)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrProductNotFound
		}
		return fmt.Errorf("failed to create order item: %w", err)
	}

	return nil
}

func (r *orderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := `
		SELECT o.id, o.user_id, u.name, u.email, u.phone, o.total_amount, o.status, o.shipping_address,
		       o.created_at, o.updated_at
		FROM orders o
		JOIN users u ON u.id = o.user_id
		WHERE o.id = $1
	`

	order := &domain.Order{}
	err := conn(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&order.ID,
		&order.UserID,
		&order.UserName,
		&order.UserEmail,
		&order.UserPhone,
		&order.TotalAmount,
		&order.Status,
		&order.ShippingAddress,
		&order.CreatedAt,
		&order.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to find order by ID: %w", err)
	}

	return order, nil
}

func (r *orderRepository) List(ctx context.Context, filter OrderFilter) ([]*domain.Order, error) {
	query := `
		SELECT o.id, o.user_id, u.name, u.email, o.total_amount, o.status, o.shipping_address,
		       o.created_at, o.updated_at
		FROM orders o
		JOIN users u ON u.id = o.user_id
		WHERE 1 = 1
	`
	args := []interface{}{}

	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		query += fmt.Sprintf(" AND o.user_id = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND o.status = $%d", len(args))
	}

	query += " ORDER BY o.created_at DESC"

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := []*domain.Order{}
	for rows.Next() {
		order := &domain.Order{}
		err := rows.Scan(
			&order.ID,
			&order.UserID,
			&order.UserName,
			&order.UserEmail,
			&order.TotalAmount,
			&order.Status,
			&order.ShippingAddress,
			&order.CreatedAt,
			&order.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	return orders, nil
}

func (r *orderRepository) ListItems(ctx context.Context, orderID uuid.UUID) ([]*domain.OrderItem, error) {
	query := `
		SELECT oi.id, oi.order_id, oi.product_id, p.name, COALESCE(p.image, ''), oi.quantity, oi.price
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = $1
		ORDER BY p.name ASC
	`

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list order items: %w", err)
	}
	defer rows.Close()

	items := []*domain.OrderItem{}
	for rows.Next() {
		item := &domain.OrderItem{}
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.ProductName,
			&item.ProductImage,
			&item.Quantity,
			&item.Price,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, item)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order items: %w", err)
	}

	return items, nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus) error {
	db := conn(ctx, r.db)

	result, err := db.ExecContext(ctx, `UPDATE orders SET status = $3 WHERE id = $1 AND status = $2`, id, from, to)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 1 {
		return nil
	}

	var exists bool
	if err := db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check order: %w", err)
	}
	if !exists {
		return ErrOrderNotFound
	}
	return ErrOrderStatusChanged
}

func (r *orderRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := conn(ctx, r.db).QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return total, nil
}

func (r *orderRepository) CountByStatus(ctx context.Context, status domain.OrderStatus) (int, error) {
	var total int
	err := conn(ctx, r.db).QueryRowContext(ctx, `SELECT COUNT(*) FROM orders WHERE status = $1`, status).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to count orders by status: %w", err)
	}
	return total, nil
}

func (r *orderRepository) SumTotals(ctx context.Context, statuses []domain.OrderStatus) (decimal.Decimal, error) {
	if len(statuses) == 0 {
		return decimal.Zero, nil
	}

	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}

	var total decimal.Decimal
	err := conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT COALESCE(SUM(total_amount), 0) FROM orders WHERE status = ANY($1)`, names).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum order totals: %w", err)
	}
	return total, nil
}
