package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultRecentOrders is the number of orders returned by recent order listings
const DefaultRecentOrders = 5

// Order represents a placed order. Purchaser fields are filled by joins.
type Order struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	UserID          uuid.UUID       `json:"user_id" db:"user_id"`
	UserName        string          `json:"user_name,omitempty" db:"user_name"`
	UserEmail       string          `json:"user_email,omitempty" db:"user_email"`
	UserPhone       *string         `json:"user_phone,omitempty" db:"user_phone"`
	TotalAmount     decimal.Decimal `json:"total_amount" db:"total_amount"`
	Status          OrderStatus     `json:"status" db:"status"`
	ShippingAddress string          `json:"shipping_address" db:"shipping_address"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// OrderItem is a line of an order with the price captured at order time
type OrderItem struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	OrderID      uuid.UUID       `json:"order_id" db:"order_id"`
	ProductID    uuid.UUID       `json:"product_id" db:"product_id"`
	ProductName  string          `json:"product_name,omitempty" db:"product_name"`
	ProductImage string          `json:"product_image,omitempty" db:"product_image"`
	Quantity     int             `json:"quantity" db:"quantity"`
	Price        decimal.Decimal `json:"price" db:"price"`
}

// Subtotal is quantity times the captured price
func (i *OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
