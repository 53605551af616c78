package service

import (
	"context"
	"fmt"

	"marketplace/internal/apperrors"
	"marketplace/internal/domain"
	"marketplace/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidQuantity = apperrors.Validation("quantity must be at least 1")
	ErrExceedsStock    = apperrors.BusinessRule("requested quantity exceeds available stock")
)

// Cart is what order creation needs from a user's cart
type Cart interface {
	// Validate fails when any line refers to a product without enough stock
	Validate(ctx context.Context, userID uuid.UUID) error
	Items(ctx context.Context, userID uuid.UUID) ([]*domain.CartItem, error)
	RemoveItem(ctx context.Context, userID, productID uuid.UUID) error
}

// CartService manages the pending line items of each user
type CartService interface {
	Cart
	AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) error
	// UpdateQuantity sets the line quantity; 0 removes the line.
	UpdateQuantity(ctx context.Context, userID, productID uuid.UUID, quantity int) error
	Total(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
	Clear(ctx context.Context, userID uuid.UUID) error
}

type cartService struct {
	carts    repository.CartRepository
	products repository.ProductRepository
}

// NewCartService creates a new instance of CartService
func NewCartService(carts repository.CartRepository, products repository.ProductRepository) CartService {
	return &cartService{carts: carts, products: products}
}

func (s *cartService) AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return err
	}

	inCart, err := s.quantityInCart(ctx, userID, productID)
	if err != nil {
		return err
	}
	if inCart+quantity > product.Stock {
		return exceedsStock(product.Name, product.Stock)
	}

	return s.carts.AddItem(ctx, userID, productID, quantity)
}

func (s *cartService) UpdateQuantity(ctx context.Context, userID, productID uuid.UUID, quantity int) error {
	if quantity < 0 {
		return ErrInvalidQuantity
	}
	if quantity == 0 {
		return s.carts.RemoveItem(ctx, userID, productID)
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return err
	}
	if quantity > product.Stock {
		return exceedsStock(product.Name, product.Stock)
	}

	return s.carts.SetQuantity(ctx, userID, productID, quantity)
}

func (s *cartService) RemoveItem(ctx context.Context, userID, productID uuid.UUID) error {
	return s.carts.RemoveItem(ctx, userID, productID)
}

// Items returns the cart lines with live product name, image, price and stock
func (s *cartService) Items(ctx context.Context, userID uuid.UUID) ([]*domain.CartItem, error) {
	return s.carts.ListByUser(ctx, userID)
}

// Total sums quantity times the live price
func (s *cartService) Total(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	items, err := s.carts.ListByUser(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return domain.CartTotal(items), nil
}

func (s *cartService) Validate(ctx context.Context, userID uuid.UUID) error {
	items, err := s.carts.ListByUser(ctx, userID)
	if err != nil {
		return err
	}
	for _, item := range items {
		if item.Quantity > item.Stock {
			return exceedsStock(item.ProductName, item.Stock)
		}
	}
	return nil
}

func (s *cartService) Clear(ctx context.Context, userID uuid.UUID) error {
	return s.carts.Clear(ctx, userID)
}

func (s *cartService) quantityInCart(ctx context.Context, userID, productID uuid.UUID) (int, error) {
	items, err := s.carts.ListByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	for _, item := range items {
		if item.ProductID == productID {
			return item.Quantity, nil
		}
	}
	return 0, nil
}

func exceedsStock(name string, available int) error {
	return apperrors.Explain(ErrExceedsStock, fmt.Sprintf("insufficient stock for %s (available: %d)", name, available))
}
