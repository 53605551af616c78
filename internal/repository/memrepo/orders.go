package memrepo

import (
	"context"
	"sort"
	"time"

	"marketplace/internal/domain"
	"marketplace/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type cartRepo struct{ s *Store }

func (r *cartRepo) find(userID, productID uuid.UUID) (domain.CartItem, bool) {
	for _, item := range r.s.st.cart {
		if item.UserID == userID && item.ProductID == productID {
			return item, true
		}
	}
	return domain.CartItem{}, false
}

func (r *cartRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.CartItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("carts.ListByUser"); err != nil {
		return nil, err
	}

	var ids []uuid.UUID
	for id, item := range r.s.st.cart {
		if item.UserID == userID {
			ids = append(ids, id)
		}
	}
	r.s.st.oldestFirst(ids)

	items := []*domain.CartItem{}
	for _, id := range ids {
		item := r.s.st.cart[id]
		p := r.s.st.products[item.ProductID]
		item.ProductName = p.Name
		item.ProductImage = p.Image
		item.Price = p.Price
		item.Stock = p.Stock
		items = append(items, &item)
	}
	return items, nil
}

func (r *cartRepo) AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.st.products[productID]; !ok {
		return repository.ErrProductNotFound
	}
	if item, ok := r.find(userID, productID); ok {
		item.Quantity += quantity
		r.s.st.cart[item.ID] = item
		return nil
	}

	id := uuid.New()
	r.s.st.cart[id] = domain.CartItem{
		ID:        id,
		UserID:    userID,
		ProductID: productID,
		Quantity:  quantity,
		CreatedAt: time.Now(),
	}
	r.s.st.track(id)
	return nil
}

func (r *cartRepo) SetQuantity(ctx context.Context, userID, productID uuid.UUID, quantity int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	item, ok := r.find(userID, productID)
	if !ok {
		return repository.ErrCartItemNotFound
	}
	item.Quantity = quantity
	r.s.st.cart[item.ID] = item
	return nil
}

func (r *cartRepo) RemoveItem(ctx context.Context, userID, productID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := r.s.fault("carts.RemoveItem"); err != nil {
		return err
	}

	item, ok := r.find(userID, productID)
	if !ok {
		return repository.ErrCartItemNotFound
	}
	delete(r.s.st.cart, item.ID)
	return nil
}

func (r *cartRepo) Clear(ctx context.Context, userID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("carts.Clear"); err != nil {
		return err
	}

	for id, item := range r.s.st.cart {
		if item.UserID == userID {
			delete(r.s.st.cart, id)
		}
	}
	return nil
}

type orderRepo struct{ s *Store }

func (r *orderRepo) withUser(o domain.Order, phone bool) *domain.Order {
	u := r.s.st.users[o.UserID]
	o.UserName = u.Name
	o.UserEmail = u.Email
	if phone {
		o.UserPhone = u.Phone
	}
	return &o
}

func (r *orderRepo) Create(ctx context.Context, order *domain.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("orders.Create"); err != nil {
		return err
	}

	if _, ok := r.s.st.users[order.UserID]; !ok {
		return repository.ErrUserNotFound
	}
	stored := *order
	stored.UserName, stored.UserEmail, stored.UserPhone = "", "", nil
	r.s.st.orders[order.ID] = stored
	r.s.st.track(order.ID)
	return nil
}

func (r *orderRepo) CreateItem(ctx context.Context, item *domain.OrderItem) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("orders.CreateItem"); err != nil {
		return err
	}

	if _, ok := r.s.st.products[item.ProductID]; !ok {
		return repository.ErrProductNotFound
	}
	if _, ok := r.s.st.orders[item.OrderID]; !ok {
		return repository.ErrOrderNotFound
	}
	stored := *item
	stored.ProductName, stored.ProductImage = "", ""
	r.s.st.orderItems[item.ID] = stored
	r.s.st.track(item.ID)
	return nil
}

func (r *orderRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	o, ok := r.s.st.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return r.withUser(o, true), nil
}

func (r *orderRepo) List(ctx context.Context, filter repository.OrderFilter) ([]*domain.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var ids []uuid.UUID
	for id, o := range r.s.st.orders {
		if filter.UserID != nil && o.UserID != *filter.UserID {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		ids = append(ids, id)
	}
	r.s.st.newestFirst(ids)
	if filter.Limit > 0 && len(ids) > filter.Limit {
		ids = ids[:filter.Limit]
	}

	orders := []*domain.Order{}
	for _, id := range ids {
		orders = append(orders, r.withUser(r.s.st.orders[id], false))
	}
	return orders, nil
}

func (r *orderRepo) ListItems(ctx context.Context, orderID uuid.UUID) ([]*domain.OrderItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	items := []*domain.OrderItem{}
	for _, item := range r.s.st.orderItems {
		if item.OrderID != orderID {
			continue
		}
		p := r.s.st.products[item.ProductID]
		item.ProductName = p.Name
		item.ProductImage = p.Image
		out := item
		items = append(items, &out)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ProductName < items[j].ProductName })
	return items, nil
}

func (r *orderRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("orders.UpdateStatus"); err != nil {
		return err
	}

	o, ok := r.s.st.orders[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	if o.Status != from {
		return repository.ErrOrderStatusChanged
	}
	o.Status = to
	o.UpdatedAt = time.Now()
	r.s.st.orders[id] = o
	return nil
}

func (r *orderRepo) Count(ctx context.Context) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.s.st.orders), nil
}

func (r *orderRepo) CountByStatus(ctx context.Context, status domain.OrderStatus) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n := 0
	for _, o := range r.s.st.orders {
		if o.Status == status {
			n++
		}
	}
	return n, nil
}

func (r *orderRepo) SumTotals(ctx context.Context, statuses []domain.OrderStatus) (decimal.Decimal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	total := decimal.Zero
	for _, o := range r.s.st.orders {
		for _, s := range statuses {
			if o.Status == s {
				total = total.Add(o.TotalAmount)
				break
			}
		}
	}
	return total, nil
}
