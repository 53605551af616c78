package memrepo

import (
	"context"
	"sort"
	"strings"
	"time"

	"marketplace/internal/domain"
	"marketplace/internal/repository"

	"github.com/google/uuid"
)

type categoryRepo struct{ s *Store }

func (r *categoryRepo) Create(ctx context.Context, category *domain.Category) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, c := range r.s.st.categories {
		if c.Name == category.Name {
			return repository.ErrCategoryAlreadyExists
		}
	}
	r.s.st.categories[category.ID] = *category
	r.s.st.track(category.ID)
	return nil
}

func (r *categoryRepo) List(ctx context.Context) ([]*domain.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	categories := []*domain.Category{}
	for _, c := range r.s.st.categories {
		categories = append(categories, r.withCount(c))
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].Name < categories[j].Name })
	return categories, nil
}

func (r *categoryRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.st.categories[id]
	if !ok {
		return nil, repository.ErrCategoryNotFound
	}
	return r.withCount(c), nil
}

func (r *categoryRepo) withCount(c domain.Category) *domain.Category {
	c.ProductCount = 0
	for _, p := range r.s.st.products {
		if p.CategoryID == c.ID {
			c.ProductCount++
		}
	}
	return &c
}

type productRepo struct{ s *Store }

// withCategory fills the joined category name
func (r *productRepo) withCategory(p domain.Product) *domain.Product {
	p.CategoryName = r.s.st.categories[p.CategoryID].Name
	return &p
}

func (r *productRepo) Create(ctx context.Context, product *domain.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("products.Create"); err != nil {
		return err
	}

	if _, ok := r.s.st.categories[product.CategoryID]; !ok {
		return repository.ErrCategoryNotFound
	}
	stored := *product
	stored.CategoryName = ""
	r.s.st.products[product.ID] = stored
	r.s.st.track(product.ID)
	return nil
}

func (r *productRepo) Update(ctx context.Context, product *domain.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("products.Update"); err != nil {
		return err
	}

	current, ok := r.s.st.products[product.ID]
	if !ok {
		return repository.ErrProductNotFound
	}
	if _, ok := r.s.st.categories[product.CategoryID]; !ok {
		return repository.ErrCategoryNotFound
	}
	product.CreatedAt = current.CreatedAt
	product.UpdatedAt = time.Now()
	stored := *product
	stored.CategoryName = ""
	r.s.st.products[product.ID] = stored
	return nil
}

func (r *productRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("products.Delete"); err != nil {
		return err
	}

	if _, ok := r.s.st.products[id]; !ok {
		return repository.ErrProductNotFound
	}
	for _, item := range r.s.st.orderItems {
		if item.ProductID == id {
			return repository.ErrProductReferenced
		}
	}
	for itemID, item := range r.s.st.cart {
		if item.ProductID == id {
			delete(r.s.st.cart, itemID)
		}
	}
	delete(r.s.st.products, id)
	return nil
}

func (r *productRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.st.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	return r.withCategory(p), nil
}

func (r *productRepo) List(ctx context.Context, filter repository.ProductFilter) ([]*domain.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	keyword := strings.ToLower(strings.TrimSpace(filter.Keyword))

	var ids []uuid.UUID
	for id, p := range r.s.st.products {
		if filter.CategoryID != nil && p.CategoryID != *filter.CategoryID {
			continue
		}
		if filter.AvailableOnly && p.Stock <= 0 {
			continue
		}
		if keyword != "" &&
			!strings.Contains(strings.ToLower(p.Name), keyword) &&
			!strings.Contains(strings.ToLower(p.Description), keyword) {
			continue
		}
		ids = append(ids, id)
	}
	r.s.st.newestFirst(ids)

	products := []*domain.Product{}
	for _, id := range ids {
		products = append(products, r.withCategory(r.s.st.products[id]))
	}
	return products, nil
}

func (r *productRepo) AdjustStock(ctx context.Context, id uuid.UUID, delta int) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("products.AdjustStock"); err != nil {
		return false, err
	}

	p, ok := r.s.st.products[id]
	if !ok || p.Stock+delta < 0 {
		return false, nil
	}
	p.Stock += delta
	r.s.st.products[id] = p
	return true, nil
}

func (r *productRepo) Count(ctx context.Context) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.s.st.products), nil
}

func (r *productRepo) ListLowStock(ctx context.Context, threshold int) ([]*domain.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	products := []*domain.Product{}
	for _, p := range r.s.st.products {
		if p.Stock <= threshold {
			products = append(products, r.withCategory(p))
		}
	}
	sort.Slice(products, func(i, j int) bool {
		if products[i].Stock != products[j].Stock {
			return products[i].Stock < products[j].Stock
		}
		return products[i].Name < products[j].Name
	})
	return products, nil
}
