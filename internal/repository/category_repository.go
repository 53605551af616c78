package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"marketplace/internal/apperrors"
	"marketplace/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrCategoryNotFound      = apperrors.NotFound("category not found")
	ErrCategoryAlreadyExists = apperrors.Conflict("category with this name already exists")
)

// CategoryRepository stores product categories. Reads carry the number of
// products filed under each category.
type CategoryRepository interface {
	Create(ctx context.Context, category *domain.Category) error
	List(ctx context.Context) ([]*domain.Category, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Category, error)
}

type categoryRepository struct {
	db *sql.DB
}

// NewCategoryRepository creates a new instance of CategoryRepository
func NewCategoryRepository(db *sql.DB) CategoryRepository {
	return &categoryRepository{db: db}
}

const categorySelect = `
	SELECT c.id, c.name, c.description, c.created_at,
	       (SELECT COUNT(*) FROM products p WHERE p.category_id = c.id)
	FROM categories c
`

func scanCategory(row interface{ Scan(...interface{}) error }) (*domain.Category, error) {
	category := &domain.Category{}
	err := row.Scan(&category.ID, &category.Name, &category.Description, &category.CreatedAt, &category.ProductCount)
	return category, err
}

func (r *categoryRepository) Create(ctx context.Context, category *domain.Category) error {
	_, err := conn(ctx, r.db).ExecContext(ctx,
		`INSERT INTO categories (id, name, description, created_at) VALUES ($1, $2, $3, $4)`,
		category.ID, category.Name, category.Description, category.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "categories_name_key") {
			return ErrCategoryAlreadyExists
		}
		return fmt.Errorf("failed to create category: %w", err)
	}
	return nil
}

// List returns every category ordered by name
func (r *categoryRepository) List(ctx context.Context) ([]*domain.Category, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, categorySelect+` ORDER BY c.name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	categories := []*domain.Category{}
	for rows.Next() {
		category, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, category)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	return categories, nil
}

func (r *categoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	category, err := scanCategory(conn(ctx, r.db).QueryRowContext(ctx, categorySelect+` WHERE c.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("failed to find category by ID: %w", err)
	}
	return category, nil
}
