package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"marketplace/internal/apperrors"
	"marketplace/internal/domain"
	"marketplace/internal/metrics"
	"marketplace/internal/repository"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultImageMaxBytes is the upload size limit when none is configured
const DefaultImageMaxBytes = 2 * 1024 * 1024

// AllowedImageTypes are the accepted image content types
var AllowedImageTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// imageExtensions lists the file extensions kept from an upload's name per detected type
var imageExtensions = map[string][]string{
	"image/jpeg": {".jpg", ".jpeg"},
	"image/png":  {".png"},
	"image/gif":  {".gif"},
	"image/webp": {".webp"},
}

// maxPrice is the first value that no longer fits NUMERIC(12, 2)
var maxPrice = decimal.New(1, 10)

var (
	ErrMissingProductFields = apperrors.Validation("name, category and price are required")
	ErrInvalidPrice         = apperrors.Validation("price must be a non-negative number")
	ErrInvalidStock         = apperrors.Validation("stock must be a non-negative integer")
	ErrMissingCategoryName  = apperrors.Validation("category name is required")
	ErrInvalidImageType     = apperrors.Validation("invalid image format (JPG, PNG, GIF, WEBP)")
	ErrImageTooLarge        = apperrors.Validation("image exceeds the size limit")
)

// ImageStore is the file storage behind product images
type ImageStore interface {
	Save(ctx context.Context, name string, data []byte) error
	Delete(ctx context.Context, name string) error
}

// ImageUpload is an image file attached to a product write
type ImageUpload struct {
	Filename string
	Content  io.Reader
}

// ProductInput carries the fields of a product write.
// Price is decimal text; a nil Stock means 0.
type ProductInput struct {
	CategoryID  uuid.UUID
	Name        string
	Description string
	Price       string
	Stock       *string
}

// CatalogService defines product and category operations
type CatalogService interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	ListAll(ctx context.Context) ([]*domain.Product, error)
	ListByCategory(ctx context.Context, categoryID uuid.UUID) ([]*domain.Product, error)
	ListAvailable(ctx context.Context) ([]*domain.Product, error)
	ListAvailableByCategory(ctx context.Context, categoryID uuid.UUID) ([]*domain.Product, error)
	Search(ctx context.Context, keyword string) ([]*domain.Product, error)
	Create(ctx context.Context, input ProductInput, image *ImageUpload) (*domain.Product, error)
	Update(ctx context.Context, id uuid.UUID, input ProductInput, image *ImageUpload) (*domain.Product, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// AdjustStock adds delta to the stock. It reports false when the
	// result would be negative or the product does not exist.
	AdjustStock(ctx context.Context, id uuid.UUID, delta int) (bool, error)
	HasStock(ctx context.Context, id uuid.UUID, quantity int) (bool, error)
	UploadImage(ctx context.Context, upload *ImageUpload) (string, error)
	Count(ctx context.Context) (int, error)
	ListLowStock(ctx context.Context, threshold int) ([]*domain.Product, error)
	ListCategories(ctx context.Context) ([]*domain.Category, error)
	FindCategory(ctx context.Context, id uuid.UUID) (*domain.Category, error)
	CreateCategory(ctx context.Context, name, description string) (*domain.Category, error)
}

type catalogService struct {
	products      repository.ProductRepository
	categories    repository.CategoryRepository
	tx            repository.Transactor
	images        ImageStore
	imageMaxBytes int64
}

// NewCatalogService creates a new instance of CatalogService.
// A non-positive imageMaxBytes selects DefaultImageMaxBytes.
func NewCatalogService(
	products repository.ProductRepository,
	categories repository.CategoryRepository,
	tx repository.Transactor,
	images ImageStore,
	imageMaxBytes int64,
) CatalogService {
	if imageMaxBytes <= 0 {
		imageMaxBytes = DefaultImageMaxBytes
	}
	return &catalogService{
		products:      products,
		categories:    categories,
		tx:            tx,
		images:        images,
		imageMaxBytes: imageMaxBytes,
	}
}

func (s *catalogService) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return s.products.FindByID(ctx, id)
}

func (s *catalogService) ListAll(ctx context.Context) ([]*domain.Product, error) {
	return s.products.List(ctx, repository.ProductFilter{})
}

func (s *catalogService) ListByCategory(ctx context.Context, categoryID uuid.UUID) ([]*domain.Product, error) {
	return s.products.List(ctx, repository.ProductFilter{CategoryID: &categoryID})
}

func (s *catalogService) ListAvailable(ctx context.Context) ([]*domain.Product, error) {
	return s.products.List(ctx, repository.ProductFilter{AvailableOnly: true})
}

func (s *catalogService) ListAvailableByCategory(ctx context.Context, categoryID uuid.UUID) ([]*domain.Product, error) {
	return s.products.List(ctx, repository.ProductFilter{CategoryID: &categoryID, AvailableOnly: true})
}

// Search matches keyword against name or description, case-insensitively
func (s *catalogService) Search(ctx context.Context, keyword string) ([]*domain.Product, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return []*domain.Product{}, nil
	}
	return s.products.List(ctx, repository.ProductFilter{Keyword: keyword})
}

func (s *catalogService) Create(ctx context.Context, input ProductInput, image *ImageUpload) (*domain.Product, error) {
	fields, err := s.parseInput(ctx, input)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	product := &domain.Product{
		ID:           uuid.New(),
		CategoryID:   fields.category.ID,
		CategoryName: fields.category.Name,
		Name:         fields.name,
		Description:  fields.description,
		Price:        fields.price,
		Stock:        fields.stock,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if image != nil {
		filename, err := s.UploadImage(ctx, image)
		if err != nil {
			return nil, err
		}
		product.Image = filename
	}

	if err := s.products.Create(ctx, product); err != nil {
		s.discardImage(ctx, product.Image)
		return nil, err
	}

	return product, nil
}

// Update replaces the product fields. A new image is stored before the write
// and the previous file is removed only after the write succeeded.
func (s *catalogService) Update(ctx context.Context, id uuid.UUID, input ProductInput, image *ImageUpload) (*domain.Product, error) {
	current, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	fields, err := s.parseInput(ctx, input)
	if err != nil {
		return nil, err
	}

	product := *current
	product.CategoryID = fields.category.ID
	product.CategoryName = fields.category.Name
	product.Name = fields.name
	product.Description = fields.description
	product.Price = fields.price
	product.Stock = fields.stock

	var uploaded string
	if image != nil {
		uploaded, err = s.UploadImage(ctx, image)
		if err != nil {
			return nil, err
		}
		product.Image = uploaded
	}

	if err := s.products.Update(ctx, &product); err != nil {
		s.discardImage(ctx, uploaded)
		return nil, err
	}

	if uploaded != "" && current.Image != "" {
		s.discardImage(ctx, current.Image)
	}

	return &product, nil
}

// Delete removes the product, then its image file once the removal is committed.
// The file is kept whenever the record survives.
func (s *catalogService) Delete(ctx context.Context, id uuid.UUID) error {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return err
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.products.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.discardImage(ctx, product.Image)
	return nil
}

func (s *catalogService) AdjustStock(ctx context.Context, id uuid.UUID, delta int) (bool, error) {
	ok, err := s.products.AdjustStock(ctx, id, delta)
	if err != nil {
		return false, err
	}
	if !ok {
		metrics.StockAdjustmentsRejectedTotal.Inc()
	}
	return ok, nil
}

// HasStock treats a missing product as out of stock
func (s *catalogService) HasStock(ctx context.Context, id uuid.UUID, quantity int) (bool, error) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return false, nil
		}
		return false, err
	}
	return product.Stock >= quantity, nil
}

// UploadImage validates and stores an image, returning its generated file name
func (s *catalogService) UploadImage(ctx context.Context, upload *ImageUpload) (string, error) {
	if upload == nil || upload.Content == nil {
		return "", ErrInvalidImageType
	}

	data, err := io.ReadAll(io.LimitReader(upload.Content, s.imageMaxBytes+1))
	if err != nil {
		return "", apperrors.Internal("failed to read image", err)
	}
	if int64(len(data)) > s.imageMaxBytes {
		return "", apperrors.Wrap(ErrImageTooLarge, "image must be at most "+formatBytes(s.imageMaxBytes))
	}

	mtype := mimetype.Detect(data)
	if !mimetype.EqualsAny(mtype.String(), AllowedImageTypes...) {
		return "", ErrInvalidImageType
	}

	ext := imageExtension(mtype.String(), upload.Filename)
	if ext == "" {
		ext = mtype.Extension()
	}

	filename := "product_" + uuid.NewString() + ext
	if err := s.images.Save(ctx, filename, data); err != nil {
		return "", apperrors.Internal("failed to upload image", err)
	}

	return filename, nil
}

func (s *catalogService) Count(ctx context.Context) (int, error) {
	return s.products.Count(ctx)
}

// ListLowStock lists products at or below threshold, DefaultLowStockThreshold when non-positive
func (s *catalogService) ListLowStock(ctx context.Context, threshold int) ([]*domain.Product, error) {
	if threshold <= 0 {
		threshold = domain.DefaultLowStockThreshold
	}
	return s.products.ListLowStock(ctx, threshold)
}

func (s *catalogService) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	return s.categories.List(ctx)
}

func (s *catalogService) FindCategory(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	return s.categories.FindByID(ctx, id)
}

func (s *catalogService) CreateCategory(ctx context.Context, name, description string) (*domain.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrMissingCategoryName
	}

	category := &domain.Category{
		ID:          uuid.New(),
		Name:        html.EscapeString(name),
		Description: html.EscapeString(strings.TrimSpace(description)),
		CreatedAt:   time.Now(),
	}
	if err := s.categories.Create(ctx, category); err != nil {
		return nil, err
	}
	return category, nil
}

type productFields struct {
	category    *domain.Category
	name        string
	description string
	price       decimal.Decimal
	stock       int
}

// parseInput validates a product write before anything is stored
func (s *catalogService) parseInput(ctx context.Context, input ProductInput) (*productFields, error) {
	name := strings.TrimSpace(input.Name)
	priceText := strings.TrimSpace(input.Price)
	if name == "" || input.CategoryID == uuid.Nil || priceText == "" {
		return nil, ErrMissingProductFields
	}

	price, err := decimal.NewFromString(priceText)
	if err != nil || price.IsNegative() || price.Round(2).GreaterThanOrEqual(maxPrice) {
		return nil, ErrInvalidPrice
	}

	stock := 0
	if input.Stock != nil && strings.TrimSpace(*input.Stock) != "" {
		stock, err = strconv.Atoi(strings.TrimSpace(*input.Stock))
		if err != nil || stock < 0 {
			return nil, ErrInvalidStock
		}
	}

	category, err := s.categories.FindByID(ctx, input.CategoryID)
	if err != nil {
		return nil, err
	}

	return &productFields{
		category:    category,
		name:        html.EscapeString(name),
		description: html.EscapeString(strings.TrimSpace(input.Description)),
		price:       price.Round(2),
		stock:       stock,
	}, nil
}

// discardImage removes a stored file that is no longer referenced
func (s *catalogService) discardImage(ctx context.Context, filename string) {
	if filename == "" {
		return
	}
	_ = s.images.Delete(ctx, filename)
}

// imageExtension returns the upload's own extension when it belongs to the
// detected type, "" otherwise
func imageExtension(detected, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, allowed := range imageExtensions[detected] {
		if ext == allowed {
			return ext
		}
	}
	return ""
}

func formatBytes(n int64) string {
	const mib = 1024 * 1024
	if n%mib == 0 {
		return fmt.Sprintf("%dMB", n/mib)
	}
	return fmt.Sprintf("%d bytes", n)
}
