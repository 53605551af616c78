package transport

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"marketplace/internal/apperrors"
	"marketplace/internal/domain"
	"marketplace/internal/middleware"
	"marketplace/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// multipartOverhead is the body allowance for form fields on top of the image limit
const multipartOverhead = 1 << 20

var (
	errInvalidCategoryID = apperrors.Validation("invalid category id")
	errInvalidForm       = apperrors.Validation("invalid form data")
	errAllRequiresAdmin  = apperrors.Forbidden("listing unavailable products requires admin")
)

// ProductHandler serves the catalog
type ProductHandler struct {
	catalog     service.CatalogService
	uploadLimit int64
	logger      *zap.Logger
}

// NewProductHandler creates a new ProductHandler. uploadLimit is the image size limit.
func NewProductHandler(catalog service.CatalogService, uploadLimit int64, logger *zap.Logger) *ProductHandler {
	if uploadLimit <= 0 {
		uploadLimit = service.DefaultImageMaxBytes
	}
	return &ProductHandler{
		catalog:     catalog,
		uploadLimit: uploadLimit,
		logger:      logger,
	}
}

// RegisterRoutes registers the product routes
func (h *ProductHandler) RegisterRoutes(r chi.Router, guards Guards) {
	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)

		r.Group(func(r chi.Router) {
			r.Use(guards.Auth, guards.Admin)
			r.Post("/", h.Create)
			r.Put("/{id}", h.Update)
			r.Delete("/{id}", h.Delete)
		})
	})
}

// List serves keyword search, category listings and the default listing of
// products in stock. all=true includes products without stock and is admin only.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	ctx := r.Context()

	all := query.Get("all") == "true"
	if all && !middleware.GetSession(ctx).IsAdmin() {
		respondError(w, h.logger, "Product listing denied", errAllRequiresAdmin)
		return
	}

	var categoryID *uuid.UUID
	if raw := query.Get("category_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondError(w, h.logger, "Invalid category filter", errInvalidCategoryID)
			return
		}
		categoryID = &id
	}

	var (
		products []*domain.Product
		err      error
	)
	switch {
	case strings.TrimSpace(query.Get("search")) != "":
		products, err = h.catalog.Search(ctx, query.Get("search"))
	case categoryID != nil && all:
		products, err = h.catalog.ListByCategory(ctx, *categoryID)
	case categoryID != nil:
		products, err = h.catalog.ListAvailableByCategory(ctx, *categoryID)
	case all:
		products, err = h.catalog.ListAll(ctx)
	default:
		products, err = h.catalog.ListAvailable(ctx)
	}
	if err != nil {
		respondError(w, h.logger, "Failed to list products", err)
		return
	}

	middleware.RespondWithSuccess(w, http.StatusOK, map[string]interface{}{
		"products": products,
	})
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, h.logger, "Invalid product id", err)
		return
	}

	product, err := h.catalog.FindByID(r.Context(), id)
	if err != nil {
		respondError(w, h.logger, "Failed to get product", err)
		return
	}

	middleware.RespondWithSuccess(w, http.StatusOK, map[string]interface{}{
		"product": product,
	})
}

// Create handles a multipart product form with an optional "image" file
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	input, image, cleanup, err := h.parseProductForm(w, r)
	if err != nil {
		respondError(w, h.logger, "Invalid product form", err)
		return
	}
	defer cleanup()

	product, err := h.catalog.Create(r.Context(), input, image)
	if err != nil {
		respondError(w, h.logger, "Failed to create product", err)
		return
	}

	h.logger.Info("Product created", zap.String("product_id", product.ID.String()))
	middleware.RespondWithSuccess(w, http.StatusCreated, map[string]interface{}{
		"product_id": product.ID,
		"product":    product,
	})
}

// Update replaces a product's fields and, when a file is sent, its image
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, h.logger, "Invalid product id", err)
		return
	}

	input, image, cleanup, err := h.parseProductForm(w, r)
	if err != nil {
		respondError(w, h.logger, "Invalid product form", err)
		return
	}
	defer cleanup()

	product, err := h.catalog.Update(r.Context(), id, input, image)
	if err != nil {
		respondError(w, h.logger, "Failed to update product", err)
		return
	}

	middleware.RespondWithSuccess(w, http.StatusOK, map[string]interface{}{
		"product": product,
	})
}

func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, h.logger, "Invalid product id", err)
		return
	}

	if err := h.catalog.Delete(r.Context(), id); err != nil {
		respondError(w, h.logger, "Failed to delete product", err)
		return
	}

	h.logger.Info("Product deleted", zap.String("product_id", id.String()))
	middleware.RespondWithSuccess(w, http.StatusOK, map[string]interface{}{
		"message": "product deleted",
	})
}

// parseProductForm reads the product fields and the optional image.
// cleanup releases the open file and any temporary form files.
func (h *ProductHandler) parseProductForm(w http.ResponseWriter, r *http.Request) (service.ProductInput, *service.ImageUpload, func(), error) {
	noop := func() {}
	r.Body = http.MaxBytesReader(w, r.Body, h.uploadLimit+multipartOverhead)

	if err := r.ParseMultipartForm(h.uploadLimit); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return service.ProductInput{}, nil, noop, service.ErrImageTooLarge
		}
		return service.ProductInput{}, nil, noop, errInvalidForm
	}

	input := service.ProductInput{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
		Price:       r.FormValue("price"),
	}
	if raw := strings.TrimSpace(r.FormValue("category_id")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return service.ProductInput{}, nil, noop, errInvalidCategoryID
		}
		input.CategoryID = id
	}
	if _, ok := r.Form["stock"]; ok {
		stock := r.FormValue("stock")
		input.Stock = &stock
	}

	cleanup := func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return input, nil, cleanup, nil
		}
		cleanup()
		return service.ProductInput{}, nil, noop, errInvalidForm
	}

	return input, imageUpload(file, header), func() {
		file.Close()
		cleanup()
	}, nil
}

func imageUpload(file multipart.File, header *multipart.FileHeader) *service.ImageUpload {
	return &service.ImageUpload{
		Filename: header.Filename,
		Content:  file,
	}
}
