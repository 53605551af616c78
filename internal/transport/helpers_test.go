package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"marketplace/internal/domain"
	"marketplace/internal/middleware"
	"marketplace/internal/repository/memrepo"
	"marketplace/internal/service"
	"marketplace/internal/session"
	"marketplace/internal/storage"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	testCookieName  = "test_session"
	testPassword    = "secret1"
	testLoginLimit  = 3
	testImageDir    = "assets/images/products"
	testUploadLimit = 64 * 1024
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89")

type testAPI struct {
	store    *memrepo.Store
	images   *storage.ImageStore
	sessions *session.Manager
	catalog  service.CatalogService
	carts    service.CartService
	router   chi.Router
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	images, err := storage.NewImageStore(afero.NewMemMapFs(), testImageDir)
	require.NoError(t, err)

	store := memrepo.New()
	sessions := session.NewManager(session.NewRedisStore(client, time.Hour, "session"), "test-secret", time.Hour)

	accounts := service.NewAccountService(store.Users(), sessions)
	catalog := service.NewCatalogService(store.Products(), store.Categories(), store, images, testUploadLimit)
	carts := service.NewCartService(store.Carts(), store.Products())
	orders := service.NewOrderService(store.Orders(), store, catalog, carts)

	logger := zap.NewNop()
	guards := Guards{
		Auth:  middleware.RequireAuth(logger),
		Admin: middleware.RequireAdmin(logger),
	}
	loginLimiter := middleware.RateLimitMiddleware(client, middleware.RateLimitConfig{
		RequestsPerWindow: testLoginLimit,
		Window:            time.Minute,
		KeyPrefix:         "login",
	}, logger)

	r := chi.NewRouter()
	r.Use(middleware.SessionMiddleware(sessions, testCookieName, logger))

	NewAuthHandler(accounts, sessions, CookieConfig{Name: testCookieName}, logger).RegisterRoutes(r, guards, loginLimiter)
	NewUserHandler(accounts, logger).RegisterRoutes(r, guards)
	NewCategoryHandler(catalog, logger).RegisterRoutes(r, guards)
	NewProductHandler(catalog, testUploadLimit, logger).RegisterRoutes(r, guards)
	NewCartHandler(carts, logger).RegisterRoutes(r, guards)
	NewOrderHandler(orders, logger).RegisterRoutes(r, guards)
	NewAdminHandler(accounts, catalog, orders, logger).RegisterRoutes(r, guards)

	return &testAPI{
		store:    store,
		images:   images,
		sessions: sessions,
		catalog:  catalog,
		carts:    carts,
		router:   r,
	}
}

// seedUser stores a user with testPassword and returns it with a session token
func (a *testAPI) seedUser(t *testing.T, role domain.Role) (*domain.User, string) {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)

	id := uuid.New()
	user := &domain.User{
		ID:           id,
		Name:         "User " + id.String()[:8],
		Email:        id.String()[:8] + "@example.com",
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	require.NoError(t, a.store.Users().Create(context.Background(), user))

	sess, err := a.sessions.Start(context.Background(), nil, user)
	require.NoError(t, err)
	token, err := a.sessions.Token(sess)
	require.NoError(t, err)

	return user, token
}

func (a *testAPI) seedProduct(t *testing.T, name, price string, stock int) *domain.Product {
	t.Helper()
	ctx := context.Background()

	category, err := a.catalog.CreateCategory(ctx, "Category "+uuid.NewString()[:8], "")
	require.NoError(t, err)

	stockText := strconv.Itoa(stock)
	product, err := a.catalog.Create(ctx, service.ProductInput{
		CategoryID: category.ID,
		Name:       name,
		Price:      price,
		Stock:      &stockText,
	}, nil)
	require.NoError(t, err)
	return product
}

func (a *testAPI) stockOf(t *testing.T, id uuid.UUID) int {
	t.Helper()
	product, err := a.catalog.FindByID(context.Background(), id)
	require.NoError(t, err)
	return product.Stock
}

// do sends a JSON request with an optional bearer token
func (a *testAPI) do(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

// doMultipart sends form fields and an optional image file
func (a *testAPI) doMultipart(t *testing.T, method, path string, fields map[string]string, filename string, file []byte, token string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if file != nil {
		part, err := mw.CreateFormFile("image", filename)
		require.NoError(t, err)
		_, err = part.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

// body decodes a response into a generic map
func body(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// field decodes one key of a response into v
func field(t *testing.T, w *httptest.ResponseRecorder, key string, v interface{}) {
	t.Helper()
	var out map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	raw, ok := out[key]
	require.True(t, ok, "missing %q in %s", key, w.Body.String())
	require.NoError(t, json.Unmarshal(raw, v))
}
