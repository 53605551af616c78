package service

import (
	"context"
	"strconv"
	"testing"
	"time"

	"marketplace/internal/domain"
	"marketplace/internal/repository/memrepo"
	"marketplace/internal/session"
	"marketplace/internal/storage"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

const testImageDir = "assets/images/products"

var (
	pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89")
	gifBytes = []byte("GIF89a\x01\x00\x01\x00\x80\x00\x00\xff\xff\xff\x00\x00\x00!\xf9\x04\x01\x00\x00\x00\x00,")
)

type testEnv struct {
	store    *memrepo.Store
	fs       afero.Fs
	images   *storage.ImageStore
	sessions *session.Manager
	accounts AccountService
	catalog  CatalogService
	carts    CartService
	orders   OrderService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	fs := afero.NewMemMapFs()
	images, err := storage.NewImageStore(fs, testImageDir)
	require.NoError(t, err)

	store := memrepo.New()
	sessions := session.NewManager(session.NewRedisStore(client, time.Hour, "session"), "test-secret", time.Hour)

	env := &testEnv{
		store:    store,
		fs:       fs,
		images:   images,
		sessions: sessions,
	}
	env.accounts = NewAccountService(store.Users(), sessions)
	env.catalog = NewCatalogService(store.Products(), store.Categories(), store, images, 0)
	env.carts = NewCartService(store.Carts(), store.Products())
	env.orders = NewOrderService(store.Orders(), store, env.catalog, env.carts)
	return env
}

// seedUser stores a user directly, skipping password hashing
func (e *testEnv) seedUser(t *testing.T, role domain.Role) *domain.User {
	t.Helper()
	id := uuid.New()
	user := &domain.User{
		ID:           id,
		Name:         "User " + id.String()[:8],
		Email:        id.String()[:8] + "@example.com",
		PasswordHash: "unused",
		Role:         role,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	require.NoError(t, e.store.Users().Create(context.Background(), user))
	return user
}

// login starts a session for user
func (e *testEnv) login(t *testing.T, user *domain.User) *session.Session {
	t.Helper()
	sess, err := e.sessions.Start(context.Background(), nil, user)
	require.NoError(t, err)
	return sess
}

func (e *testEnv) seedCategory(t *testing.T) *domain.Category {
	t.Helper()
	category, err := e.catalog.CreateCategory(context.Background(), "Category "+uuid.NewString()[:8], "")
	require.NoError(t, err)
	return category
}

func (e *testEnv) seedProduct(t *testing.T, categoryID uuid.UUID, name string, price string, stock int) *domain.Product {
	t.Helper()
	stockText := strconv.Itoa(stock)
	product, err := e.catalog.Create(context.Background(), ProductInput{
		CategoryID: categoryID,
		Name:       name,
		Price:      price,
		Stock:      &stockText,
	}, nil)
	require.NoError(t, err)
	return product
}

func (e *testEnv) stockOf(t *testing.T, id uuid.UUID) int {
	t.Helper()
	product, err := e.catalog.FindByID(context.Background(), id)
	require.NoError(t, err)
	return product.Stock
}

func strPtr(s string) *string { return &s }
