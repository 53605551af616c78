package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"marketplace/internal/config"
	"marketplace/internal/database"
	custommiddleware "marketplace/internal/middleware"
	"marketplace/internal/repository"
	"marketplace/internal/service"
	"marketplace/internal/session"
	"marketplace/internal/storage"
	"marketplace/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ImagePath is the url prefix product image files are served under
const ImagePath = "/images/products"

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	db     database.Service
	redis  redis.UniversalClient
}

func NewServer(cfg *config.Config, logger *zap.Logger, db database.Service, redisClient redis.UniversalClient) (*Server, error) {
	images, err := storage.NewOSImageStore(cfg.Storage.ImageDir)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare image directory: %w", err)
	}

	sessions := session.NewManager(
		session.NewRedisStore(redisClient, cfg.Session.TTL, "session"),
		cfg.Session.Secret,
		cfg.Session.TTL,
	)

	// Initialize repositories
	pool := db.DB()
	tx := repository.NewTransactor(pool)
	userRepo := repository.NewUserRepository(pool)
	categoryRepo := repository.NewCategoryRepository(pool)
	productRepo := repository.NewProductRepository(pool)
	cartRepo := repository.NewCartRepository(pool)
	orderRepo := repository.NewOrderRepository(pool)

	// Initialize services
	accounts := service.NewAccountService(userRepo, sessions)
	catalog := service.NewCatalogService(productRepo, categoryRepo, tx, images, cfg.Storage.ImageMaxBytes)
	carts := service.NewCartService(cartRepo, productRepo)
	orders := service.NewOrderService(orderRepo, tx, catalog, carts)

	router := chi.NewRouter()

	router.Use(custommiddleware.DefaultMiddlewareStack()...)
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.MetricsMiddleware)
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(cfg.CORS.AllowedOrigins, cfg.Server.IsDevelopment()))
	router.Use(custommiddleware.SessionMiddleware(sessions, cfg.Session.CookieName, logger))

	router.Get("/health", healthHandler(db, redisClient))
	router.Handle("/metrics", promhttp.Handler())
	router.Handle(ImagePath+"/*", http.StripPrefix(ImagePath, images.Handler()))

	guards := transport.Guards{
		Auth:  custommiddleware.RequireAuth(logger),
		Admin: custommiddleware.RequireAdmin(logger),
	}
	loginLimiter := custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
		RequestsPerWindow: cfg.RateLimit.LoginRequests,
		Window:            cfg.RateLimit.LoginWindow,
		KeyPrefix:         "rate_limit:login",
	}, logger)

	// Register routes
	cookie := transport.CookieConfig{Name: cfg.Session.CookieName, Secure: cfg.Session.CookieSecure}
	transport.NewAuthHandler(accounts, sessions, cookie, logger).RegisterRoutes(router, guards, loginLimiter)
	transport.NewUserHandler(accounts, logger).RegisterRoutes(router, guards)
	transport.NewCategoryHandler(catalog, logger).RegisterRoutes(router, guards)
	transport.NewProductHandler(catalog, cfg.Storage.ImageMaxBytes, logger).RegisterRoutes(router, guards)
	transport.NewCartHandler(carts, logger).RegisterRoutes(router, guards)
	transport.NewOrderHandler(orders, logger).RegisterRoutes(router, guards)
	transport.NewAdminHandler(accounts, catalog, orders, logger).RegisterRoutes(router, guards)

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		custommiddleware.RespondWithError(w, http.StatusNotFound, "route not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		custommiddleware.RespondWithError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	server := &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config: cfg,
		logger: logger,
		db:     db,
		redis:  redisClient,
	}

	return server, nil
}

// healthHandler reports the database and redis status, 503 when either is down
func healthHandler(db database.Service, redisClient redis.UniversalClient) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK

		dbHealth := db.Health()
		if dbHealth["status"] != "up" {
			status = http.StatusServiceUnavailable
		}

		redisHealth := map[string]string{"status": "up"}
		ctx, cancel := context.WithTimeout(r.Context(), time.Second)
		defer cancel()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			redisHealth = map[string]string{"status": "down", "error": err.Error()}
			status = http.StatusServiceUnavailable
		}

		custommiddleware.RespondWithJSON(w, status, map[string]interface{}{
			"success":  status == http.StatusOK,
			"database": dbHealth,
			"redis":    redisHealth,
		})
	}
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis connection", zap.Error(err))
		}
	}

	// Close database connection
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
