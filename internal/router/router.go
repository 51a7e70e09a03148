package router

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/anonto42/linkup/backend/internal/handlers"
	"github.com/anonto42/linkup/backend/internal/middleware"
	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/repositories"
	"github.com/anonto42/linkup/backend/internal/services"
	"github.com/anonto42/linkup/backend/pkg/clock"
	"github.com/anonto42/linkup/backend/pkg/config"
	"github.com/anonto42/linkup/backend/pkg/metrics"
	"github.com/anonto42/linkup/backend/pkg/storage"
	"github.com/labstack/echo/v4"
)

// Dependencies are the optional collaborators built in main. Nil values
// disable the matching feature.
type Dependencies struct {
	Verifier services.TokenVerifier
	Media    storage.MediaStorage
}

// SetupRoutes migrates the schemas, wires repositories into services and
// handlers, and registers every route under /api/v1.
func SetupRoutes(ctx context.Context, e *echo.Echo, cfg *config.Config, db *config.DB, deps Dependencies) error {
	// AutoMigrate PostgreSQL models
	if err := db.Postgres.WithContext(ctx).AutoMigrate(&models.ConnectionRequest{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	log.Println("PostgreSQL auto-migrations completed.")

	mongoDB := db.MongoDatabase()
	indexCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// --- Initialize Repositories ---
	userRepo := repositories.NewMongoUserRepository(mongoDB)
	postRepo := repositories.NewMongoPostRepository(mongoDB)
	notificationRepo := repositories.NewMongoNotificationRepository(mongoDB)
	connectionRepo := repositories.NewPostgresConnectionRepository(db.Postgres)

	if err := userRepo.EnsureIndexes(indexCtx); err != nil {
		return fmt.Errorf("user indexes: %w", err)
	}
	if err := postRepo.EnsureIndexes(indexCtx); err != nil {
		return fmt.Errorf("post indexes: %w", err)
	}
	if err := repositories.EnsureNotificationIndexes(indexCtx, mongoDB); err != nil {
		return fmt.Errorf("notification indexes: %w", err)
	}
	log.Println("MongoDB indexes ensured.")

	// --- Initialize Services ---
	clk := clock.NewRealClock()
	notificationService := services.NewNotificationService(notificationRepo, userRepo, postRepo, services.NewRedisPublisher(db.Redis), clk)
	postService := services.NewPostService(postRepo, userRepo, notificationService, deps.Media, services.NewRedisRateLimiter(db.Redis), clk,
		services.PostServiceConfig{RateLimit: cfg.PostRateLimit})
	userService := services.NewUserService(userRepo, deps.Media, clk, cfg.ActiveWindow)
	connectionService := services.NewConnectionService(connectionRepo, userRepo, notificationService)
	authService := services.NewAuthService(userRepo, deps.Verifier, clk, services.AuthConfig{
		JWTSecret: cfg.JWTSecret,
		JWTExpiry: cfg.JWTExpiry,
	})

	e.Use(metrics.Middleware())

	// Health check - always accessible
	e.GET("/health", handlers.HealthCheck(db))

	api := e.Group("/api/v1")

	// --- Unprotected routes for authentication ---
	authHandler := handlers.NewAuthHandler(authService)
	authHandler.RegisterAuthRoutes(api.Group("/auth"))
	log.Println("Auth routes configured.")

	// --- Protected routes ---
	protected := api.Group("")
	protected.Use(middleware.NewAuthMiddleware(authService, userService).RequireAuth())
	authHandler.RegisterProtectedRoutes(protected.Group("/auth"))

	handlers.NewUserHandler(userService).RegisterUserRoutes(protected.Group("/users"))
	log.Println("User routes configured.")

	handlers.NewPostHandler(postService).RegisterPostRoutes(protected.Group("/posts"))
	log.Println("Post routes configured.")

	handlers.NewNotificationHandler(notificationService, db.Redis).RegisterNotificationRoutes(protected.Group("/notifications"))
	log.Println("Notification routes configured.")

	handlers.NewConnectionHandler(connectionService).RegisterConnectionRoutes(protected.Group("/connections"))
	log.Println("Connection routes configured.")

	log.Println("All routes configured.")
	return nil
}
