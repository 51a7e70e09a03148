package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anonto42/linkup/backend/internal/handlers"
	"github.com/anonto42/linkup/backend/internal/router"
	"github.com/anonto42/linkup/backend/pkg/config"
	"github.com/anonto42/linkup/backend/pkg/firebase"
	"github.com/anonto42/linkup/backend/pkg/metrics"
	"github.com/anonto42/linkup/backend/pkg/storage"
	"github.com/anonto42/linkup/backend/validators"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Load configuration
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newServer().run(ctx, cfg); err != nil {
		stop()
		log.Fatalf("%v", err)
	}
}

// server holds the startup steps run calls. Tests swap them out.
type server struct {
	openStores  func(ctx context.Context, cfg *config.Config) (*config.DB, error)
	closeStores func(db *config.DB)
	setupRoutes func(ctx context.Context, e *echo.Echo, cfg *config.Config, db *config.DB, deps router.Dependencies) error
	listen      func(e *echo.Echo, addr string) error
}

func newServer() *server {
	return &server{
		openStores: func(ctx context.Context, cfg *config.Config) (*config.DB, error) {
			db := config.NewDB(cfg)
			return db, db.Connect(ctx)
		},
		closeStores: func(db *config.DB) { db.Close() },
		setupRoutes: router.SetupRoutes,
		listen:      func(e *echo.Echo, addr string) error { return e.Start(addr) },
	}
}

// run serves until ctx is cancelled or the listener fails. Connections are
// closed on every return path.
func (s *server) run(ctx context.Context, cfg *config.Config) error {
	// Initialize database connections. Running out of retries is the one
	// fatal startup path.
	db, err := s.openStores(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize databases: %w", err)
	}
	defer s.closeStores(db)

	var deps router.Dependencies

	// Firebase is optional; without it only local JWTs are accepted.
	if cfg.FirebaseCredentialsPath != "" {
		firebaseApp, err := firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath)
		if err != nil {
			log.Printf("Firebase disabled: %v", err)
		} else {
			deps.Verifier = firebaseApp
		}
	}

	if cfg.CloudinaryURL != "" {
		media, err := storage.NewCloudinaryStorage(cfg.CloudinaryURL, cfg.CloudinaryFolder)
		if err != nil {
			log.Printf("Media uploads disabled: %v", err)
		} else {
			deps.Media = media
		}
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = handlers.HTTPErrorHandler
	e.Validator = validators.NewValidator()

	// Setup global middleware
	config.SetupMiddleware(e, cfg)

	// Setup routes and dependencies
	if err := s.setupRoutes(ctx, e, cfg, db, deps); err != nil {
		return fmt.Errorf("failed to set up routes: %w", err)
	}

	metricsServer := &http.Server{
		Addr:              ":" + cfg.MetricsPort,
		Handler:           promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Printf("Metrics listening on :%s", cfg.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Metrics server stopped: %v", err)
		}
	}()

	// Start server
	serveErr := make(chan error, 1)
	go func() {
		if err := s.listen(e, ":"+cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Println("Shutting down...")
	case err := <-serveErr:
		runErr = fmt.Errorf("server stopped: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown failed: %v", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Metrics shutdown failed: %v", err)
	}
	return runErr
}
