package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	authhandler "github.com/pharmflow/pharmflow-backend/internal/auth/handler"
	"github.com/pharmflow/pharmflow-backend/internal/auth/jwt"
	authrepo "github.com/pharmflow/pharmflow-backend/internal/auth/repository"
	authservice "github.com/pharmflow/pharmflow-backend/internal/auth/service"
	cataloghandler "github.com/pharmflow/pharmflow-backend/internal/catalog/handler"
	catalogrepo "github.com/pharmflow/pharmflow-backend/internal/catalog/repository"
	"github.com/pharmflow/pharmflow-backend/internal/receiving/consumers"
	"github.com/pharmflow/pharmflow-backend/internal/receiving/events"
	receivinghandler "github.com/pharmflow/pharmflow-backend/internal/receiving/handler"
	receivingrepo "github.com/pharmflow/pharmflow-backend/internal/receiving/repository"
	receivingservice "github.com/pharmflow/pharmflow-backend/internal/receiving/service"
	"github.com/pharmflow/pharmflow-backend/migrations"
	"github.com/pharmflow/pharmflow-backend/pkg/config"
	"github.com/pharmflow/pharmflow-backend/pkg/database"
	"github.com/pharmflow/pharmflow-backend/pkg/httputil"
	"github.com/pharmflow/pharmflow-backend/pkg/logger"
	"github.com/pharmflow/pharmflow-backend/pkg/messaging"
	"github.com/pharmflow/pharmflow-backend/pkg/permissions"
)

func main() {
	// Load configuration
	cfg, err := config.LoadWithValidation("backoffice")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New("backoffice", cfg.Server.Environment)
	log.Info().Msg("starting Back Office")

	// Connect to database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Apply migrations
	if err := db.Migrate(context.Background(), migrations.FS); err != nil {
		log.Fatal().Err(err).Msg("failed to apply migrations")
	}

	// Connect to RabbitMQ
	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	// Initialize event publishers
	receivingPublisher, err := events.NewPublisher(rmq, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create receiving event publisher")
	}

	authPublisher, err := messaging.NewPublisher(rmq, messaging.ExchangeAuthEvents, "backoffice", log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create auth event publisher")
	}

	// Initialize repositories
	documentRepo := receivingrepo.NewDocumentRepository(db)
	batchRepo := receivingrepo.NewBatchRepository(db)
	inventoryRepo := receivingrepo.NewInventoryRepository(db)
	discrepancyRepo := receivingrepo.NewDiscrepancyRepository(db)
	catalogRepo := catalogrepo.NewCatalogRepository(db)
	productRepo := catalogrepo.NewProductRepository(db)
	userRepo := catalogrepo.NewUserRepository(db)
	sessionRepo := authrepo.NewSessionRepository(db)
	shiftRepo := authrepo.NewShiftRepository(db)

	// Initialize services
	jwtManager := jwt.NewManager(&cfg.JWT)
	reconciliation := receivingservice.NewReconciliationService(
		db, documentRepo, batchRepo, inventoryRepo, discrepancyRepo, receivingPublisher, log)
	authService := authservice.NewAuthService(userRepo, sessionRepo, shiftRepo, jwtManager, authPublisher, log)

	// Start the scan validation consumer
	scanConsumer, err := consumers.NewScanConsumer(rmq, reconciliation, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create scan consumer")
	}

	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()

	if err := scanConsumer.Start(consumerCtx); err != nil {
		log.Fatal().Err(err).Msg("failed to start scan consumer")
	}

	// Initialize handlers
	documentHandler := receivinghandler.NewDocumentHandler(reconciliation)
	inventoryHandler := receivinghandler.NewInventoryHandler(inventoryRepo, batchRepo)
	catalogHandler := cataloghandler.NewCatalogHandler(catalogRepo)
	productHandler := cataloghandler.NewProductHandler(productRepo)
	userHandler := cataloghandler.NewUserHandler(userRepo)
	authHandler := authhandler.NewAuthHandler(authService)

	// Create router
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  "backoffice",
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
		})
	})

	// Public endpoints
	r.Mount("/api/v1/auth", authHandler.PublicRoutes())

	// Protected API endpoints
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(authhandler.Authenticate(jwtManager))

		r.Mount("/session", authHandler.ProtectedRoutes())

		r.Route("/catalog", func(r chi.Router) {
			r.Use(httputil.RequirePermission(permissions.PermCatalogRead))
			r.Mount("/", catalogHandler.Routes())
			r.Mount("/products", productHandler.Routes())
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(httputil.RequirePermission(permissions.PermCatalogWrite))
			r.Mount("/", userHandler.Routes())
		})

		r.Route("/documents", func(r chi.Router) {
			r.Use(httputil.RequirePermission(permissions.PermReceivingRead))
			r.Mount("/", documentHandler.Routes())
		})

		r.Route("/inventory", func(r chi.Router) {
			r.Use(httputil.RequirePermission(permissions.PermInventoryRead))
			r.Mount("/", inventoryHandler.Routes())
		})
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	stopConsumer()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
