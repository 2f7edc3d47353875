package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/clinicdesk/scheduling-backend/internal/adapters/cache"
	"github.com/clinicdesk/scheduling-backend/internal/adapters/database"
	"github.com/clinicdesk/scheduling-backend/internal/adapters/events"
	"github.com/clinicdesk/scheduling-backend/internal/api/handlers"
	"github.com/clinicdesk/scheduling-backend/internal/api/routes"
	"github.com/clinicdesk/scheduling-backend/internal/application/services"
	"github.com/clinicdesk/scheduling-backend/internal/domain/providers"
	"github.com/clinicdesk/scheduling-backend/internal/domain/repositories"
	"github.com/clinicdesk/scheduling-backend/internal/infrastructure/clients/postgres"
	"github.com/clinicdesk/scheduling-backend/internal/infrastructure/clients/redis"
	"github.com/clinicdesk/scheduling-backend/internal/infrastructure/observability"
	"github.com/clinicdesk/scheduling-backend/pkg/config"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Environment)

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(
			ctx,
			cfg.OTEL.ServiceName,
			cfg.OTEL.ServiceVersion,
			cfg.OTEL.Endpoint,
		)
		if err != nil {
			log.Warn().Err(err).Msg("failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("error shutting down OpenTelemetry")
				}
			}()
			log.Info().Msg("OpenTelemetry initialized")
		}
	}

	// Initialize metrics
	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	// Initialize database client
	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()

	// Initialize Redis client. The API can run without it; caching and
	// realtime notifications are disabled in that case.
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("failed to initialize Redis client, continuing without it")
		redisClient = nil
	} else {
		defer redisClient.Close()
		log.Info().Msg("Redis client initialized")
	}

	var cacheProvider providers.CacheProvider
	var eventBus providers.EventBus
	if redisClient != nil {
		cacheProvider = cache.NewRedisAdapter(redisClient)
		eventBus = events.NewRedisEventBus(redisClient)
		log.Info().Msg("event bus initialized")
	}

	// Initialize repository, wrapped with read caching when available
	var appointmentRepo repositories.AppointmentRepository = database.NewAppointmentAdapter(pgClient)
	if cacheProvider != nil && cfg.Cache.Enabled {
		appointmentRepo = database.NewCachedAppointmentAdapter(appointmentRepo, cacheProvider, cfg.Cache.TTLSeconds, metrics)
		log.Info().Msg("appointment repository wrapped with caching layer")
	}

	// Initialize services
	appointmentService := services.NewAppointmentService(appointmentRepo, eventBus)

	// Initialize handlers. Streaming runs in its own binary (cmd/sse)
	// because long-lived SSE connections need an unbounded write timeout.
	appointmentHandler := handlers.NewAppointmentHandler(appointmentService)

	// Set up router
	router := routes.NewRouter(appointmentHandler, nil, metrics)
	handler := router.SetupRoutes()

	// Create HTTP server
	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("addr", serverAddr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("server shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}

	if eventBus != nil {
		if err := eventBus.Close(); err != nil {
			log.Error().Err(err).Msg("error closing event bus")
		}
	}

	log.Info().Msg("server stopped")
}
