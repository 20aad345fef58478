package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/stridehub/sync-server-go/internal/config"
	"github.com/stridehub/sync-server-go/internal/database"
	"github.com/stridehub/sync-server-go/internal/garmin"
	"github.com/stridehub/sync-server-go/internal/handler"
	"github.com/stridehub/sync-server-go/internal/jobs"
	"github.com/stridehub/sync-server-go/internal/middleware"
	"github.com/stridehub/sync-server-go/internal/redis"
	"github.com/stridehub/sync-server-go/internal/repository"
	"github.com/stridehub/sync-server-go/internal/service"
	"github.com/stridehub/sync-server-go/internal/tasks"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("FLY_APP_NAME") != ""
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	if cfg.AutoMigrate {
		migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := db.Migrate(migrateCtx); err != nil {
			log.Fatal().Err(err).Msg("failed to apply schema")
		}
		migrateCancel()
		log.Info().Msg("schema applied")
	}

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	taskClient, err := tasks.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create task client")
	}
	defer taskClient.Close()

	integrationRepo := repository.NewIntegrationRepository(db.DB)
	chunkRepo := repository.NewBackfillChunkRepository(db.DB)
	healthRepo := repository.NewHealthMetricRepository(db.DB)
	activityRepo := repository.NewActivityRepository(db.DB)
	activationRepo := repository.NewActivationRepository(db.DB)

	garminClient := garmin.NewClient(cfg.GarminClientID, cfg.GarminClientSecret, cfg.GarminAPIBaseURL)

	tokenService := service.NewTokenService(cfg, integrationRepo, garminClient)
	backfillService := service.NewBackfillService(cfg, chunkRepo, garminClient)
	activationService := service.NewActivationService(activationRepo, taskClient)
	ingestService := service.NewIngestService(integrationRepo, healthRepo, activityRepo, backfillService, activationService)

	signatureMiddleware := middleware.NewWebhookSignatureMiddleware(cfg.WebhookSignatureSecret)
	serviceAuthMiddleware := middleware.NewServiceAuthMiddleware(cfg.ServiceToken)
	rateLimitMiddleware := middleware.NewRedisRateLimitMiddleware(redisClient.Client, cfg.WebhookRateLimitPerMin)
	payloadLimitMiddleware := middleware.NewPayloadLimitMiddleware(cfg.MaxBodyBytes)

	webhookHandler := handler.NewWebhookHandler(ingestService)
	backfillHandler := handler.NewBackfillHandler(backfillService, tokenService, activationService)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(payloadLimitMiddleware.Handler)

	r.Group(func(r chi.Router) {
		r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]any{
				"status":    "ok",
				"timestamp": time.Now().UnixMilli(),
			})
		})

		r.Route("/garmin", func(r chi.Router) {
			r.Use(signatureMiddleware.Handler)
			r.Use(rateLimitMiddleware.Handler)
			r.Post("/webhook", webhookHandler.Push)
			r.Post("/webhook/{dataType}", webhookHandler.PushByType)
		})
	})

	// A synchronous backfill run outlives the standard request timeout, so
	// the management routes carry their own bound sized to the worst-case
	// chunk plan.
	r.Route("/v1", func(r chi.Router) {
		r.Use(serviceAuthMiddleware.Handler)
		r.Use(chimiddleware.Timeout(cfg.BackfillRunTimeout()))
		r.Mount("/", backfillHandler.Routes())
	})

	reconcileJob := jobs.NewReconcileJob(chunkRepo, integrationRepo, cfg.StaleChunkAge(), config.ReconcileJobInterval)
	reconcileJob.Start()
	defer reconcileJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
