package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/receiptvault-backend/api/controllers"
	"github.com/angelmondragon/receiptvault-backend/api/routes"
	"github.com/angelmondragon/receiptvault-backend/internal/ingestion"
	"github.com/angelmondragon/receiptvault-backend/internal/query"
	"github.com/angelmondragon/receiptvault-backend/internal/receipts"
	"github.com/angelmondragon/receiptvault-backend/pkg/config"
	"github.com/angelmondragon/receiptvault-backend/pkg/db"
	"github.com/angelmondragon/receiptvault-backend/pkg/gemini"
	"github.com/angelmondragon/receiptvault-backend/pkg/logger"
	"github.com/angelmondragon/receiptvault-backend/pkg/metrics"
	"github.com/angelmondragon/receiptvault-backend/pkg/migrate"
	"github.com/angelmondragon/receiptvault-backend/pkg/pipeline"
	"github.com/angelmondragon/receiptvault-backend/pkg/qdrant"
	"github.com/angelmondragon/receiptvault-backend/pkg/redis"
	"github.com/angelmondragon/receiptvault-backend/pkg/storage/gcs"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gcsClient, err := gcs.NewClient(context.Background(), cfg.GCS, cfg.GCP, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap storage", err)
		os.Exit(1)
	}
	defer func() {
		if err := gcsClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing storage client", err)
		}
	}()

	geminiClient, err := gemini.NewClient(cfg.Gemini)
	if err != nil {
		logg.Error(context.Background(), "failed to create gemini client", err)
		os.Exit(1)
	}

	qdrantClient, err := qdrant.NewClient(cfg.Qdrant.BaseURL, cfg.Qdrant.APIKey, cfg.Qdrant.Collection, cfg.Qdrant.Timeout)
	if err != nil {
		logg.Error(context.Background(), "failed to create qdrant client", err)
		os.Exit(1)
	}

	notifier := pipeline.NewNotifier(cfg.Ingestion)
	pipelineMetrics := metrics.NewPipelineMetrics(prometheus.DefaultRegisterer)

	receiptsRepo := receipts.NewRepository(dbClient.DB())

	receiptsService, err := receipts.NewService(receiptsRepo, gcsClient, notifier, logg, cfg.GCS.UploadURLExpiry)
	if err != nil {
		logg.Error(context.Background(), "failed to create receipts service", err)
		os.Exit(1)
	}

	ingestionService, err := ingestion.NewService(receiptsRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create ingestion service", err)
		os.Exit(1)
	}

	queryService, err := query.NewService(geminiClient, qdrantClient, geminiClient, pipelineMetrics, logg, cfg.Qdrant.TopK)
	if err != nil {
		logg.Error(context.Background(), "failed to create query service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Dependencies{
			Config: cfg,
			Logger: logg,
			Pingers: map[string]controllers.Pinger{
				"database": dbClient,
				"redis":    redisClient,
				"storage":  gcsClient,
			},
			RateLimiter:      redisClient,
			ReceiptsService:  receiptsService,
			QueryService:     queryService,
			IngestionService: ingestionService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
