package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/receiptvault-backend/api/controllers"
	"github.com/angelmondragon/receiptvault-backend/api/middleware"
	"github.com/angelmondragon/receiptvault-backend/internal/ingestion"
	"github.com/angelmondragon/receiptvault-backend/internal/query"
	"github.com/angelmondragon/receiptvault-backend/internal/receipts"
	"github.com/angelmondragon/receiptvault-backend/pkg/config"
	"github.com/angelmondragon/receiptvault-backend/pkg/logger"
)

// Dependencies carries everything the router wires into handlers and
// middleware. Pingers feed the readiness probe; a nil pinger is skipped.
type Dependencies struct {
	Config  *config.Config
	Logger  *logger.Logger
	Pingers map[string]controllers.Pinger

	RateLimiter middleware.RateLimiterStore

	ReceiptsService  receipts.Service
	QueryService     query.Service
	IngestionService ingestion.Service
}

func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Pingers))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/receipts", func(r chi.Router) {
			r.Post("/upload", controllers.ReceiptsUpload(deps.ReceiptsService, logg))
			r.Post("/complete", controllers.ReceiptsComplete(deps.ReceiptsService, logg))
			r.Get("/", controllers.ReceiptsList(deps.ReceiptsService, logg))
			r.Get("/{receiptId}", controllers.ReceiptsGet(deps.ReceiptsService, logg))
			r.Get("/{receiptId}/view", controllers.ReceiptsView(deps.ReceiptsService, logg))
		})

		r.With(middleware.QueryRateLimit(
			cfg.Query.RateLimitCount,
			cfg.Query.RateLimitWindow,
			deps.RateLimiter,
			logg,
		)).Post("/ai/query", controllers.QueryAnswer(deps.QueryService, logg))
	})

	r.Route("/api/internal/v1", func(r chi.Router) {
		r.Use(middleware.InternalSecret(cfg.Ingestion.SharedSecret, logg))
		r.Post("/ingestion/extraction", controllers.IngestionExtraction(deps.IngestionService, logg))
	})

	return r
}
