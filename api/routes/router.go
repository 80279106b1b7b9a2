package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nestfin/nestfin-backend/api/controllers"
	webhookcontrollers "github.com/nestfin/nestfin-backend/api/controllers/webhooks"
	"github.com/nestfin/nestfin-backend/api/middleware"
	"github.com/nestfin/nestfin-backend/internal/events"
	"github.com/nestfin/nestfin-backend/internal/items"
	syncsvc "github.com/nestfin/nestfin-backend/internal/sync"
	plaidwebhook "github.com/nestfin/nestfin-backend/internal/webhooks/plaid"
	"github.com/nestfin/nestfin-backend/pkg/config"
	"github.com/nestfin/nestfin-backend/pkg/logger"
	pkgredis "github.com/nestfin/nestfin-backend/pkg/redis"
)

// RouterParams collects everything the HTTP surface needs.
type RouterParams struct {
	Config         *config.Config
	Logger         *logger.Logger
	DB             controllers.Pinger
	Redis          controllers.Pinger
	Items          items.Service
	Sync           syncsvc.Service
	Events         events.Repository
	WebhookService *plaidwebhook.Service
	Idempotency    pkgredis.IdempotencyStore
	Gatherer       prometheus.Gatherer
}

func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"postgres": params.DB,
			"redis":    params.Redis,
		}))
	})

	if params.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(params.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/plaid", webhookcontrollers.PlaidWebhook(params.WebhookService, logg))
	})

	r.Route("/api/v1/plaid", func(r chi.Router) {
		r.Use(middleware.Idempotency(params.Idempotency, logg))
		r.Post("/exchange-token", controllers.PlaidExchangeToken(params.Items, params.Sync, logg))
		r.Get("/accounts", controllers.PlaidListAccounts(params.Items, params.Sync, logg))
		r.Post("/sync-accounts", controllers.PlaidSyncAccounts(params.Sync, logg))
		r.Post("/sync-transactions", controllers.PlaidSyncTransactions(params.Items, params.Sync, logg))
		r.Route("/items/{itemID}", func(r chi.Router) {
			r.Delete("/", controllers.PlaidDisconnectItem(params.Items, logg))
			r.Get("/events", controllers.PlaidItemEvents(params.Events, logg))
		})
	})

	return r
}
