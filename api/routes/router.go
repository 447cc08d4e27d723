package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/miketere/businesscard-sub000/api/controllers"
	webhookcontrollers "github.com/miketere/businesscard-sub000/api/controllers/webhooks"
	"github.com/miketere/businesscard-sub000/api/middleware"
	paymongowebhook "github.com/miketere/businesscard-sub000/internal/webhooks/paymongo"
	"github.com/miketere/businesscard-sub000/pkg/config"
	"github.com/miketere/businesscard-sub000/pkg/db"
	"github.com/miketere/businesscard-sub000/pkg/logger"
	"github.com/miketere/businesscard-sub000/pkg/paymongo"
)

// RouterParams groups everything the HTTP surface depends on.
type RouterParams struct {
	Config          *config.Config
	Logger          *logger.Logger
	DB              db.Pinger
	Redis           db.Pinger
	PlanCatalog     controllers.PlanCatalog
	Lifecycle       controllers.LifecycleService
	FeatureGate     controllers.FeatureGate
	PayMongoClient  *paymongo.Client
	WebhookService  *paymongowebhook.Service
	WebhookGuard    *paymongowebhook.IdempotencyGuard
	MetricsGatherer prometheus.Gatherer
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
		r.Get("/ready", controllers.HealthReady(cfg, params.DB, params.Redis, logg))
	})

	if params.MetricsGatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(params.MetricsGatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/paymongo", webhookcontrollers.PayMongoWebhook(params.WebhookService, params.PayMongoClient, params.WebhookGuard, logg))
	})

	r.Get("/api/v1/plans", controllers.ListPlans(params.PlanCatalog, logg))

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/v1/billing", func(r chi.Router) {
			r.Post("/purchase", controllers.Purchase(params.Lifecycle, logg))
			r.Post("/subscribe", controllers.Subscribe(params.Lifecycle, logg))
			r.Post("/cancel", controllers.CancelSubscription(params.Lifecycle, logg))
			r.Get("/subscription", controllers.GetSubscription(params.Lifecycle, logg))
			r.Get("/payments", controllers.ListPayments(params.Lifecycle, logg))
		})

		r.Route("/v1/entitlements", func(r chi.Router) {
			r.Get("/", controllers.GetEntitlements(params.FeatureGate, logg))
			r.Get("/cards", controllers.CheckCardEntitlement(params.FeatureGate, logg))
			r.Get("/contacts", controllers.CheckContactEntitlement(params.FeatureGate, logg))
		})

		r.Route("/admin/v1/plans", func(r chi.Router) {
			r.Post("/{planId}/sync", controllers.SyncPlan(params.PlanCatalog, logg))
		})
	})

	return r
}
