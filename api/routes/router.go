package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/erpcore/api/controllers"
	"github.com/angelmondragon/erpcore/api/middleware"
	"github.com/angelmondragon/erpcore/internal/orders"
	"github.com/angelmondragon/erpcore/pkg/config"
	"github.com/angelmondragon/erpcore/pkg/logger"
	"github.com/angelmondragon/erpcore/pkg/redis"
)

// NewRouter mounts the tenant API. redisClient may be nil, which disables
// idempotency replay and rate limiting.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	readiness map[string]controllers.Pinger,
	metricsHandler http.Handler,
	redisClient *redis.Client,
	stockSvc controllers.StockService,
	reservationSvc controllers.ReservationService,
	ordersSvc orders.Service,
	bundleSvc controllers.BundleService,
	catalogSvc controllers.CatalogService,
	eventFeed controllers.EventFeed,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	var (
		idemStore redis.IdempotencyStore
		rateStore middleware.RateLimitStore
	)
	if redisClient != nil {
		idemStore = redisClient
		rateStore = redisClient
	}
	idempotent := middleware.Idempotency(idemStore, logg, middleware.StandardIdempotencyTTL)
	critical := middleware.Idempotency(idemStore, logg, middleware.CriticalIdempotencyTTL)
	ratePolicy := middleware.NewRateLimitPolicy("api", cfg.RateLimit.Window, cfg.RateLimit.TenantLimit, cfg.RateLimit.UserLimit)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/api/v1/tenants/{tenantId}", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.TenantScope(logg))
		r.Use(middleware.RateLimit(ratePolicy, rateStore, logg))

		r.Route("/stock", func(r chi.Router) {
			r.With(idempotent).Post("/adjustments", controllers.StockAdjust(stockSvc, logg))
			r.Get("/movements", controllers.StockMovements(stockSvc, logg))
			r.Get("/variants/{variantId}/locations/{locationId}", controllers.StockBalance(stockSvc, logg))
		})

		r.Route("/reservations", func(r chi.Router) {
			r.With(idempotent).Post("/", controllers.ReservationCreate(reservationSvc, logg))
			r.Post("/expire", controllers.ReservationExpire(reservationSvc, logg))
			r.Get("/{reservationId}", controllers.ReservationDetail(reservationSvc, logg))
			r.Delete("/{reservationId}", controllers.ReservationRelease(reservationSvc, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.OrderList(ordersSvc, logg))
			r.With(critical).Post("/", controllers.OrderCreate(ordersSvc, logg))
			r.Get("/{orderId}", controllers.OrderDetail(ordersSvc, logg))
			r.With(idempotent).Post("/{orderId}/cancel", controllers.OrderCancel(ordersSvc, logg))
			r.With(idempotent).Post("/{orderId}/complete", controllers.OrderComplete(ordersSvc, logg))
			r.With(critical).Post("/{orderId}/refund", controllers.OrderRefund(ordersSvc, logg))
			r.With(critical).Post("/{orderId}/payments", controllers.OrderPayment(ordersSvc, logg))
		})

		r.Route("/bundles/{variantId}", func(r chi.Router) {
			r.Get("/components", controllers.BundleComponents(bundleSvc, logg))
			r.Put("/components", controllers.BundleCompose(catalogSvc, logg))
			r.With(critical).Post("/sell", controllers.BundleSell(bundleSvc, logg))
		})

		r.Route("/locations", func(r chi.Router) {
			r.Get("/", controllers.LocationList(catalogSvc, logg))
			r.Post("/", controllers.LocationCreate(catalogSvc, logg))
		})

		r.Route("/variants", func(r chi.Router) {
			r.Post("/", controllers.VariantCreate(catalogSvc, logg))
			r.Get("/{variantId}", controllers.VariantDetail(catalogSvc, logg))
			r.Post("/{variantId}/units", controllers.UnitAdd(catalogSvc, logg))
		})

		r.Post("/customers", controllers.CustomerCreate(catalogSvc, logg))
		r.Get("/events", controllers.EventList(eventFeed, logg))
	})

	return r
}
