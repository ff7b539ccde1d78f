package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/partsdirect-backend/api/controllers"
	cartcontrollers "github.com/angelmondragon/partsdirect-backend/api/controllers/cart"
	checkoutcontrollers "github.com/angelmondragon/partsdirect-backend/api/controllers/checkout"
	couponcontrollers "github.com/angelmondragon/partsdirect-backend/api/controllers/coupons"
	ordercontrollers "github.com/angelmondragon/partsdirect-backend/api/controllers/orders"
	paymentcontrollers "github.com/angelmondragon/partsdirect-backend/api/controllers/payments"
	webhookcontrollers "github.com/angelmondragon/partsdirect-backend/api/controllers/webhooks"
	"github.com/angelmondragon/partsdirect-backend/api/middleware"
	"github.com/angelmondragon/partsdirect-backend/internal/cart"
	"github.com/angelmondragon/partsdirect-backend/internal/checkoutdrafts"
	"github.com/angelmondragon/partsdirect-backend/internal/coupons"
	"github.com/angelmondragon/partsdirect-backend/internal/orders"
	"github.com/angelmondragon/partsdirect-backend/internal/payments"
	"github.com/angelmondragon/partsdirect-backend/pkg/config"
	"github.com/angelmondragon/partsdirect-backend/pkg/db"
	"github.com/angelmondragon/partsdirect-backend/pkg/enums"
	"github.com/angelmondragon/partsdirect-backend/pkg/logger"
	"github.com/angelmondragon/partsdirect-backend/pkg/metrics"
	"github.com/angelmondragon/partsdirect-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	gatherer prometheus.Gatherer,
	checkoutMetrics *metrics.CheckoutMetrics,
	cartService cart.Service,
	couponService coupons.Service,
	draftService checkoutdrafts.Service,
	ordersService orders.Service,
	paymentsService payments.Service,
	webhookVerifier *payments.Verifier,
	webhookGuard *payments.IdempotencyGuard,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	// a nil *redis.Client must not reach the middlewares as a non-nil interface
	var (
		idempotencyStore redis.IdempotencyStore
		cachePinger      controllers.Pinger
	)
	if redisClient != nil {
		idempotencyStore = redisClient
		cachePinger = redisClient
	}
	var dbPinger controllers.Pinger
	if dbP != nil {
		dbPinger = dbP
	}

	previewPolicy := middleware.NewRateLimitPolicy("coupon_preview", cfg.RateLimit.PreviewWindow, cfg.RateLimit.PreviewLimit)
	poller := payments.Poller{Attempts: cfg.Payments.PollAttempts, Delay: cfg.Payments.PollDelay}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbPinger, cachePinger))
	})
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.Ping("public"))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/payments", webhookcontrollers.PaymentWebhook(paymentsService, webhookVerifier, webhookGuard, checkoutMetrics, logg))
	})

	// Cart and coupon preview accept guests identified by X-Session-Id.
	r.Group(func(r chi.Router) {
		r.Use(middleware.OptionalAuth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Route("/api/v1/cart", func(r chi.Router) {
			r.Get("/", cartcontrollers.CartFetch(cartService, logg))
			r.Delete("/", cartcontrollers.CartClear(cartService, logg))
			r.Post("/items", cartcontrollers.CartAddItem(cartService, logg))
			r.Patch("/items/{itemId}", cartcontrollers.CartUpdateItem(cartService, logg))
			r.Delete("/items/{itemId}", cartcontrollers.CartRemoveItem(cartService, logg))
			r.Post("/coupon", couponcontrollers.CartApplyCoupon(couponService, cartService, logg))
			r.Delete("/coupon", couponcontrollers.CartRemoveCoupon(cartService, logg))
		})
		r.With(middleware.RateLimit(previewPolicy, rateLimiter(redisClient), logg)).
			Post("/api/v1/coupons/preview", couponcontrollers.CouponPreview(couponService, cartService, logg))
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Route("/api/v1/checkout/drafts", func(r chi.Router) {
			r.Post("/", checkoutcontrollers.DraftCreate(draftService, logg))
			r.Get("/{draftId}", checkoutcontrollers.DraftGet(draftService, logg))
		})
		r.Route("/api/v1/orders", func(r chi.Router) {
			r.Post("/", ordercontrollers.PlaceOrder(ordersService, logg))
			r.Get("/", ordercontrollers.History(ordersService, logg))
			r.Get("/{orderNumber}", ordercontrollers.Detail(ordersService, logg))
			r.Post("/{orderNumber}/cancel", ordercontrollers.Cancel(ordersService, logg))
		})
		r.Route("/api/v1/payments/{paymentId}", func(r chi.Router) {
			r.Get("/", paymentcontrollers.Status(paymentsService, poller, logg))
			r.Post("/confirm", paymentcontrollers.Confirm(paymentsService, poller, logg))
		})

		r.Route("/api/v1/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, string(enums.UserRoleAdmin)))
			r.Get("/ping", controllers.Ping("admin"))
			r.Route("/coupons", func(r chi.Router) {
				r.Post("/", couponcontrollers.AdminCouponCreate(couponService, logg))
				r.Put("/{couponId}", couponcontrollers.AdminCouponUpdate(couponService, logg))
				r.Post("/{couponId}/deactivate", couponcontrollers.AdminCouponDeactivate(couponService, logg))
			})
		})
	})

	return r
}

type fixedWindowStore interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (redis.Window, error)
}

func rateLimiter(client *redis.Client) fixedWindowStore {
	if client == nil {
		return nil
	}
	return client
}
