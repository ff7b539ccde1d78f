package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/partsdirect-backend/api/routes"
	"github.com/angelmondragon/partsdirect-backend/internal/address"
	"github.com/angelmondragon/partsdirect-backend/internal/cart"
	"github.com/angelmondragon/partsdirect-backend/internal/catalog"
	"github.com/angelmondragon/partsdirect-backend/internal/checkoutdrafts"
	"github.com/angelmondragon/partsdirect-backend/internal/coupons"
	"github.com/angelmondragon/partsdirect-backend/internal/orders"
	"github.com/angelmondragon/partsdirect-backend/internal/payments"
	"github.com/angelmondragon/partsdirect-backend/internal/settings"
	"github.com/angelmondragon/partsdirect-backend/pkg/config"
	"github.com/angelmondragon/partsdirect-backend/pkg/db"
	"github.com/angelmondragon/partsdirect-backend/pkg/instance"
	"github.com/angelmondragon/partsdirect-backend/pkg/logger"
	"github.com/angelmondragon/partsdirect-backend/pkg/metrics"
	"github.com/angelmondragon/partsdirect-backend/pkg/migrate"
	"github.com/angelmondragon/partsdirect-backend/pkg/outbox"
	"github.com/angelmondragon/partsdirect-backend/pkg/redis"
	"github.com/angelmondragon/partsdirect-backend/pkg/stripe"
)

const shutdownTimeout = 15 * time.Second

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
		Env:         cfg.App.Env,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)

	conn := dbClient.DB()
	products := catalog.NewRepository(conn)
	emitter := outbox.NewWriter(outbox.NewStore(conn), logg)
	ordersRepo := orders.NewRepository(conn)

	cartService, err := cart.NewService(cart.NewRepository(conn), products)
	if err != nil {
		logg.Error(ctx, "failed to create cart service", err)
		os.Exit(1)
	}
	addressService, err := address.NewService(address.NewRepository(conn))
	if err != nil {
		logg.Error(ctx, "failed to create address service", err)
		os.Exit(1)
	}
	couponService, err := coupons.NewService(
		coupons.NewRepository(conn),
		coupons.NewRedisCache(redisClient, cfg.Coupons.CacheTTL),
		checkoutMetrics,
		logg,
	)
	if err != nil {
		logg.Error(ctx, "failed to create coupon service", err)
		os.Exit(1)
	}
	draftService, err := checkoutdrafts.NewService(checkoutdrafts.NewRepository(conn), cartService, cfg.Checkout.DraftTTL)
	if err != nil {
		logg.Error(ctx, "failed to create checkout draft service", err)
		os.Exit(1)
	}
	ordersService, err := orders.NewService(orders.Deps{
		Repo:      ordersRepo,
		Tx:        dbClient,
		Carts:     cartService,
		Catalog:   products,
		Addresses: addressService,
		Coupons:   couponService,
		Shipping:  settings.NewRepository(conn),
		Drafts:    draftService,
		Outbox:    emitter,
		Metrics:   checkoutMetrics,
		Logger:    logg,
	}, orders.Options{
		OriginState:    cfg.Checkout.OriginState,
		NumberAttempts: cfg.Checkout.OrderNumberAttempts,
	})
	if err != nil {
		logg.Error(ctx, "failed to create orders service", err)
		os.Exit(1)
	}

	gateway, err := payments.NewStripeGateway(stripeClient.API())
	if err != nil {
		logg.Error(ctx, "failed to create payment gateway", err)
		os.Exit(1)
	}
	paymentsService, err := payments.NewService(ordersRepo, dbClient, gateway, emitter, checkoutMetrics, logg)
	if err != nil {
		logg.Error(ctx, "failed to create payments service", err)
		os.Exit(1)
	}
	verifier, err := payments.NewVerifier(cfg.Payments.WebhookSecret)
	if err != nil {
		logg.Error(ctx, "failed to create webhook verifier", err)
		os.Exit(1)
	}
	webhookGuard, err := payments.NewIdempotencyGuard(redisClient, cfg.Payments.IdempotencyTTL)
	if err != nil {
		logg.Error(ctx, "failed to create webhook idempotency guard", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})
	logg.Info(logCtx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			registry,
			checkoutMetrics,
			cartService,
			couponService,
			draftService,
			ordersService,
			paymentsService,
			verifier,
			webhookGuard,
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(logCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(logCtx, "api server shutdown failed", err)
		}
		logg.Info(logCtx, "api server stopped")
	}
}
