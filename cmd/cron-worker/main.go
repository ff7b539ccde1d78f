package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/partsdirect-backend/internal/address"
	"github.com/angelmondragon/partsdirect-backend/internal/cart"
	"github.com/angelmondragon/partsdirect-backend/internal/catalog"
	"github.com/angelmondragon/partsdirect-backend/internal/checkoutdrafts"
	"github.com/angelmondragon/partsdirect-backend/internal/coupons"
	"github.com/angelmondragon/partsdirect-backend/internal/cron"
	"github.com/angelmondragon/partsdirect-backend/internal/orders"
	"github.com/angelmondragon/partsdirect-backend/internal/settings"
	"github.com/angelmondragon/partsdirect-backend/pkg/config"
	"github.com/angelmondragon/partsdirect-backend/pkg/db"
	"github.com/angelmondragon/partsdirect-backend/pkg/instance"
	"github.com/angelmondragon/partsdirect-backend/pkg/logger"
	"github.com/angelmondragon/partsdirect-backend/pkg/metrics"
	"github.com/angelmondragon/partsdirect-backend/pkg/migrate"
	"github.com/angelmondragon/partsdirect-backend/pkg/outbox"
	"github.com/angelmondragon/partsdirect-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Env:         cfg.App.Env,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
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

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)

	conn := dbClient.DB()
	products := catalog.NewRepository(conn)
	cartService, err := cart.NewService(cart.NewRepository(conn), products)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}
	addressService, err := address.NewService(address.NewRepository(conn))
	if err != nil {
		logg.Error(context.Background(), "failed to create address service", err)
		os.Exit(1)
	}
	couponService, err := coupons.NewService(coupons.NewRepository(conn), nil, nil, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create coupon service", err)
		os.Exit(1)
	}
	draftService, err := checkoutdrafts.NewService(checkoutdrafts.NewRepository(conn), cartService, cfg.Checkout.DraftTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout draft service", err)
		os.Exit(1)
	}
	outboxStore := outbox.NewStore(conn)
	ordersService, err := orders.NewService(orders.Deps{
		Repo:      orders.NewRepository(conn),
		Tx:        dbClient,
		Carts:     cartService,
		Catalog:   products,
		Addresses: addressService,
		Coupons:   couponService,
		Shipping:  settings.NewRepository(conn),
		Drafts:    draftService,
		Outbox:    outbox.NewWriter(outboxStore, logg),
		Logger:    logg,
	}, orders.Options{
		OriginState:    cfg.Checkout.OriginState,
		NumberAttempts: cfg.Checkout.OrderNumberAttempts,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	autoConfirm, err := cron.NewAutoConfirmJob(cron.AutoConfirmJobParams{
		Logger:  logg,
		Orders:  ordersService,
		Metrics: metricsCollector,
		Grace:   cfg.Scheduler.AutoConfirmGrace,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auto-confirm job", err)
		os.Exit(1)
	}
	draftExpiry, err := cron.NewCheckoutDraftExpiryJob(cron.CheckoutDraftExpiryJobParams{
		Logger:  logg,
		Drafts:  draftService,
		Metrics: metricsCollector,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create draft expiry job", err)
		os.Exit(1)
	}
	outboxRetention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:           logg,
		DB:               dbClient,
		Repository:       outboxStore,
		Metrics:          metricsCollector,
		Retention:        cfg.Scheduler.OutboxRetention,
		TerminalAttempts: cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox retention job", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry()
	for _, spec := range []struct {
		job      cron.Job
		lockName string
		interval time.Duration
		ttl      time.Duration
	}{
		{autoConfirm, "auto_confirm:lock", cfg.Scheduler.AutoConfirmInterval, cfg.Scheduler.AutoConfirmLockTTL},
		{draftExpiry, "checkout_draft_expiry:lock", cfg.Scheduler.DraftExpiryInterval, cfg.Scheduler.DraftExpiryLockTTL},
		{outboxRetention, "outbox_retention:lock", cfg.Scheduler.OutboxCleanupEvery, 0},
	} {
		lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(cfg.App.Env, spec.lockName), spec.ttl)
		if err != nil {
			logg.Error(context.Background(), "failed to create cron lock", err)
			os.Exit(1)
		}
		registry.Register(cron.Entry{Job: spec.job, Lock: lock, Interval: spec.interval, Renew: lock.TTL() / 3})
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Metrics:  metricsCollector,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}
