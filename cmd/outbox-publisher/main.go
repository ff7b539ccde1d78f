package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/partsdirect-backend/pkg/config"
	"github.com/angelmondragon/partsdirect-backend/pkg/db"
	"github.com/angelmondragon/partsdirect-backend/pkg/logger"
	"github.com/angelmondragon/partsdirect-backend/pkg/metrics"
	"github.com/angelmondragon/partsdirect-backend/pkg/migrate"
	"github.com/angelmondragon/partsdirect-backend/pkg/outbox"
	"github.com/angelmondragon/partsdirect-backend/pkg/outbox/registry"
	"github.com/angelmondragon/partsdirect-backend/pkg/pubsub"
)

const serviceName = "outbox-publisher"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	_ = godotenv.Load()
	logg := logger.New(logger.Options{ServiceName: serviceName})

	cfg, err := config.Load()
	if err != nil {
		logg.Error(ctx, "config.load_failed", err)
		return err
	}
	cfg.Service.Kind = serviceName
	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Env:         cfg.App.Env,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "db.bootstrap_failed", err)
		return err
	}
	defer dbClient.Close()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "migrate.dev_failed", err)
		return err
	}

	routes, err := registry.New(cfg.PubSub)
	if err != nil {
		logg.Error(ctx, "registry.build_failed", err)
		return err
	}

	psClient, err := pubsub.NewClient(ctx, cfg.GCP, routes.Topics(), logg)
	if err != nil {
		logg.Error(ctx, "pubsub.bootstrap_failed", err)
		return err
	}
	defer psClient.Close()
	sink := newPubSubSink(psClient)
	defer sink.Stop()

	relay, err := NewRelay(RelayParams{
		DB:      dbClient,
		Store:   outbox.NewStore(dbClient.DB()),
		Router:  routes,
		Sink:    sink,
		Logger:  logg,
		Metrics: metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
		Config:  cfg.Outbox,
	})
	if err != nil {
		logg.Error(ctx, "relay.build_failed", err)
		return err
	}

	logg.Info(ctx, "relay.started")
	err = relay.Run(ctx)
	if errors.Is(err, context.Canceled) {
		logg.Info(ctx, "relay.stopped")
		return nil
	}
	logg.Error(ctx, "relay.crashed", err)
	return err
}
