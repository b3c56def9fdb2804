package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/erpcore/internal/bootstrap"
	"github.com/angelmondragon/erpcore/pkg/metrics"
	"github.com/angelmondragon/erpcore/pkg/outbox"
	"github.com/angelmondragon/erpcore/pkg/outbox/registry"
	"github.com/angelmondragon/erpcore/pkg/pubsub"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt := bootstrap.Must(ctx, "outbox-publisher")
	defer rt.Close()
	cfg, logg := rt.Config, rt.Logger

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		rt.Fatal(ctx, "failed to bootstrap pubsub", err)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub client", err)
		}
	}()

	eventRegistry, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		rt.Fatal(ctx, "failed to build event registry", err)
	}
	service, err := NewService(ServiceParams{
		Config:     cfg,
		Logger:     logg,
		DB:         rt.DB,
		Publisher:  pubsubClient,
		Repository: outbox.NewDeliveryRepository(rt.DB.DB()),
		Registry:   eventRegistry,
		Metrics:    metrics.NewPublisherMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		rt.Fatal(ctx, "failed to create outbox publisher", err)
	}

	ctx = rt.Context(ctx, map[string]any{
		"batch_size":  cfg.Outbox.BatchSize,
		"max_attempt": cfg.Outbox.MaxAttempts,
	})
	rt.ServeMetrics(ctx)
	logg.Info(ctx, "starting outbox publisher")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		rt.Fatal(ctx, "outbox publisher stopped unexpectedly", err)
	}
	logg.Info(ctx, "outbox publisher shutting down gracefully")
}
