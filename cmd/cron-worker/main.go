package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/erpcore/internal/bootstrap"
	"github.com/angelmondragon/erpcore/internal/cron"
	"github.com/angelmondragon/erpcore/internal/events"
	"github.com/angelmondragon/erpcore/internal/reservations"
	"github.com/angelmondragon/erpcore/internal/stock"
	"github.com/angelmondragon/erpcore/internal/stocklock"
	"github.com/angelmondragon/erpcore/internal/units"
	"github.com/angelmondragon/erpcore/pkg/metrics"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt := bootstrap.Must(ctx, "cron-worker")
	defer rt.Close()
	cfg, logg := rt.Config, rt.Logger

	locks := cron.LocalLocks()
	if rt.Redis != nil {
		locks = cron.RedisLocks(rt.Redis, cfg.Cron.LockTTL)
	} else {
		logg.Warn(ctx, "redis not configured, cron locks are process-local")
	}

	sweeper, err := buildSweeper(rt, metrics.NewStockMetrics(prometheus.DefaultRegisterer))
	if err != nil {
		rt.Fatal(ctx, "failed to build reservation sweeper", err)
	}
	expiryJob, err := cron.NewReservationExpiryJob(logg, sweeper)
	if err != nil {
		rt.Fatal(ctx, "failed to create reservation expiry job", err)
	}
	registry, err := cron.NewRegistry(expiryJob)
	if err != nil {
		rt.Fatal(ctx, "failed to create cron registry", err)
	}
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Locks:    locks,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.SweepInterval,
	})
	if err != nil {
		rt.Fatal(ctx, "failed to create cron service", err)
	}

	ctx = rt.Context(ctx, map[string]any{"interval": cfg.Cron.SweepInterval.String()})
	rt.ServeMetrics(ctx)
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		rt.Fatal(ctx, "cron worker stopped unexpectedly", err)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}

// buildSweeper wires the reservation service the expiry job drives. Only
// the stock ledger's release path is exercised here.
func buildSweeper(rt *bootstrap.Runtime, m *metrics.StockMetrics) (*reservations.Service, error) {
	var lockStore stocklock.RedisStore
	if rt.Redis != nil {
		lockStore = rt.Redis
	}
	locker, err := stocklock.New(rt.Config.Inventory, lockStore, m)
	if err != nil {
		return nil, err
	}
	gdb := rt.DB.DB()
	conv, err := units.NewConverter(gdb)
	if err != nil {
		return nil, err
	}
	recorder, err := events.NewRecorder(events.NewRepository(gdb), rt.Logger)
	if err != nil {
		return nil, err
	}
	stockLedger, err := stock.NewLedger(rt.DB, stock.NewRepository(gdb), conv, recorder, locker, m, rt.Logger)
	if err != nil {
		return nil, err
	}
	return reservations.NewService(rt.DB, reservations.NewRepository(gdb), conv, stockLedger,
		recorder, locker, m, rt.Logger, rt.Config.Inventory.ReservationTTL)
}
