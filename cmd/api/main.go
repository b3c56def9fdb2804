package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/erpcore/api/controllers"
	"github.com/angelmondragon/erpcore/api/routes"
	"github.com/angelmondragon/erpcore/internal/bootstrap"
	"github.com/angelmondragon/erpcore/internal/bundles"
	"github.com/angelmondragon/erpcore/internal/catalog"
	"github.com/angelmondragon/erpcore/internal/events"
	"github.com/angelmondragon/erpcore/internal/ledger"
	"github.com/angelmondragon/erpcore/internal/limits"
	"github.com/angelmondragon/erpcore/internal/orders"
	"github.com/angelmondragon/erpcore/internal/reservations"
	"github.com/angelmondragon/erpcore/internal/stock"
	"github.com/angelmondragon/erpcore/internal/stocklock"
	"github.com/angelmondragon/erpcore/internal/units"
	"github.com/angelmondragon/erpcore/pkg/env"
	"github.com/angelmondragon/erpcore/pkg/metrics"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt := bootstrap.Must(ctx, "api")
	defer rt.Close()
	cfg, logg, dbClient, redisClient := rt.Config, rt.Logger, rt.DB, rt.Redis
	requireResource := func(name string, err error) {
		if err != nil {
			rt.Fatal(ctx, "failed to initialize "+name, err)
		}
	}

	readiness := map[string]controllers.Pinger{"db": dbClient, "redis": nil}
	var lockStore stocklock.RedisStore
	if redisClient != nil {
		lockStore = redisClient
		readiness["redis"] = redisClient
	}

	stockMetrics := metrics.NewStockMetrics(prometheus.DefaultRegisterer)
	locker, err := stocklock.New(cfg.Inventory, lockStore, stockMetrics)
	requireResource("stock locker", err)

	gdb := dbClient.DB()
	conv, err := units.NewConverter(gdb)
	requireResource("unit converter", err)

	recorder, err := events.NewRecorder(events.NewRepository(gdb), logg)
	requireResource("event recorder", err)

	stockLedger, err := stock.NewLedger(dbClient, stock.NewRepository(gdb), conv, recorder, locker, stockMetrics, logg)
	requireResource("stock ledger", err)

	reservationSvc, err := reservations.NewService(dbClient, reservations.NewRepository(gdb), conv, stockLedger,
		recorder, locker, stockMetrics, logg, cfg.Inventory.ReservationTTL)
	requireResource("reservations service", err)

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(gdb))
	requireResource("ledger service", err)

	ordersSvc, err := orders.NewService(dbClient, orders.NewRepository(gdb), conv, stockLedger, reservationSvc,
		ledgerSvc, recorder, locker, stockMetrics, logg)
	requireResource("orders service", err)

	bundleSvc, err := bundles.NewService(dbClient, bundles.NewRepository(gdb), conv, stockLedger, recorder, locker, logg)
	requireResource("bundles service", err)

	gate, err := limits.NewGate(gdb, limits.NewStaticPlans(cfg.Limits))
	requireResource("limits gate", err)

	catalogSvc, err := catalog.NewService(dbClient, catalog.NewRepository(gdb), gate, recorder, logg)
	requireResource("catalog service", err)

	addr := ":" + env.Get("PORT", cfg.App.Port)
	ctx = rt.Context(ctx, map[string]any{
		"addr":         addr,
		"lock_backend": cfg.Inventory.LockBackend,
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, readiness, promhttp.Handler(), redisClient,
			stockLedger, reservationSvc, ordersSvc, bundleSvc, catalogSvc, recorder),
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logg.Info(groupCtx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logg.Info(shutdownCtx, "shutting down api server")
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		rt.Fatal(ctx, "api server stopped unexpectedly", err)
	}
}
