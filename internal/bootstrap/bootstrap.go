// Package bootstrap brings up the shared process resources every binary
// needs: env, config, logger, database and the optional Redis client.
package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"os"
	"slices"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/erpcore/pkg/config"
	"github.com/angelmondragon/erpcore/pkg/db"
	"github.com/angelmondragon/erpcore/pkg/instance"
	"github.com/angelmondragon/erpcore/pkg/logger"
	"github.com/angelmondragon/erpcore/pkg/migrate"
	"github.com/angelmondragon/erpcore/pkg/redis"
)

const metricsShutdownTimeout = 5 * time.Second

// Runtime holds the resources opened for one process. Redis is nil when no
// endpoint is configured.
type Runtime struct {
	Kind   string
	Config *config.Config
	Logger *logger.Logger
	DB     *db.Client
	Redis  *redis.Client

	closers []func() error
}

// Must opens the runtime for kind or logs the failure and exits.
func Must(ctx context.Context, kind string) *Runtime {
	rt, err := open(ctx, kind)
	if err != nil {
		rt.Fatal(ctx, "failed to start "+kind, err)
	}
	return rt
}

func open(ctx context.Context, kind string) (*Runtime, error) {
	rt := &Runtime{Kind: kind, Logger: logger.New(logger.Options{ServiceName: kind})}
	if err := godotenv.Load(); err != nil {
		rt.Logger.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		return rt, err
	}
	cfg.Service.Kind = kind
	rt.Config = cfg
	rt.Logger = logger.New(logger.Options{
		ServiceName: kind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if rt.DB, err = db.New(ctx, cfg.DB, rt.Logger); err != nil {
		return rt, err
	}
	rt.closers = append(rt.closers, rt.DB.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, rt.Logger, rt.DB); err != nil {
		return rt, err
	}

	if cfg.Redis.Enabled() {
		if rt.Redis, err = redis.New(ctx, cfg.Redis, rt.Logger); err != nil {
			return rt, err
		}
		rt.closers = append(rt.closers, rt.Redis.Close)
	}
	return rt, nil
}

// Context tags ctx with the process identity fields every log line carries.
func (rt *Runtime) Context(ctx context.Context, extra map[string]any) context.Context {
	fields := map[string]any{
		"env":          rt.Config.App.Env,
		"service_kind": rt.Kind,
		"instance":     instance.ID(rt.Kind),
		"redis":        rt.Redis != nil,
	}
	for k, v := range extra {
		fields[k] = v
	}
	return rt.Logger.WithFields(ctx, fields)
}

// ServeMetrics exposes /metrics on the configured address until ctx ends.
// It does nothing when no address is set.
func (rt *Runtime) ServeMetrics(ctx context.Context) {
	addr := rt.Config.App.MetricsAddr
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), metricsShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rt.Logger.Error(ctx, "metrics listener stopped", err)
		}
	}()
}

// Close releases resources in reverse order of opening.
func (rt *Runtime) Close() {
	for _, closeFn := range slices.Backward(rt.closers) {
		if err := closeFn(); err != nil {
			rt.Logger.Error(context.Background(), "error closing "+rt.Kind+" resource", err)
		}
	}
	rt.closers = nil
}

// Fatal logs err, releases what was opened and exits non-zero.
func (rt *Runtime) Fatal(ctx context.Context, msg string, err error) {
	rt.Logger.Error(ctx, msg, err)
	rt.Close()
	os.Exit(1)
}
