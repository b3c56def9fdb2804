// Package stocklock serializes check-then-act sequences on stock cells and
// order headers.
package stocklock

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/erpcore/pkg/config"
	pkgerrors "github.com/angelmondragon/erpcore/pkg/errors"
	"github.com/angelmondragon/erpcore/pkg/metrics"
)

const (
	defaultWait  = 5 * time.Second
	defaultTTL   = 30 * time.Second
	defaultRetry = 25 * time.Millisecond
)

// Key identifies one serialization point.
type Key string

// CellKey is the lock for every stock computation on (variant, location).
func CellKey(tenantID, variantID, locationID uuid.UUID) Key {
	return Key(fmt.Sprintf("cell:%s:%s:%s", tenantID, variantID, locationID))
}

// OrderKey is the lock guarding status transitions of one order.
func OrderKey(tenantID, orderID uuid.UUID) Key {
	return Key(fmt.Sprintf("order:%s:%s", tenantID, orderID))
}

// Locker acquires every key or none. The returned unlock releases them all and
// is safe to call more than once.
type Locker interface {
	Lock(ctx context.Context, keys ...Key) (unlock func(), err error)
}

// Options tunes a Locker.
type Options struct {
	Wait    time.Duration
	TTL     time.Duration
	Retry   time.Duration
	Metrics *metrics.StockMetrics
}

func (o Options) withDefaults() Options {
	if o.Wait <= 0 {
		o.Wait = defaultWait
	}
	if o.TTL <= 0 {
		o.TTL = defaultTTL
	}
	if o.Retry <= 0 {
		o.Retry = defaultRetry
	}
	return o
}

// New picks the backend named by cfg. store may be nil for the local backend.
func New(cfg config.InventoryConfig, store RedisStore, m *metrics.StockMetrics) (Locker, error) {
	opts := Options{Wait: cfg.LockWait, TTL: cfg.LockTTL, Retry: cfg.LockRetry, Metrics: m}
	if cfg.UsesRedisLock() {
		return NewRedis(store, opts)
	}
	return NewLocal(opts), nil
}

// normalize drops empty and duplicate keys and sorts the rest so every caller
// acquires in the same order.
func normalize(keys []Key) []Key {
	seen := make(map[Key]struct{}, len(keys))
	out := make([]Key, 0, len(keys))
	for _, key := range keys {
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func busyError(key Key, wait time.Duration) error {
	return pkgerrors.New(pkgerrors.CodeBusy, "stock lock busy").
		WithDetails(map[string]any{"key": string(key), "wait_ms": wait.Milliseconds()})
}

func noop() {}
