package stocklock

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/erpcore/pkg/errors"
)

const backendRedis = "redis"

// RedisStore is the subset of pkg/redis.Client used for cross-process locks.
type RedisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	CompareAndDelete(ctx context.Context, key, owner string) (bool, error)
	CompareAndExpire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	LockKey(name string) string
}

// Redis serializes keys across processes with SET NX and an owner token.
// Held keys are re-extended every TTL/3 until unlock, so a transaction that
// outlives TTL keeps its cells.
type Redis struct {
	store RedisStore
	opts  Options
}

func NewRedis(store RedisStore, opts Options) (*Redis, error) {
	if store == nil {
		return nil, fmt.Errorf("redis store required")
	}
	return &Redis{store: store, opts: opts.withDefaults()}, nil
}

func (r *Redis) Lock(ctx context.Context, keys ...Key) (func(), error) {
	keys = normalize(keys)
	if len(keys) == 0 {
		return noop, nil
	}

	owner := uuid.NewString()
	start := time.Now()
	deadline := start.Add(r.opts.Wait)

	held := make([]string, 0, len(keys))
	for _, key := range keys {
		redisKey := r.store.LockKey(string(key))
		if err := r.acquire(ctx, redisKey, owner, deadline); err != nil {
			r.releaseAll(held, owner)
			if pkgerrors.Is(err, pkgerrors.CodeBusy) {
				r.opts.Metrics.IncLockBusy(backendRedis)
				return nil, busyError(key, r.opts.Wait)
			}
			return nil, err
		}
		held = append(held, redisKey)
	}
	r.opts.Metrics.ObserveLockWait(backendRedis, time.Since(start))

	stop := make(chan struct{})
	done := make(chan struct{})
	go r.keepAlive(held, owner, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			r.releaseAll(held, owner)
		})
	}, nil
}

// keepAlive extends every held key until stop closes. A key that can no longer
// be extended has expired or been taken and is dropped from renewal.
func (r *Redis) keepAlive(keys []string, owner string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	interval := max(r.opts.TTL/3, time.Millisecond)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	live := slices.Clone(keys)
	for len(live) > 0 {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		ctx, cancel := context.WithTimeout(context.Background(), interval)
		kept := live[:0]
		for _, key := range live {
			ok, err := r.store.CompareAndExpire(ctx, key, owner, r.opts.TTL)
			if err != nil || ok {
				kept = append(kept, key)
				continue
			}
			r.opts.Metrics.IncLockLost(backendRedis)
		}
		cancel()
		live = kept
	}
	<-stop
}

func (r *Redis) acquire(ctx context.Context, key, owner string, deadline time.Time) error {
	for {
		ok, err := r.store.SetNX(ctx, key, owner, r.opts.TTL)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire stock lock")
		}
		if ok {
			return nil
		}
		if !time.Now().Before(deadline) {
			return pkgerrors.New(pkgerrors.CodeBusy, "stock lock busy")
		}
		sleep := r.opts.Retry/2 + rand.N(r.opts.Retry)
		if remaining := time.Until(deadline); sleep > remaining {
			sleep = remaining
		}
		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// releaseAll uses a fresh context so a cancelled request still frees its keys.
func (r *Redis) releaseAll(keys []string, owner string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for i := len(keys) - 1; i >= 0; i-- {
		_, _ = r.store.CompareAndDelete(ctx, keys[i], owner)
	}
}
