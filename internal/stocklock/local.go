package stocklock

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

const backendLocal = "local"

type localEntry struct {
	sem  *semaphore.Weighted
	refs int
}

// Local serializes keys inside one process.
type Local struct {
	opts Options

	mu      sync.Mutex
	entries map[Key]*localEntry
}

func NewLocal(opts Options) *Local {
	return &Local{opts: opts.withDefaults(), entries: make(map[Key]*localEntry)}
}

func (l *Local) Lock(ctx context.Context, keys ...Key) (func(), error) {
	keys = normalize(keys)
	if len(keys) == 0 {
		return noop, nil
	}

	start := time.Now()
	waitCtx, cancel := context.WithTimeout(ctx, l.opts.Wait)
	defer cancel()

	held := make([]Key, 0, len(keys))
	for _, key := range keys {
		entry := l.ref(key)
		if err := entry.sem.Acquire(waitCtx, 1); err != nil {
			l.unref(key)
			l.releaseAll(held)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) {
				l.opts.Metrics.IncLockBusy(backendLocal)
				return nil, busyError(key, l.opts.Wait)
			}
			return nil, err
		}
		held = append(held, key)
	}
	l.opts.Metrics.ObserveLockWait(backendLocal, time.Since(start))

	var once sync.Once
	return func() {
		once.Do(func() { l.releaseAll(held) })
	}, nil
}

func (l *Local) ref(key Key) *localEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.entries[key]
	if !ok {
		entry = &localEntry{sem: semaphore.NewWeighted(1)}
		l.entries[key] = entry
	}
	entry.refs++
	return entry
}

func (l *Local) unref(key Key) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.entries[key]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(l.entries, key)
	}
}

func (l *Local) releaseAll(keys []Key) {
	for i := len(keys) - 1; i >= 0; i-- {
		l.mu.Lock()
		entry := l.entries[keys[i]]
		l.mu.Unlock()
		if entry != nil {
			entry.sem.Release(1)
		}
		l.unref(keys[i])
	}
}

// size reports how many keys are tracked; used by tests.
func (l *Local) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
