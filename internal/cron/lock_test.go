package cron

import (
	"context"
	"testing"
	"time"
)

type fakeRedis struct {
	values map[string]string
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := f.values[key]; ok {
		return false, nil
	}
	f.values[key] = value.(string)
	return true, nil
}

func (f *fakeRedis) CompareAndDelete(_ context.Context, key, owner string) (bool, error) {
	if f.values[key] != owner {
		return false, nil
	}
	delete(f.values, key)
	return true, nil
}

func (f *fakeRedis) LockKey(name string) string { return "erp:lock:" + name }

func TestRedisLockIsExclusivePerJob(t *testing.T) {
	ctx := context.Background()
	store := &fakeRedis{values: map[string]string{}}
	locks := RedisLocks(store, time.Minute)

	first, _ := locks("sweep")
	second, _ := locks("sweep")
	other, _ := locks("other")

	if ok, err := first.Acquire(ctx); err != nil || !ok {
		t.Fatalf("first acquire: %v %v", ok, err)
	}
	if ok, _ := second.Acquire(ctx); ok {
		t.Fatalf("second replica must not acquire a held job")
	}
	if ok, _ := other.Acquire(ctx); !ok {
		t.Fatalf("different job should acquire")
	}
	if _, ok := store.values["erp:lock:cron:sweep"]; !ok {
		t.Fatalf("expected namespaced key, have %v", store.values)
	}

	if err := second.Release(ctx); err != nil {
		t.Fatalf("release by non-owner: %v", err)
	}
	if _, ok := store.values["erp:lock:cron:sweep"]; !ok {
		t.Fatalf("non-owner release removed the lease")
	}
	if err := first.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, _ := second.Acquire(ctx); !ok {
		t.Fatalf("lock should be free after owner release")
	}
}

func TestLocalLock(t *testing.T) {
	ctx := context.Background()
	lock := NewLocalLock()
	if ok, _ := lock.Acquire(ctx); !ok {
		t.Fatalf("expected acquire")
	}
	if ok, _ := lock.Acquire(ctx); ok {
		t.Fatalf("expected busy")
	}
	_ = lock.Release(ctx)
	if ok, _ := lock.Acquire(ctx); !ok {
		t.Fatalf("expected acquire after release")
	}
}
