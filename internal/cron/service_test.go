package cron

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"go.uber.org/multierr"

	"github.com/angelmondragon/erpcore/pkg/logger"
)

type fakeLock struct {
	acquired bool
	busy     bool
	releases int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.busy || f.acquired {
		return false, nil
	}
	f.acquired = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.acquired = false
	f.releases++
	return nil
}

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
}

func fixedLocks(locks map[string]*fakeLock) LockFactory {
	return func(job string) (Lock, error) {
		lock, ok := locks[job]
		if !ok {
			lock = &fakeLock{}
			locks[job] = lock
		}
		return lock, nil
	}
}

func TestRunCycleRunsAllJobsAndCombinesFailures(t *testing.T) {
	ok := &testJob{name: "ok"}
	failA := &testJob{name: "fail-a", err: errors.New("boom")}
	failB := &testJob{name: "fail-b", err: errors.New("bang")}
	registry, err := NewRegistry(failA, ok, failB)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	locks := map[string]*fakeLock{}
	service, err := NewService(ServiceParams{Logger: testLogger(), Registry: registry, Locks: fixedLocks(locks)})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}

	err = service.runCycle(context.Background())
	if got := len(multierr.Errors(err)); got != 2 {
		t.Fatalf("expected 2 combined errors, got %d (%v)", got, err)
	}
	if !strings.Contains(err.Error(), "fail-a") || !strings.Contains(err.Error(), "fail-b") {
		t.Fatalf("errors should name their jobs: %v", err)
	}
	for _, job := range []*testJob{ok, failA, failB} {
		if job.runs != 1 {
			t.Fatalf("job %s ran %d times", job.name, job.runs)
		}
		if locks[job.name].releases != 1 {
			t.Fatalf("lock for %s not released", job.name)
		}
	}
}

func TestRunCycleSkipsJobsHeldElsewhere(t *testing.T) {
	held := &testJob{name: "held"}
	free := &testJob{name: "free"}
	registry, err := NewRegistry(held, free)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	locks := map[string]*fakeLock{"held": {busy: true}}
	service, err := NewService(ServiceParams{Logger: testLogger(), Registry: registry, Locks: fixedLocks(locks)})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	if err := service.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if held.runs != 0 || free.runs != 1 {
		t.Fatalf("expected held skipped and free run, got %d/%d", held.runs, free.runs)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	job := &testJob{name: "once"}
	registry, _ := NewRegistry(job)
	service, err := NewService(ServiceParams{Logger: testLogger(), Registry: registry, Locks: LocalLocks()})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := service.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if job.runs != 1 {
		t.Fatalf("expected an immediate first cycle, got %d runs", job.runs)
	}
}

func TestNewServiceRequiresLocks(t *testing.T) {
	if _, err := NewService(ServiceParams{Logger: testLogger()}); err == nil {
		t.Fatalf("expected error without lock factory")
	}
}
