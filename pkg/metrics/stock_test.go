package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestStockMetricsExport(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewStockMetrics(reg)
	m.ObserveLockWait("local", 20*time.Millisecond)
	m.IncLockBusy("redis")
	m.IncInsufficient("reserve")
	m.IncInsufficient("reserve")
	m.IncNegativeBalance()
	m.AddExpired(3)
	m.AddExpired(0)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := metricValue(mfs, "erp_stock_insufficient_total", map[string]string{"operation": "reserve"}); err != nil || got != 2 {
		t.Fatalf("expected insufficient=2, got %f err=%v", got, err)
	}
	if got, err := metricValue(mfs, "erp_stock_lock_busy_total", map[string]string{"backend": "redis"}); err != nil || got != 1 {
		t.Fatalf("expected busy=1, got %f err=%v", got, err)
	}
	if got, err := metricValue(mfs, "erp_stock_lock_wait_seconds", map[string]string{"backend": "local"}); err != nil || got <= 0 {
		t.Fatalf("expected lock wait sum > 0, got %f err=%v", got, err)
	}
	if got, err := metricValue(mfs, "erp_stock_reservations_expired_total", nil); err != nil || got != 3 {
		t.Fatalf("expected expired=3")
	}
	if got, err := metricValue(mfs, "erp_stock_negative_balance_total", nil); err != nil || got != 1 {
		t.Fatalf("expected negative=1")
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var stock *StockMetrics
	stock.IncLockBusy("local")
	stock.AddExpired(2)

	var pub *PublisherMetrics
	pub.IncPublished("stock.adjusted")
	pub.SetBreakerState(2)

	NewStockMetrics(nil).IncNegativeBalance()
	NewPublisherMetrics(nil).IncTerminal("order.created")
}

func TestPublisherMetricsExport(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPublisherMetrics(reg)
	m.IncPublished("order.created")
	m.IncFailed("order.created")
	m.IncTerminal("stock.adjusted")
	m.SetBreakerState(2)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := metricValue(mfs, "erp_outbox_published_total", map[string]string{"event_type": "order.created"}); err != nil || got != 1 {
		t.Fatalf("expected published=1, got %f err=%v", got, err)
	}
	if got, err := metricValue(mfs, "erp_outbox_terminal_total", map[string]string{"event_type": "stock.adjusted"}); err != nil || got != 1 {
		t.Fatalf("expected terminal=1, got %f err=%v", got, err)
	}
	if got, err := metricValue(mfs, "erp_outbox_breaker_state", nil); err != nil || got != 2 {
		t.Fatalf("expected breaker state 2")
	}
}

func TestEmptyLabelsReportUnknown(t *testing.T) {
	reg := prometheus.NewRegistry()
	stock := NewStockMetrics(reg)
	stock.IncInsufficient("")
	stock.IncLockBusy("")
	pub := NewPublisherMetrics(reg)
	pub.IncFailed("")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := metricValue(mfs, "erp_stock_insufficient_total", map[string]string{"operation": "unknown"}); err != nil || got != 1 {
		t.Fatalf("expected insufficient{operation=unknown}=1, got %f err=%v", got, err)
	}
	if got, err := metricValue(mfs, "erp_stock_lock_busy_total", map[string]string{"backend": "unknown"}); err != nil || got != 1 {
		t.Fatalf("expected busy{backend=unknown}=1, got %f err=%v", got, err)
	}
	if got, err := metricValue(mfs, "erp_outbox_failed_total", map[string]string{"event_type": "unknown"}); err != nil || got != 1 {
		t.Fatalf("expected failed{event_type=unknown}=1, got %f err=%v", got, err)
	}
}
