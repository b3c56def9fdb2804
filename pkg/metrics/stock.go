package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// StockMetrics covers cell locking and ledger anomalies.
type StockMetrics struct {
	lockWait     *prometheus.HistogramVec
	lockBusy     *prometheus.CounterVec
	lockLost     *prometheus.CounterVec
	insufficient *prometheus.CounterVec
	negative     prometheus.Counter
	expired      prometheus.Counter
}

// NewStockMetrics registers the stock metrics on the provided registerer.
func NewStockMetrics(reg prometheus.Registerer) *StockMetrics {
	if reg == nil {
		return &StockMetrics{}
	}
	lockWait := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "erp_stock_lock_wait_seconds",
		Help:    "Time spent waiting for stock cell locks.",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"backend"})
	lockBusy := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "erp_stock_lock_busy_total",
		Help: "Lock acquisitions that gave up after the wait bound.",
	}, []string{"backend"})
	lockLost := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "erp_stock_lock_lost_total",
		Help: "Held locks that expired or changed owner before release.",
	}, []string{"backend"})
	insufficient := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "erp_stock_insufficient_total",
		Help: "Operations rejected for insufficient available stock.",
	}, []string{"operation"})
	negative := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "erp_stock_negative_balance_total",
		Help: "Adjustments that left a stock cell below zero.",
	})
	expired := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "erp_stock_reservations_expired_total",
		Help: "Reservations deleted by the expiry sweep.",
	})
	reg.MustRegister(lockWait, lockBusy, lockLost, insufficient, negative, expired)
	return &StockMetrics{
		lockWait:     lockWait,
		lockBusy:     lockBusy,
		lockLost:     lockLost,
		insufficient: insufficient,
		negative:     negative,
		expired:      expired,
	}
}

func (m *StockMetrics) ObserveLockWait(backend string, wait time.Duration) {
	if m == nil || m.lockWait == nil {
		return
	}
	m.lockWait.WithLabelValues(normalizeLabel(backend)).Observe(wait.Seconds())
}

func (m *StockMetrics) IncLockBusy(backend string) {
	if m == nil || m.lockBusy == nil {
		return
	}
	m.lockBusy.WithLabelValues(normalizeLabel(backend)).Inc()
}

func (m *StockMetrics) IncLockLost(backend string) {
	if m == nil || m.lockLost == nil {
		return
	}
	m.lockLost.WithLabelValues(normalizeLabel(backend)).Inc()
}

func (m *StockMetrics) IncInsufficient(operation string) {
	if m == nil || m.insufficient == nil {
		return
	}
	m.insufficient.WithLabelValues(normalizeLabel(operation)).Inc()
}

func (m *StockMetrics) IncNegativeBalance() {
	if m == nil || m.negative == nil {
		return
	}
	m.negative.Inc()
}

func (m *StockMetrics) AddExpired(n int64) {
	if m == nil || m.expired == nil || n <= 0 {
		return
	}
	m.expired.Add(float64(n))
}
