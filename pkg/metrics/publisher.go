package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PublisherMetrics tracks the event relay.
type PublisherMetrics struct {
	published *prometheus.CounterVec
	failed    *prometheus.CounterVec
	terminal  *prometheus.CounterVec
	breaker   prometheus.Gauge
}

// NewPublisherMetrics registers relay metrics on the provided registerer.
func NewPublisherMetrics(reg prometheus.Registerer) *PublisherMetrics {
	if reg == nil {
		return &PublisherMetrics{}
	}
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "erp_outbox_published_total",
		Help: "Events published to the broker.",
	}, []string{"event_type"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "erp_outbox_failed_total",
		Help: "Retryable publish failures.",
	}, []string{"event_type"})
	terminal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "erp_outbox_terminal_total",
		Help: "Events parked after exhausting retries or failing validation.",
	}, []string{"event_type"})
	breaker := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "erp_outbox_breaker_state",
		Help: "Publisher circuit breaker state (0 closed, 1 half-open, 2 open).",
	})
	reg.MustRegister(published, failed, terminal, breaker)
	return &PublisherMetrics{
		published: published,
		failed:    failed,
		terminal:  terminal,
		breaker:   breaker,
	}
}

func (m *PublisherMetrics) IncPublished(eventType string) {
	if m == nil || m.published == nil {
		return
	}
	m.published.WithLabelValues(normalizeLabel(eventType)).Inc()
}

func (m *PublisherMetrics) IncFailed(eventType string) {
	if m == nil || m.failed == nil {
		return
	}
	m.failed.WithLabelValues(normalizeLabel(eventType)).Inc()
}

func (m *PublisherMetrics) IncTerminal(eventType string) {
	if m == nil || m.terminal == nil {
		return
	}
	m.terminal.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// SetBreakerState records the numeric breaker state.
func (m *PublisherMetrics) SetBreakerState(state int) {
	if m == nil || m.breaker == nil {
		return
	}
	m.breaker.Set(float64(state))
}
