// Package metrics собирает метрики Prometheus сервиса.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/magabrotheeeer/stock-alerts/internal/models"
)

const namespace = "stock_alerts"

// Metrics набор метрик с собственным реестром.
type Metrics struct {
	registry *prometheus.Registry

	events     *prometheus.CounterVec
	deliveries *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	reports    *prometheus.CounterVec
	webhooks   *prometheus.CounterVec
}

// New создаёт и регистрирует метрики.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_processed_total",
			Help:      "Processed platform events by decision.",
		}, []string{"event", "decision"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Notification deliveries by channel and result.",
		}, []string{"channel", "result"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "delivery_duration_seconds",
			Help:      "Duration of a single delivery attempt.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"channel"}),
		reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_sent_total",
			Help:      "Scheduled reports handed to fan-out.",
		}, []string{"kind"}),
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhooks_received_total",
			Help:      "Inbound webhook requests by source and status.",
		}, []string{"source", "status"}),
	}
	m.registry.MustRegister(
		m.events, m.deliveries, m.latency, m.reports, m.webhooks,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler HTTP обработчик для /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveEvent учитывает обработанное событие.
func (m *Metrics) ObserveEvent(event, decision string) {
	m.events.WithLabelValues(event, decision).Inc()
}

// ObserveDelivery учитывает попытку доставки.
func (m *Metrics) ObserveDelivery(d models.Delivery) {
	result := "ok"
	if !d.OK {
		result = "failed"
	}
	m.deliveries.WithLabelValues(string(d.Channel), result).Inc()
	m.latency.WithLabelValues(string(d.Channel)).Observe(d.Duration.Seconds())
}

// ObserveReport учитывает отправленный отчёт.
func (m *Metrics) ObserveReport(kind string) {
	m.reports.WithLabelValues(kind).Inc()
}

// ObserveWebhook учитывает входящий вебхук.
func (m *Metrics) ObserveWebhook(source, status string) {
	m.webhooks.WithLabelValues(source, status).Inc()
}
