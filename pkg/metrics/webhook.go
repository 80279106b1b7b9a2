package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WebhookMetrics records the fate of every inbound notification.
type WebhookMetrics struct {
	received  *prometheus.CounterVec
	duplicate *prometheus.CounterVec
	completed *prometheus.CounterVec
	failed    *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

// NewWebhookMetrics registers the webhook pipeline metrics on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	received := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_received_total",
		Help: "Notifications received at the webhook endpoint.",
	}, []string{"type", "code"})
	duplicate := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_duplicate_total",
		Help: "Notifications suppressed as duplicate deliveries.",
	}, []string{"type", "code"})
	completed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_completed_total",
		Help: "Notifications processed to completion.",
	}, []string{"type", "code"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_failed_total",
		Help: "Notifications whose handler failed.",
	}, []string{"type", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "webhook_processing_duration_seconds",
		Help:    "Time from receipt to terminal event status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"type", "code"})
	reg.MustRegister(received, duplicate, completed, failed, duration)
	return &WebhookMetrics{
		received:  received,
		duplicate: duplicate,
		completed: completed,
		failed:    failed,
		duration:  duration,
	}
}

// IncReceived increments the received counter.
func (m *WebhookMetrics) IncReceived(webhookType, webhookCode string) {
	if m == nil || m.received == nil {
		return
	}
	m.received.WithLabelValues(normalizeLabel(webhookType), normalizeLabel(webhookCode)).Inc()
}

// IncDuplicate increments the duplicate counter.
func (m *WebhookMetrics) IncDuplicate(webhookType, webhookCode string) {
	if m == nil || m.duplicate == nil {
		return
	}
	m.duplicate.WithLabelValues(normalizeLabel(webhookType), normalizeLabel(webhookCode)).Inc()
}

// IncCompleted increments the completed counter.
func (m *WebhookMetrics) IncCompleted(webhookType, webhookCode string) {
	if m == nil || m.completed == nil {
		return
	}
	m.completed.WithLabelValues(normalizeLabel(webhookType), normalizeLabel(webhookCode)).Inc()
}

// IncFailed increments the failed counter.
func (m *WebhookMetrics) IncFailed(webhookType, webhookCode string) {
	if m == nil || m.failed == nil {
		return
	}
	m.failed.WithLabelValues(normalizeLabel(webhookType), normalizeLabel(webhookCode)).Inc()
}

// ObserveDuration records end-to-end processing time.
func (m *WebhookMetrics) ObserveDuration(webhookType, webhookCode string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(webhookType), normalizeLabel(webhookCode)).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
