// Package metrics содержит счётчики Prometheus для оформления подписок и вебхуков.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Результаты для меток result.
const (
	ResultOK        = "ok"
	ResultError     = "error"
	ResultRejected  = "rejected"
	ResultDuplicate = "duplicate"
	ResultIgnored   = "ignored"
)

// Recorder набор счётчиков. Методы безопасны на nil-получателе.
type Recorder struct {
	checkoutSessions *prometheus.CounterVec
	webhookEvents    *prometheus.CounterVec
}

// New регистрирует счётчики в reg.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		checkoutSessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "checkout",
			Name:      "sessions_total",
			Help:      "Checkout session attempts by result.",
		}, []string{"result"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stripe",
			Name:      "webhook_events_total",
			Help:      "Received webhook events by kind and result.",
		}, []string{"kind", "result"}),
	}
	reg.MustRegister(r.checkoutSessions, r.webhookEvents)
	return r
}

// CheckoutSession учитывает попытку оформления.
func (r *Recorder) CheckoutSession(result string) {
	if r == nil {
		return
	}
	r.checkoutSessions.WithLabelValues(result).Inc()
}

// WebhookEvent учитывает обработанное событие.
func (r *Recorder) WebhookEvent(kind, result string) {
	if r == nil {
		return
	}
	r.webhookEvents.WithLabelValues(kind, result).Inc()
}

// WebhookEventCounter счётчик событий с метками kind и result.
func (r *Recorder) WebhookEventCounter(kind, result string) prometheus.Counter {
	return r.webhookEvents.WithLabelValues(kind, result)
}

// CheckoutSessionCounter счётчик оформлений с меткой result.
func (r *Recorder) CheckoutSessionCounter(result string) prometheus.Counter {
	return r.checkoutSessions.WithLabelValues(result)
}
