package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PaymentMetrics counts gateway round trips by outcome.
type PaymentMetrics struct {
	starts    *prometheus.CounterVec
	callbacks *prometheus.CounterVec
}

func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	starts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payment_starts_total",
		Help:      "Payment requests sent to the gateway, by outcome.",
	}, []string{"outcome"})
	callbacks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payment_callbacks_total",
		Help:      "Gateway callbacks handled, by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(starts, callbacks)
	return &PaymentMetrics{starts: starts, callbacks: callbacks}
}

func (p *PaymentMetrics) ObserveStart(outcome string) {
	if p == nil || p.starts == nil {
		return
	}
	p.starts.WithLabelValues(outcome).Inc()
}

func (p *PaymentMetrics) ObserveCallback(outcome string) {
	if p == nil || p.callbacks == nil {
		return
	}
	p.callbacks.WithLabelValues(outcome).Inc()
}
