package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PricingMetrics tracks exchange rate activations and the resulting recomputes.
type PricingMetrics struct {
	recomputed  *prometheus.CounterVec
	activeRate  prometheus.Gauge
	activations prometheus.Counter
}

func NewPricingMetrics(reg prometheus.Registerer) *PricingMetrics {
	if reg == nil {
		return &PricingMetrics{}
	}
	recomputed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "price_recompute_items_total",
		Help:      "Foods visited by price recomputes, by outcome.",
	}, []string{"outcome"})
	activeRate := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "exchange_rate_active",
		Help:      "Currently active rials-per-dollar exchange rate.",
	})
	activations := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "exchange_rate_activations_total",
		Help:      "Exchange rate activations.",
	})
	reg.MustRegister(recomputed, activeRate, activations)
	return &PricingMetrics{recomputed: recomputed, activeRate: activeRate, activations: activations}
}

// ObserveActivation records a new active rate.
func (p *PricingMetrics) ObserveActivation(rate float64) {
	if p == nil || p.activeRate == nil {
		return
	}
	p.activeRate.Set(rate)
	p.activations.Inc()
}

// ObserveRecompute records the per-item outcome of a recompute.
func (p *PricingMetrics) ObserveRecompute(updated, failed int) {
	if p == nil || p.recomputed == nil {
		return
	}
	p.recomputed.WithLabelValues("updated").Add(float64(updated))
	p.recomputed.WithLabelValues("failed").Add(float64(failed))
}
