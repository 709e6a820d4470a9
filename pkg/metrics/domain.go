package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DomainMetrics tracks marketplace business events.
type DomainMetrics struct {
	ordersCreated   prometheus.Counter
	transitions     *prometheus.CounterVec
	stockRejections prometheus.Counter
	authAttempts    *prometheus.CounterVec
	rateLimited     *prometheus.CounterVec
}

func NewDomainMetrics(reg prometheus.Registerer) *DomainMetrics {
	if reg == nil {
		return &DomainMetrics{}
	}
	m := &DomainMetrics{
		ordersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_created_total",
			Help:      "Orders placed successfully.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_transitions_total",
			Help:      "Order status and payment status changes.",
		}, []string{"field", "to"}),
		stockRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_stock_rejections_total",
			Help:      "Orders rejected because a product lacked stock.",
		}),
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_attempts_total",
			Help:      "Register and login attempts by outcome.",
		}, []string{"action", "outcome"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the auth rate limiter.",
		}, []string{"scope"}),
	}
	reg.MustRegister(m.ordersCreated, m.transitions, m.stockRejections, m.authAttempts, m.rateLimited)
	return m
}

func (m *DomainMetrics) OrderCreated() {
	if m == nil || m.ordersCreated == nil {
		return
	}
	m.ordersCreated.Inc()
}

// OrderTransition counts a change of field ("status" or "payment_status") to the given value.
func (m *DomainMetrics) OrderTransition(field, to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(field), normalizeLabel(to)).Inc()
}

func (m *DomainMetrics) StockRejected() {
	if m == nil || m.stockRejections == nil {
		return
	}
	m.stockRejections.Inc()
}

func (m *DomainMetrics) AuthAttempt(action string, ok bool) {
	if m == nil || m.authAttempts == nil {
		return
	}
	outcome := "failure"
	if ok {
		outcome = "success"
	}
	m.authAttempts.WithLabelValues(normalizeLabel(action), outcome).Inc()
}

func (m *DomainMetrics) RateLimited(scope string) {
	if m == nil || m.rateLimited == nil {
		return
	}
	m.rateLimited.WithLabelValues(normalizeLabel(scope)).Inc()
}
