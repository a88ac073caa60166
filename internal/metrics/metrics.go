// Package metrics exposes the Prometheus collectors of the API.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "comanda_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "comanda_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	orderTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "comanda_order_transitions_total",
		Help: "Order status transitions committed, by source and target status",
	}, []string{"from", "to", "order_type"})

	ordersCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "comanda_orders_created_total",
		Help: "Orders created, by order type",
	}, []string{"order_type"})

	paymentsFinalized = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "comanda_payments_finalized_total",
		Help: "Orders marked as paid, by payment method",
	}, []string{"method"})

	profileFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "comanda_profile_fallbacks_total",
		Help: "Profiles synthesized because none could be read",
	}, []string{"persisted"})

	realtimeClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "comanda_realtime_clients",
		Help: "Connected websocket clients",
	})
)

func ObserveHTTPRequest(method, route, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	httpRequestDuration.WithLabelValues(method, route, status).Observe(duration.Seconds())
}

func ObserveOrderTransition(from, to, orderType string) {
	orderTransitions.WithLabelValues(from, to, orderType).Inc()
}

func ObserveOrderCreated(orderType string) {
	ordersCreated.WithLabelValues(orderType).Inc()
}

// ObservePayment counts a finalized payment. An empty method is recorded
// as "unspecified".
func ObservePayment(method string) {
	if method == "" {
		method = "unspecified"
	}
	paymentsFinalized.WithLabelValues(method).Inc()
}

func ObserveProfileFallback(persisted bool) {
	label := "false"
	if persisted {
		label = "true"
	}
	profileFallbacks.WithLabelValues(label).Inc()
}

func IncRealtimeClients() { realtimeClients.Inc() }
func DecRealtimeClients() { realtimeClients.Dec() }
