package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	callbackOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hyperpay_callback_outcomes_total",
			Help: "Callback resolutions by processor, outcome and error kind",
		},
		[]string{"processor", "outcome", "error_kind"},
	)

	gatewayRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hyperpay_gateway_request_duration_seconds",
			Help:    "Latency of outbound HyperPay API calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	ordersCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hyperpay_orders_created_total",
			Help: "Orders finalized from successful payments",
		},
		[]string{"processor"},
	)
)

// CountCallbackOutcome records one resolved callback.
func CountCallbackOutcome(processor, outcome, errorKind string) {
	callbackOutcomes.WithLabelValues(processor, outcome, errorKind).Inc()
}

// ObserveGatewayRequest records the latency of one HyperPay API call.
func ObserveGatewayRequest(operation string, d time.Duration) {
	gatewayRequestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// CountOrderCreated records one finalized order.
func CountOrderCreated(processor string) {
	ordersCreated.WithLabelValues(processor).Inc()
}
