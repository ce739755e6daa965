package order

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ordersCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Orders opened on a payment gateway",
		},
		[]string{"gateway", "item_type"},
	)

	orderFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_creation_failures_total",
			Help: "Orders that could not be opened",
		},
		[]string{"gateway", "reason"},
	)

	verifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_verifications_total",
			Help: "Payment verification outcomes",
		},
		[]string{"gateway", "result"},
	)

	signatureMismatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_signature_mismatch_total",
			Help: "Payments whose signature or provider record did not match the order",
		},
		[]string{"gateway"},
	)
)
