package checkout

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Submission outcomes.
const (
	outcomeSuccess      = "success"
	outcomeInvalidEmail = "invalid_email"
	outcomeInProgress   = "in_progress"
	outcomeEmptyCart    = "empty_cart"
	outcomeInvalidTotal = "invalid_total"
	outcomeOrderFailed  = "order_failed"
)

var (
	submissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_checkout_submissions_total",
			Help: "Checkout submissions by outcome.",
		},
		[]string{"outcome"},
	)

	inFlightGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "storefront_checkout_in_flight",
			Help: "Number of checkouts currently waiting on the order service.",
		},
	)
)
