package cart

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var persistenceFailures = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "storefront_cart_persistence_failures_total",
		Help: "Cart persist/restore failures that were logged and swallowed.",
	},
	[]string{"op"},
)
