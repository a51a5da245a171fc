package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/middleware"
)

// NewRouter creates a chi router with all storefront routes registered.
func NewRouter(
	products ProductSource,
	sessions SessionProvider,
	healthHandler *health.Handler,
	logger *slog.Logger,
	corsCfg middleware.CORSConfig,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics())
	r.Use(middleware.Tracing())
	r.Use(middleware.CORS(corsCfg))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	productHandler := NewProductHandler(products, logger)
	cartHandler := NewCartHandler(products, sessions, logger)
	checkoutHandler := NewCheckoutHandler(sessions, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON())
		r.Use(middleware.SessionID())
		r.Use(middleware.RequestLogger(logger))

		r.Get("/products", productHandler.ListProducts)
		r.Get("/products/{productId}", productHandler.GetProduct)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Delete("/", cartHandler.ClearCart)

			r.Post("/items", cartHandler.AddItem)
			r.Patch("/items/{productId}", cartHandler.ChangeQuantity)
			r.Delete("/items/{productId}", cartHandler.RemoveItem)
		})

		r.Post("/checkout", checkoutHandler.Submit)
		r.Get("/checkout/status", checkoutHandler.Status)
	})

	return r
}
