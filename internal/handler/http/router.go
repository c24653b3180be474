package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/catalogcart/internal/service"
	"github.com/utafrali/catalogcart/pkg/health"
	"github.com/utafrali/catalogcart/pkg/middleware"
)

const serviceName = "catalogcart"

// RouterConfig holds the HTTP concerns that vary by deployment.
type RouterConfig struct {
	CORS           middleware.CORSConfig
	PprofCIDRs     []string
	RequestTimeout time.Duration
	RateLimitRPS   float64 // per client IP; zero disables
	RateLimitBurst int
}

// NewRouter creates a chi router with all cart and catalog routes registered.
func NewRouter(
	cartService *service.CartService,
	productService *service.ProductService,
	healthHandler *health.Handler,
	cfg RouterConfig,
	logger *slog.Logger,
) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(cfg.RequestTimeout))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(serviceName))
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	rateLimit := middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst, logger)
	cartHandler := NewCartHandler(cartService, logger)

	r.Route("/api/cart", func(r chi.Router) {
		r.Use(rateLimit)
		r.Use(ContentTypeJSON)
		r.Use(middleware.NoStore)

		r.Post("/add", cartHandler.AddToCart)
		r.Delete("/remove", cartHandler.RemoveFromCart)
		r.Get("/{sessionId}", cartHandler.GetCart)
		r.Delete("/{sessionId}", cartHandler.ClearCart)
	})

	productHandler := NewProductHandler(productService, logger)

	r.Route("/api/products", func(r chi.Router) {
		r.Use(rateLimit)
		r.Use(ContentTypeJSON)
		r.Use(middleware.NoStore)

		r.Post("/", productHandler.CreateProduct)
		r.Get("/", productHandler.ListProducts)
		r.Get("/search/{name}", productHandler.SearchProducts)
		r.Get("/{productId}", productHandler.GetProduct)
		r.Put("/{productId}", productHandler.UpdateProduct)
		r.Delete("/{productId}", productHandler.DeleteProduct)
		r.Patch("/{productId}/stock", productHandler.UpdateStock)
		r.Get("/{productId}/availability", productHandler.CheckAvailability)
	})

	return r
}
