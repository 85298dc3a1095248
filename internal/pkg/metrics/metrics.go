package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pintfinder",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pintfinder",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 10, 30},
	}, []string{"method", "path"})

	// Planning metrics
	RouteRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pintfinder",
		Subsystem: "routing",
		Name:      "requests_total",
		Help:      "Route requests by outcome (ok, network, backend, parse, timeout)",
	}, []string{"outcome"})

	RouteRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "pintfinder",
		Subsystem: "routing",
		Name:      "request_duration_seconds",
		Help:      "Duration of routing backend calls",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	})

	CrimeFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pintfinder",
		Subsystem: "crimefeed",
		Name:      "fetches_total",
		Help:      "Crime feed fetches by outcome (ok, error, cached)",
	}, []string{"outcome"})

	PhotoResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pintfinder",
		Subsystem: "photos",
		Name:      "resolutions_total",
		Help:      "Photo reference resolutions by outcome",
	}, []string{"outcome"})

	RenderGenerations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pintfinder",
		Subsystem: "render",
		Name:      "generations_total",
		Help:      "Route render passes by outcome (drawn, duplicate, dropped)",
	}, []string{"outcome"})

	ActiveSurfaces = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pintfinder",
		Subsystem: "surface",
		Name:      "active",
		Help:      "Current number of live map surfaces",
	})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pintfinder",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of attached browser views",
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pintfinder",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pintfinder",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	return func(c *fiber.Ctx) error {
		handler(c.Context())
		return nil
	}
}
