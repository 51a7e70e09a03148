package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Tracks the number of HTTP requests.",
	}, []string{"method", "route", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Tracks the latencies for HTTP requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	postMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "linkup_post_mutations_total",
		Help: "Post mutations by kind (create, like, unlike, comment, delete).",
	}, []string{"kind"})

	notificationsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "linkup_notifications_created_total",
		Help: "Notifications persisted by type.",
	}, []string{"type"})
)

// Registry returns a registry holding the Go and process collectors and
// every metric above, for promhttp.HandlerFor.
func Registry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		requestsTotal,
		requestDuration,
		postMutations,
		notificationsCreated,
	)

	return registry
}

// Middleware records a count and latency per matched route.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}

			requestsTotal.WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).Inc()
			requestDuration.WithLabelValues(c.Request().Method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

func IncPostMutation(kind string) {
	postMutations.WithLabelValues(kind).Inc()
}

func IncNotification(kind string) {
	notificationsCreated.WithLabelValues(kind).Inc()
}
