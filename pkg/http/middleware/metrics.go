package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sigpull_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	requestSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sigpull_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"route", "method", "status"},
	)

	inFlight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sigpull_http_in_flight_requests",
			Help: "Current number of in-flight HTTP requests",
		},
		[]string{"route", "method"},
	)

	responseBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sigpull_http_response_size_bytes",
			Help:    "HTTP response size in bytes",
			Buckets: []float64{200, 500, 1_000, 2_000, 5_000, 10_000, 50_000, 100_000, 500_000, 1_000_000},
		},
		[]string{"route", "method", "status"},
	)

	registerOnce sync.Once
)

// Metrics records per-route request counters, latency and response size.
// Routes are labeled with the echo route template, not the raw URL, so label
// cardinality stays bounded. Requests slower than slowThreshold are logged at
// warn level; a zero threshold disables that.
func Metrics(slowThreshold time.Duration) echo.MiddlewareFunc {
	registerOnce.Do(func() {
		prometheus.MustRegister(requestsTotal, requestSeconds, inFlight, responseBytes)
	})

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			route := c.Path()
			if route == "" {
				route = c.Request().URL.Path
			}
			method := c.Request().Method

			inFlight.WithLabelValues(route, method).Inc()
			start := time.Now()

			err := next(c)

			took := time.Since(start)
			status := strconv.Itoa(c.Response().Status)
			size := float64(c.Response().Size)

			requestsTotal.WithLabelValues(route, method, status).Inc()
			requestSeconds.WithLabelValues(route, method, status).Observe(took.Seconds())
			responseBytes.WithLabelValues(route, method, status).Observe(size)
			inFlight.WithLabelValues(route, method).Dec()

			if slowThreshold > 0 && took >= slowThreshold {
				log.Warn().
					Str("route", route).
					Str("method", method).
					Str("status", status).
					Dur("took", took).
					Msg("slow request")
			}

			return err
		}
	}
}
