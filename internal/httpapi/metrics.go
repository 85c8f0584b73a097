package httpapi

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// requestsTotal counts API requests. Labels: method, route, status
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "feedsift",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "API requests by route and status",
	}, []string{"method", "route", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "feedsift",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "API request latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	// expressionEdits counts filter expression edits. Labels: op, outcome
	expressionEdits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "feedsift",
		Subsystem: "expression",
		Name:      "edits_total",
		Help:      "Filter expression edits by operation and outcome",
	}, []string{"op", "outcome"})

	queriesTokenized = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "feedsift",
		Subsystem: "query",
		Name:      "tokenized_total",
		Help:      "Search queries tokenized",
	})

	dedupComparisons = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "feedsift",
		Subsystem: "dedup",
		Name:      "comparisons_total",
		Help:      "Explicit duplicate comparisons by decision",
	}, []string{"duplicate"})
)

func (s *Server) observeRequests() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			timer := prometheus.NewTimer(prometheus.ObserverFunc(func(seconds float64) {
				requestDuration.WithLabelValues(c.Request().Method, routeLabel(c)).Observe(seconds)
			}))
			err := next(c)
			timer.ObserveDuration()

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			requestsTotal.WithLabelValues(c.Request().Method, routeLabel(c), strconv.Itoa(status)).Inc()
			return err
		}
	}
}

// routeLabel keeps label cardinality bounded by using the route pattern.
func routeLabel(c echo.Context) string {
	if path := c.Path(); path != "" {
		return path
	}
	return "unmatched"
}
