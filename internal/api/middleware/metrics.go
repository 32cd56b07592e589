package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/donaldgifford/ebay-connector/internal/metrics"
)

// unmatchedRoute labels requests no route matched.
const unmatchedRoute = "unmatched"

// probes are not counted as requests; they drive the up gauges instead.
var probes = map[string]prometheus.Gauge{
	"/healthz": metrics.HealthzUp,
	"/readyz":  metrics.ReadyzUp,
}

func unobserved(route string) bool {
	return route == "/metrics" ||
		strings.HasPrefix(route, "/docs") ||
		strings.HasPrefix(route, "/openapi")
}

// Metrics returns Echo middleware that records API request counts,
// durations and concurrency. Requests are labeled by route template so
// listing and product ids stay out of the label set.
func Metrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			route := c.Path()
			if gauge, ok := probes[route]; ok {
				err := next(c)
				gauge.Set(boolGauge(statusOf(c, err) < http.StatusMultipleChoices))
				return err
			}
			if unobserved(route) {
				return next(c)
			}
			if route == "" {
				route = unmatchedRoute
			}

			metrics.HTTPRequestsInFlight.Inc()
			defer metrics.HTTPRequestsInFlight.Dec()

			start := time.Now()
			err := next(c)
			labels := []string{c.Request().Method, route, strconv.Itoa(statusOf(c, err))}
			metrics.HTTPRequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
			metrics.HTTPRequestsTotal.WithLabelValues(labels...).Inc()
			return err
		}
	}
}

// statusOf is the status the client will see. Errors returned to Echo are
// written after the middleware chain unwinds, so their code wins over the
// still uncommitted response.
func statusOf(c echo.Context, err error) int {
	if err == nil || c.Response().Committed {
		return c.Response().Status
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return http.StatusInternalServerError
}

func boolGauge(ok bool) float64 {
	if ok {
		return 1
	}
	return 0
}
