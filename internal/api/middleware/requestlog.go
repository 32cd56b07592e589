// Package middleware provides the Echo middleware of the connector's HTTP
// server: request logging, panic recovery, metrics and tracing.
package middleware

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/trace"
)

const (
	requestIDHeader = "X-Request-ID"
	userHeader      = "X-Auth-User"
)

// probePaths are polled constantly by the orchestrator. Only their first
// success and every failure are logged.
var probePaths = map[string]struct{}{
	"/healthz": {},
	"/readyz":  {},
}

// RequestLog returns Echo middleware that logs requests with structured fields.
// It generates a request ID if none is provided and propagates it through
// the response header and echo context.
func RequestLog(log *slog.Logger) echo.MiddlewareFunc {
	var seen sync.Map

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()

			reqID := req.Header.Get(requestIDHeader)
			if reqID == "" {
				reqID = uuid.NewString()
			}

			c.Set("request_id", reqID)
			c.Response().Header().Set(requestIDHeader, reqID)

			err := next(c)

			status := c.Response().Status
			path := req.URL.Path
			if _, probe := probePaths[path]; probe && status < http.StatusBadRequest {
				if _, logged := seen.LoadOrStore(path, struct{}{}); logged {
					return err
				}
			}

			attrs := []any{
				"method", req.Method,
				"path", path,
				"status", status,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", reqID,
			}
			if user := req.Header.Get(userHeader); user != "" {
				attrs = append(attrs, "user", user)
			}
			if sc := trace.SpanContextFromContext(req.Context()); sc.HasTraceID() {
				attrs = append(attrs, "trace_id", sc.TraceID().String())
			}

			switch {
			case status >= http.StatusInternalServerError:
				log.Error("request", attrs...)
			case status >= http.StatusBadRequest:
				log.Warn("request", attrs...)
			default:
				log.Info("request", attrs...)
			}

			return err
		}
	}
}
