package middleware_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	mw "github.com/donaldgifford/ebay-connector/internal/api/middleware"
)

// Not parallel: installs global providers.
func TestTracing(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	prevTP, prevProp := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})

	e := echo.New()
	e.Use(mw.Tracing())
	e.GET("/api/v1/listings/:id", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	e.POST("/api/v1/sync/:domain", func(echo.Context) error {
		return errors.New("core down")
	})

	t.Run("continues caller trace", func(t *testing.T) {
		exp.Reset()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/listings/lst-1", http.NoBody)
		req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
		e.ServeHTTP(httptest.NewRecorder(), req)

		spans := exp.GetSpans()
		require.Len(t, spans, 1)
		s := spans[0]
		assert.Equal(t, "GET /api/v1/listings/:id", s.Name)
		assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", s.SpanContext.TraceID().String())
		assert.Contains(t, s.Attributes, attribute.String("http.route", "/api/v1/listings/:id"))
		assert.Contains(t, s.Attributes, attribute.Int("http.response.status_code", http.StatusOK))
		assert.Equal(t, codes.Unset, s.Status.Code)
	})

	t.Run("marks server errors", func(t *testing.T) {
		exp.Reset()
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/sync/orders", http.NoBody))

		spans := exp.GetSpans()
		require.Len(t, spans, 1)
		assert.Equal(t, codes.Error, spans[0].Status.Code)
		assert.Contains(t, spans[0].Attributes, attribute.Int("http.response.status_code", http.StatusInternalServerError))
	})
}
