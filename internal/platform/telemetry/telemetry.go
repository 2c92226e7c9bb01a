// Package telemetry wires Prometheus metrics and OpenTelemetry spans into the
// HTTP server and the booking engine.
package telemetry

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const namespace = "tarot_time"

// Provider owns the metric registry and the tracer used by the middlewares.
type Provider struct {
	registry *prometheus.Registry
	tracer   trace.Tracer

	activeRequests  prometheus.Gauge
	requestDuration *prometheus.HistogramVec
	responseSize    *prometheus.HistogramVec

	Booking *BookingMetrics
}

// NewProvider builds a provider with its own registry. Go runtime and process
// collectors are registered alongside the HTTP and booking metrics.
func NewProvider(serviceName string) *Provider {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	p := &Provider{
		registry: reg,
		tracer:   otel.Tracer(serviceName),
		activeRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "active_requests",
			Help:      "Requests currently being served",
		}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		responseSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "response_size_bytes",
			Help:      "HTTP response size by route",
			Buckets:   prometheus.ExponentialBuckets(100, 4, 8),
		}, []string{"method", "route"}),
	}
	reg.MustRegister(p.activeRequests, p.requestDuration, p.responseSize)
	p.Booking = NewBookingMetrics(reg)
	return p
}

func (p *Provider) Registry() *prometheus.Registry { return p.registry }

// MetricsMiddleware records request latency and size per route pattern.
func (p *Provider) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p.activeRequests.Inc()
			start := time.Now()

			err := next(c)

			p.activeRequests.Dec()
			route := routeOf(c)
			method := c.Request().Method
			status := strconv.Itoa(statusOf(c, err))
			p.requestDuration.WithLabelValues(method, route, status).Observe(time.Since(start).Seconds())
			if size := c.Response().Size; size > 0 {
				p.responseSize.WithLabelValues(method, route).Observe(float64(size))
			}
			return err
		}
	}
}

// TracingMiddleware starts a server span per request named after the route
// pattern. Handlers pick it up from the request context.
func (p *Provider) TracingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			route := routeOf(c)
			ctx, span := p.tracer.Start(req.Context(), "HTTP "+req.Method+" "+route,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.method", req.Method),
					attribute.String("http.route", route),
				),
			)
			defer span.End()
			c.SetRequest(req.WithContext(ctx))

			err := next(c)

			status := statusOf(c, err)
			if err != nil {
				span.RecordError(err)
			}
			span.SetAttributes(attribute.Int("http.status_code", status))
			if status >= 500 {
				span.SetStatus(codes.Error, strconv.Itoa(status))
			}
			return err
		}
	}
}

// Handler serves the registry in Prometheus exposition format.
func (p *Provider) Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{}))
}

// statusOf returns the status the error handler will write when the handler
// returned an error without committing a response.
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

func routeOf(c echo.Context) string {
	if route := c.Path(); route != "" {
		return route
	}
	return "unmatched"
}
