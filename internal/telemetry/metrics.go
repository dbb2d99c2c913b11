// Package telemetry exposes the Prometheus metrics of the catalogue server.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eosc-beyond/resource-catalogue-server/internal/events"
)

// Metrics is the collector set of the server.
type Metrics struct {
	registry *prometheus.Registry

	httpDuration *prometheus.HistogramVec
	hookOutcomes *prometheus.CounterVec
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "catalogue",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route and status code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "code"}),
		hookOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "catalogue",
			Subsystem: "hooks",
			Name:      "deliveries_total",
			Help:      "Lifecycle event deliveries per hook and outcome.",
		}, []string{"hook", "event", "outcome"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpDuration,
		m.hookOutcomes,
	)
	return m
}

// ObserveHookOutcome satisfies events.OutcomeObserver.
func (m *Metrics) ObserveHookOutcome(hook string, ev events.Event, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.hookOutcomes.WithLabelValues(hook, string(ev.Type), outcome).Inc()
}

// HTTPMiddleware records request latency per chi route pattern.
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		m.httpDuration.
			WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).
			Observe(time.Since(start).Seconds())
	})
}

// Handler serves the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
