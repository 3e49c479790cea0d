package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors for one server. Collectors are registered on
// the registerer passed to NewMetrics, never on the global default.
type Metrics struct {
	gatherer prometheus.Gatherer

	httpInFlight        prometheus.Gauge
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	resourceTotal       *prometheus.CounterVec
	resourceDuration    *prometheus.HistogramVec
	reloadsTotal        *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors on reg.
func NewMetrics(reg *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{
		gatherer: reg,
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "squealy_http_in_flight_requests",
			Help: "In-flight HTTP requests.",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "squealy_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "squealy_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		resourceTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "squealy_resource_requests_total",
			Help: "Processed resource requests by outcome.",
		}, []string{"resource", "outcome"}),
		resourceDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "squealy_resource_duration_seconds",
			Help:    "Resource processing latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"resource"}),
		reloadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "squealy_catalog_reloads_total",
			Help: "Catalog reload attempts by result.",
		}, []string{"result"}),
	}

	for _, c := range []prometheus.Collector{
		m.httpInFlight,
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.resourceTotal,
		m.resourceDuration,
		m.reloadsTotal,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// ObserveResource records one processed resource request.
func (m *Metrics) ObserveResource(resourceID, outcome string, elapsed time.Duration) {
	m.resourceTotal.WithLabelValues(resourceID, outcome).Inc()
	m.resourceDuration.WithLabelValues(resourceID).Observe(elapsed.Seconds())
}

// ObserveReload records a catalog reload result ("success" or "failure").
func (m *Metrics) ObserveReload(result string) {
	m.reloadsTotal.WithLabelValues(result).Inc()
}

// RouteFunc names the route of a request for the route label. It is called
// after the handler ran so routers can report their matched pattern.
type RouteFunc func(r *http.Request) string

// Instrument wraps next with request count, latency and in-flight metrics.
// A nil route func labels by URL path.
func (m *Metrics) Instrument(route RouteFunc) func(http.Handler) http.Handler {
	if route == nil {
		route = func(r *http.Request) string { return r.URL.Path }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.httpInFlight.Inc()
			defer m.httpInFlight.Dec()

			start := time.Now()
			sw := &StatusWriter{ResponseWriter: w, Code: http.StatusOK}
			next.ServeHTTP(sw, r)

			status := strconv.Itoa(sw.Code)
			name := route(r)
			m.httpRequestDuration.WithLabelValues(r.Method, name, status).Observe(time.Since(start).Seconds())
			m.httpRequestsTotal.WithLabelValues(r.Method, name, status).Inc()
		})
	}
}

// StatusWriter records the response status code.
type StatusWriter struct {
	http.ResponseWriter
	Code int
}

func (w *StatusWriter) WriteHeader(code int) {
	w.Code = code
	w.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *StatusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
