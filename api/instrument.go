package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

type httpMetrics struct {
	inFlight  prometheus.Gauge
	requests  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	decisions *prometheus.CounterVec
	logins    *prometheus.CounterVec
}

func newHTTPMetrics(reg prometheus.Registerer) *httpMetrics {
	m := &httpMetrics{
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "termgate",
			Name:      "http_in_flight_requests",
			Help:      "In-flight HTTP requests.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "termgate",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "termgate",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latencies in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "termgate",
			Name:      "gate_decisions_total",
			Help:      "Gate decisions by outcome and reason.",
		}, []string{"outcome", "reason"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "termgate",
			Name:      "login_attempts_total",
			Help:      "Login form submissions by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.inFlight, m.requests, m.duration, m.decisions, m.logins)
	return m
}

// Instrument records request count, latency and in-flight requests. The
// route label is chi's route pattern so paths do not explode cardinality.
func (a *API) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.metrics == nil {
			next.ServeHTTP(w, r)
			return
		}
		a.metrics.inFlight.Inc()
		defer a.metrics.inFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := strconv.Itoa(sw.code)
		a.metrics.duration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
		a.metrics.requests.WithLabelValues(r.Method, route, status).Inc()
	})
}

func (a *API) countLogin(result string) {
	if a.metrics != nil {
		a.metrics.logins.WithLabelValues(result).Inc()
	}
}

type statusWriter struct {
	http.ResponseWriter
	code        int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.code = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
