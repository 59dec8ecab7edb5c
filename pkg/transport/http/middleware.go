package http

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/urfave/negroni"
)

const requestIDHeader = "X-Request-Id"

type requestIDKey struct{}

// RequestIDFromContext returns the id assigned by the request logger, or an
// empty string.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// NewRequestLogger logs one line per request. It reuses an incoming
// X-Request-Id or generates one, and echoes it on the response.
func NewRequestLogger(logger *logrus.Logger) negroni.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
		start := time.Now()

		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.New().String()
		}
		rw.Header().Set(requestIDHeader, id)

		next(rw, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))

		status := 0
		if nrw, ok := rw.(negroni.ResponseWriter); ok {
			status = nrw.Status()
		}

		logger.WithFields(logrus.Fields{
			"request_id": id,
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     status,
			"duration":   time.Since(start),
		}).Info("request")
	}
}

// routeMetrics instruments each route with promhttp, labelled by the route
// name given at registration rather than the raw path.
type routeMetrics struct {
	inFlight prometheus.Gauge
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newRouteMetrics(registerer prometheus.Registerer) *routeMetrics {
	m := &routeMetrics{
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Requests currently being served",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Requests served by route, method and status code",
		}, []string{"route", "method", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Time to serve a request by route, method and status code",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"route", "method", "code"}),
	}
	registerer.MustRegister(m.inFlight, m.requests, m.duration)

	return m
}

// Route wraps next so its requests are counted and timed under route.
func (m *routeMetrics) Route(route string, next http.HandlerFunc) http.HandlerFunc {
	labels := prometheus.Labels{"route": route}

	h := promhttp.InstrumentHandlerInFlight(m.inFlight,
		promhttp.InstrumentHandlerDuration(m.duration.MustCurryWith(labels),
			promhttp.InstrumentHandlerCounter(m.requests.MustCurryWith(labels), next)))

	return h.ServeHTTP
}
