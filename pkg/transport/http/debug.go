package http

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/urfave/negroni"
)

// NewDebugServer serves /metrics from gatherer and /healthz from checker.
func NewDebugServer(checker Checker, gatherer prometheus.Gatherer, logger *logrus.Logger, opts ...Option) *Server {
	router := httprouter.New()
	router.Handler(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	router.HandlerFunc(http.MethodGet, "/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		if err := checker.Ping(r.Context()); err != nil {
			logger.WithError(err).Warn("health check failed")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("unavailable\n"))
			return
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})

	// scrapes and probes are not request logged
	n := negroni.New(newRecovery(logger))
	n.UseHandler(router)

	return newServer(n, logger, opts...)
}
