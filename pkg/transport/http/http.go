package http

import (
	"context"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samueltorres/hitcounter/pkg/pages"
	"github.com/samueltorres/hitcounter/pkg/site"
	"github.com/sirupsen/logrus"
	"github.com/urfave/negroni"
)

// Counter increments the visit counter and returns the new value.
type Counter interface {
	Increment(ctx context.Context) (int64, error)
}

// Checker reports whether the counter store is reachable.
type Checker interface {
	Ping(ctx context.Context) error
}

// SettingsProvider returns the copy shown on the pages.
type SettingsProvider interface {
	Settings() site.Settings
}

type Server struct {
	server          *http.Server
	logger          *logrus.Logger
	shutdownTimeout time.Duration
}

type Option func(*Server)

func WithListen(addr string) Option {
	return func(s *Server) {
		s.server.Addr = addr
	}
}

func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.shutdownTimeout = d
	}
}

// New creates the web server serving the landing page on / and the visit
// counter on /count.
func New(
	counter Counter,
	settings SettingsProvider,
	renderer *pages.Renderer,
	logger *logrus.Logger,
	registerer prometheus.Registerer,
	opts ...Option) *Server {

	h := &pageHandler{
		counter:  counter,
		settings: settings,
		pages:    renderer,
		logger:   logger,
	}
	m := newRouteMetrics(registerer)

	router := httprouter.New()
	// only the exact paths are served, everything else is a 404
	router.RedirectTrailingSlash = false
	router.RedirectFixedPath = false
	router.HandlerFunc(http.MethodGet, "/", m.Route("landing", h.handleLanding))
	router.HandlerFunc(http.MethodGet, "/count", m.Route("count", h.handleCount))
	router.NotFound = m.Route("not_found", http.NotFound)

	n := negroni.New(newRecovery(logger), NewRequestLogger(logger))
	n.UseHandler(router)

	return newServer(n, logger, opts...)
}

func newRecovery(logger *logrus.Logger) *negroni.Recovery {
	recovery := negroni.NewRecovery()
	recovery.Logger = logger
	recovery.PrintStack = false
	return recovery
}

func newServer(handler http.Handler, logger *logrus.Logger, opts ...Option) *Server {
	s := &Server{
		server: &http.Server{
			Addr:              ":8080",
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger:          logger,
		shutdownTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	s.server.Handler.ServeHTTP(w, req)
}

// Start listens and serves until Stop is called.
func (s *Server) Start() error {
	s.logger.Infof("http server listening on %s", s.server.Addr)

	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return errors.Wrapf(err, "http server on %s failed", s.server.Addr)
}

// Stop gracefully shuts the server down, waiting up to the shutdown timeout
// for in-flight requests.
func (s *Server) Stop(err error) {
	s.logger.WithError(err).Infof("stopping http server on %s", s.server.Addr)

	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.WithError(err).Error("http server shutdown")
	}
}
