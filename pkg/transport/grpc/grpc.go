package grpc

import (
	"context"
	"net"
	"time"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name reported next to the overall ("") status.
const ServiceName = "hitcounter.Counter"

// Checker reports whether the counter store is reachable.
type Checker interface {
	Ping(ctx context.Context) error
}

// Server exposes grpc.health.v1.Health with a status that follows the
// reachability of the counter store.
type Server struct {
	checker       Checker
	logger        *logrus.Logger
	listen        string
	checkInterval time.Duration

	server *grpc.Server
	health *health.Server
}

type Option func(*Server)

func WithListen(addr string) Option {
	return func(s *Server) {
		s.listen = addr
	}
}

func WithCheckInterval(d time.Duration) Option {
	return func(s *Server) {
		s.checkInterval = d
	}
}

func NewServer(checker Checker, logger *logrus.Logger, registerer prometheus.Registerer, opts ...Option) *Server {
	metrics := grpc_prometheus.NewServerMetrics()
	registerer.MustRegister(metrics)

	s := &Server{
		checker:       checker,
		logger:        logger,
		listen:        ":8081",
		checkInterval: 5 * time.Second,
		health:        health.NewServer(),
		server: grpc.NewServer(
			grpc.UnaryInterceptor(metrics.UnaryServerInterceptor()),
			grpc.StreamInterceptor(metrics.StreamServerInterceptor()),
		),
	}
	for _, opt := range opts {
		opt(s)
	}

	healthpb.RegisterHealthServer(s.server, s.health)
	metrics.InitializeMetrics(s.server)

	// unknown until the first check
	s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)

	return s
}

func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.listen)
	if err != nil {
		return errors.Wrapf(err, "grpc server could not listen on %s", s.listen)
	}

	s.logger.Infof("grpc health server listening on %s", s.listen)
	return s.server.Serve(lis)
}

func (s *Server) Stop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}

// RunHealthChecks pings the store every check interval until cancel is closed.
func (s *Server) RunHealthChecks(cancel chan struct{}) error {
	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	s.check()
	for {
		select {
		case <-cancel:
			return nil
		case <-ticker.C:
			s.check()
		}
	}
}

func (s *Server) check() {
	ctx, cancel := context.WithTimeout(context.Background(), s.checkInterval)
	defer cancel()

	if err := s.checker.Ping(ctx); err != nil {
		s.logger.WithError(err).Warn("counter store health check failed")
		s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
		return
	}
	s.setStatus(healthpb.HealthCheckResponse_SERVING)
}

func (s *Server) setStatus(status healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}
