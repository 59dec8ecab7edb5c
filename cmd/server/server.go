package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	rediscli "github.com/go-redis/redis/v7"
	"github.com/gocql/gocql"
	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/version"
	"github.com/samueltorres/hitcounter/pkg/cassandra"
	"github.com/samueltorres/hitcounter/pkg/configs"
	"github.com/samueltorres/hitcounter/pkg/counter"
	"github.com/samueltorres/hitcounter/pkg/memory"
	"github.com/samueltorres/hitcounter/pkg/pages"
	"github.com/samueltorres/hitcounter/pkg/redis"
	"github.com/samueltorres/hitcounter/pkg/site"
	"github.com/samueltorres/hitcounter/pkg/transport/grpc"
	"github.com/samueltorres/hitcounter/pkg/transport/http"
	"github.com/sirupsen/logrus"
)

func main() {
	config, err := configs.Parse(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger := createLogger(config)

	// metrics
	metrics := prometheus.NewRegistry()
	metrics.MustRegister(
		version.NewCollector("hitcounter"),
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	counterStorage, err := createCounterStorage(config, logger)
	if err != nil {
		logger.Fatalf("could not create counter storage: %v", err)
	}
	defer counterStorage.Close()

	counterService := counter.NewCounterService(counterStorage, counter.Key, config.StoreTimeout, logger, metrics)
	if err := counterService.Ping(context.Background()); err != nil {
		logger.WithError(err).Warn("counter store not reachable yet, /count will fail until it is")
	}

	settingsService, err := site.NewSettingsService(config.SiteFile, logger)
	if err != nil {
		logger.Fatalf("could not load site settings: %v", err)
	}

	renderer, err := pages.New()
	if err != nil {
		logger.Fatalf("could not load pages: %v", err)
	}

	cancel := make(chan struct{})

	var g run.Group
	{
		webServer := http.New(
			counterService,
			settingsService,
			renderer,
			logger,
			metrics,
			http.WithListen(config.HTTPAddr()),
			http.WithShutdownTimeout(config.ShutdownTimeout))

		g.Add(func() error {
			return webServer.Start()
		}, func(err error) {
			webServer.Stop(err)
		})
	}
	if config.DebugAddr != "" {
		debugServer := http.NewDebugServer(
			counterService,
			metrics,
			logger,
			http.WithListen(config.DebugAddr),
			http.WithShutdownTimeout(config.ShutdownTimeout))

		g.Add(func() error {
			return debugServer.Start()
		}, func(err error) {
			debugServer.Stop(err)
		})
	}
	if config.GrpcAddr != "" {
		healthServer := grpc.NewServer(
			counterService,
			logger,
			metrics,
			grpc.WithListen(config.GrpcAddr))

		g.Add(func() error {
			return healthServer.RunHealthChecks(cancel)
		}, func(error) {})
		g.Add(func() error {
			return healthServer.Start()
		}, func(error) {
			healthServer.Stop()
		})
	}
	{
		g.Add(func() error {
			c := make(chan os.Signal, 1)
			signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
			select {
			case sig := <-c:
				return fmt.Errorf("received signal %s", sig)
			case <-cancel:
				return nil
			}
		}, func(error) {
			close(cancel)
		})
	}

	logger.Info("exit: ", g.Run())
}

func createLogger(config configs.Config) *logrus.Logger {
	logger := logrus.StandardLogger()
	if config.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	level, err := logrus.ParseLevel(config.LogLevel)
	if err != nil {
		level = logrus.ErrorLevel
	}

	logger.Infof("setting log level to %v", level)
	logger.SetLevel(level)

	return logger
}

type counterStorage interface {
	counter.CounterStorage
	io.Closer
}

func createCounterStorage(config configs.Config, logger *logrus.Logger) (counterStorage, error) {
	switch config.Datastore {
	case configs.DatastoreRedis:
		redisClient := rediscli.NewClient(&rediscli.Options{
			Addr:         config.Redis.Address(),
			Password:     config.Redis.Password,
			DB:           config.Redis.Database,
			DialTimeout:  config.StoreTimeout,
			ReadTimeout:  config.StoreTimeout,
			WriteTimeout: config.StoreTimeout,
			MaxRetries:   0,
		})

		return redis.NewStorage(redisClient, logger), nil

	case configs.DatastoreCassandra:
		cluster := gocql.NewCluster(config.Cassandra.Hosts...)
		cluster.Keyspace = config.Cassandra.Keyspace
		cluster.Consistency = gocql.LocalQuorum
		cluster.Timeout = config.StoreTimeout
		session, err := cluster.CreateSession()
		if err != nil {
			return nil, fmt.Errorf("could not create cassandra session : %w", err)
		}

		storage := cassandra.NewStorage(session, logger)
		ctx, cancel := context.WithTimeout(context.Background(), config.StoreTimeout)
		defer cancel()
		if err := storage.EnsureSchema(ctx); err != nil {
			storage.Close()
			return nil, err
		}
		return storage, nil

	case configs.DatastoreMemory:
		logger.Warn("using in-memory counter storage, counts are not shared or persisted")
		return memory.NewStorage(), nil

	default:
		return nil, fmt.Errorf("invalid datastore %s", config.Datastore)
	}
}
