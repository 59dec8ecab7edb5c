package counter

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Key is the storage key holding the page visit count.
const Key = "counter"

var ErrStoreUnavailable = errors.New("counter store unavailable")

// StoreError is returned when a storage call fails or times out.
// It matches ErrStoreUnavailable.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return ErrStoreUnavailable.Error() + ": " + e.Op + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrStoreUnavailable }

type counterMetrics struct {
	incrementTotal    *prometheus.CounterVec
	incrementDuration prometheus.Histogram
}

func newCounterMetrics(r prometheus.Registerer) *counterMetrics {
	var m counterMetrics

	m.incrementTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "counter_increment_total",
		Help: "Total number of counter increments by result",
	}, []string{"result"})

	m.incrementDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "counter_increment_duration_seconds",
		Help:    "Duration of counter increments on the store",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16),
	})

	r.MustRegister(m.incrementTotal, m.incrementDuration)
	return &m
}

// CounterService increments the visit counter on a CounterStorage.
// It holds no counter state of its own.
type CounterService struct {
	storage CounterStorage
	key     string
	timeout time.Duration
	logger  *logrus.Logger
	metrics *counterMetrics
}

// NewCounterService creates a new counter service working on key.
// Every storage call is bounded by timeout.
func NewCounterService(
	storage CounterStorage,
	key string,
	timeout time.Duration,
	logger *logrus.Logger,
	registerer prometheus.Registerer) *CounterService {

	return &CounterService{
		storage: storage,
		key:     key,
		timeout: timeout,
		logger:  logger,
		metrics: newCounterMetrics(registerer),
	}
}

// Increment adds one to the counter on the storage and returns the value the
// storage reports after that increment. It is never retried.
func (cs *CounterService) Increment(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, cs.timeout)
	defer cancel()

	start := time.Now()
	n, err := cs.storage.Increment(ctx, cs.key)
	cs.metrics.incrementDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		cs.metrics.incrementTotal.WithLabelValues("error").Inc()
		cs.logger.WithError(err).WithField("key", cs.key).Warn("counter increment failed")
		return 0, &StoreError{Op: "increment", Err: err}
	}

	cs.metrics.incrementTotal.WithLabelValues("ok").Inc()
	return n, nil
}

// Ping checks that the storage is reachable.
func (cs *CounterService) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, cs.timeout)
	defer cancel()

	if err := cs.storage.Ping(ctx); err != nil {
		return &StoreError{Op: "ping", Err: err}
	}
	return nil
}
