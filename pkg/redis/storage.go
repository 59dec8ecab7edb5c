package redis

import (
	"context"

	"github.com/go-redis/redis/v7"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Storage keeps counters as redis integer keys. The underlying client is a
// connection pool and is safe for concurrent use.
type Storage struct {
	client *redis.Client
	logger *logrus.Logger
}

func NewStorage(client *redis.Client, logger *logrus.Logger) *Storage {
	return &Storage{
		client: client,
		logger: logger,
	}
}

// Increment runs INCR on key, which creates missing keys at zero before
// incrementing.
func (s *Storage) Increment(ctx context.Context, key string) (int64, error) {
	n, err := s.client.WithContext(ctx).Incr(key).Result()
	if err != nil {
		return 0, errors.Wrap(err, "redis storage incr failure")
	}

	s.logger.WithField("key", key).Debugf("incremented to %d", n)
	return n, nil
}

func (s *Storage) Ping(ctx context.Context) error {
	if err := s.client.WithContext(ctx).Ping().Err(); err != nil {
		return errors.Wrap(err, "redis storage ping failure")
	}
	return nil
}

func (s *Storage) Close() error {
	return s.client.Close()
}
