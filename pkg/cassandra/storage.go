package cassandra

import (
	"context"

	"github.com/gocql/gocql"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Schema creates the table used by Storage in the session keyspace.
const Schema = `CREATE TABLE IF NOT EXISTS counters (key text PRIMARY KEY, value bigint)`

const defaultMaxAttempts = 10

var errContention = errors.New("cassandra storage lost too many compare-and-set races")

// Storage keeps counters as plain bigint rows updated with lightweight
// transactions. Counter columns are not used because they cannot return the
// value produced by a given increment.
type Storage struct {
	session     *gocql.Session
	rows        counterRows
	logger      *logrus.Logger
	maxAttempts int
}

// counterRows is the set of statements Increment is built from.
type counterRows interface {
	read(ctx context.Context, key string) (value int64, found bool, err error)
	insert(ctx context.Context, key string) (applied bool, err error)
	swap(ctx context.Context, key string, old, new int64) (applied bool, err error)
}

func NewStorage(session *gocql.Session, logger *logrus.Logger) *Storage {
	return &Storage{
		session:     session,
		rows:        sessionRows{session: session},
		logger:      logger,
		maxAttempts: defaultMaxAttempts,
	}
}

// Increment reads the current value at serial consistency and swaps in the
// next one. A lost race re-reads and tries again, up to maxAttempts.
func (s *Storage) Increment(ctx context.Context, key string) (int64, error) {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		current, found, err := s.rows.read(ctx, key)
		if err != nil {
			return 0, errors.Wrap(err, "cassandra storage select failure")
		}

		var applied bool
		if found {
			applied, err = s.rows.swap(ctx, key, current, current+1)
		} else {
			current = 0
			applied, err = s.rows.insert(ctx, key)
		}
		if err != nil {
			return 0, errors.Wrap(err, "cassandra storage compare-and-set failure")
		}
		if applied {
			return current + 1, nil
		}

		s.logger.WithFields(logrus.Fields{"key": key, "attempt": attempt}).Debug("compare-and-set race lost")
	}

	return 0, errContention
}

func (s *Storage) Ping(ctx context.Context) error {
	err := s.session.
		Query(`SELECT release_version FROM system.local`).
		WithContext(ctx).
		Consistency(gocql.One).
		Exec()
	if err != nil {
		return errors.Wrap(err, "cassandra storage ping failure")
	}
	return nil
}

// EnsureSchema creates the counters table when missing.
func (s *Storage) EnsureSchema(ctx context.Context) error {
	if err := s.session.Query(Schema).WithContext(ctx).Exec(); err != nil {
		return errors.Wrap(err, "cassandra storage schema failure")
	}
	return nil
}

func (s *Storage) Close() error {
	s.session.Close()
	return nil
}

type sessionRows struct {
	session *gocql.Session
}

func (r sessionRows) read(ctx context.Context, key string) (int64, bool, error) {
	var value int64
	err := r.session.
		Query(`SELECT value FROM counters WHERE key = ?`, key).
		WithContext(ctx).
		Consistency(gocql.Consistency(gocql.LocalSerial)).
		Scan(&value)
	if err == gocql.ErrNotFound {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return value, true, nil
}

func (r sessionRows) insert(ctx context.Context, key string) (bool, error) {
	return r.session.
		Query(`INSERT INTO counters (key, value) VALUES (?, ?) IF NOT EXISTS`, key, int64(1)).
		WithContext(ctx).
		SerialConsistency(gocql.LocalSerial).
		MapScanCAS(map[string]interface{}{})
}

func (r sessionRows) swap(ctx context.Context, key string, old, new int64) (bool, error) {
	return r.session.
		Query(`UPDATE counters SET value = ? WHERE key = ? IF value = ?`, new, key, old).
		WithContext(ctx).
		SerialConsistency(gocql.LocalSerial).
		MapScanCAS(map[string]interface{}{})
}
