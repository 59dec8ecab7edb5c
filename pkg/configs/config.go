package configs

import (
	"flag"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/peterbourgon/ff"
	"github.com/pkg/errors"
)

// EnvVarPrefix is prepended to every flag name to form its environment variable,
// e.g. -redis-port is read from HITCOUNTER_REDIS_PORT.
const EnvVarPrefix = "HITCOUNTER"

const (
	DatastoreRedis     = "redis"
	DatastoreCassandra = "cassandra"
	DatastoreMemory    = "memory"
)

// ErrConfigMissing is matched by every error returned from Parse except flag.ErrHelp.
var ErrConfigMissing = errors.New("missing or invalid configuration")

type Config struct {
	Host            string
	Port            int
	GrpcAddr        string
	DebugAddr       string
	Datastore       string
	StoreTimeout    time.Duration
	ShutdownTimeout time.Duration
	Redis           RedisConfig
	Cassandra       CassandraConfig
	SiteFile        string
	LogLevel        string
	LogFormat       string
}

type RedisConfig struct {
	Host     string
	Port     int
	Database int
	Password string
}

// Address is the host:port pair handed to the redis client.
func (c RedisConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

type CassandraConfig struct {
	Hosts    []string
	Keyspace string
}

// HTTPAddr is the address the web server listens on.
func (c Config) HTTPAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Parse reads the configuration from args and from HITCOUNTER_* environment
// variables. Flags given in args take precedence over the environment.
func Parse(args []string) (Config, error) {
	fs := flag.NewFlagSet("hitcounter", flag.ContinueOnError)
	var (
		host              = fs.String("host", "0.0.0.0", "http listen host")
		port              = fs.Int("port", 0, "http listen port (required)")
		grpcAddress       = fs.String("grpc-addr", ":8081", "grpc health address, empty to disable")
		debugAddress      = fs.String("debug-addr", ":8083", "debug address for metrics and healthcheck, empty to disable")
		datastore         = fs.String("datastore", DatastoreRedis, "datastore type (redis/cassandra/memory)")
		storeTimeout      = fs.Duration("store-timeout", 2*time.Second, "timeout for each counter store call")
		shutdownTimeout   = fs.Duration("shutdown-timeout", 5*time.Second, "time given to in-flight http requests on shutdown")
		redisHost         = fs.String("redis-host", "redis", "redis host")
		redisPort         = fs.Int("redis-port", 0, "redis port (required for the redis datastore)")
		redisDatabase     = fs.Int("redis-database", 0, "redis database")
		redisPassword     = fs.String("redis-password", "", "redis password")
		cassandraHosts    = fs.String("cassandra-hosts", "cassandra", "comma separated cassandra hosts")
		cassandraKeyspace = fs.String("cassandra-keyspace", "hitcounter", "cassandra keyspace")
		siteFile          = fs.String("site-file", "", "page settings file (yaml/json/toml)")
		logLevel          = fs.String("log-level", "info", "log level (panic, fatal, error, warn, info, debug, trace)")
		logFormat         = fs.String("log-format", "text", "log format (text/json)")
	)

	err := ff.Parse(fs, args, ff.WithEnvVarPrefix(EnvVarPrefix))
	if errors.Is(err, flag.ErrHelp) {
		return Config{}, err
	}
	if err != nil {
		return Config{}, errors.Wrap(ErrConfigMissing, err.Error())
	}

	var config Config
	{
		config.Host = *host
		config.Port = *port
		config.GrpcAddr = *grpcAddress
		config.DebugAddr = *debugAddress
		config.Datastore = strings.ToLower(*datastore)
		config.StoreTimeout = *storeTimeout
		config.ShutdownTimeout = *shutdownTimeout
		config.Redis.Host = *redisHost
		config.Redis.Port = *redisPort
		config.Redis.Database = *redisDatabase
		config.Redis.Password = *redisPassword
		config.Cassandra.Hosts = splitHosts(*cassandraHosts)
		config.Cassandra.Keyspace = *cassandraKeyspace
		config.SiteFile = *siteFile
		config.LogLevel = *logLevel
		config.LogFormat = strings.ToLower(*logFormat)
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}

// Validate reports every problem found in c at once.
func (c Config) Validate() error {
	var result *multierror.Error

	if !validPort(c.Port) {
		result = multierror.Append(result, errors.Wrapf(ErrConfigMissing, "port %d (set -port or %s_PORT)", c.Port, EnvVarPrefix))
	}

	if c.StoreTimeout <= 0 {
		result = multierror.Append(result, errors.Wrapf(ErrConfigMissing, "store timeout %s", c.StoreTimeout))
	}

	if c.ShutdownTimeout <= 0 {
		result = multierror.Append(result, errors.Wrapf(ErrConfigMissing, "shutdown timeout %s", c.ShutdownTimeout))
	}

	switch c.Datastore {
	case DatastoreRedis:
		if c.Redis.Host == "" {
			result = multierror.Append(result, errors.Wrap(ErrConfigMissing, "empty redis host"))
		}
		if !validPort(c.Redis.Port) {
			result = multierror.Append(result, errors.Wrapf(ErrConfigMissing, "redis port %d (set -redis-port or %s_REDIS_PORT)", c.Redis.Port, EnvVarPrefix))
		}
	case DatastoreCassandra:
		if len(c.Cassandra.Hosts) == 0 {
			result = multierror.Append(result, errors.Wrap(ErrConfigMissing, "no cassandra hosts"))
		}
		if c.Cassandra.Keyspace == "" {
			result = multierror.Append(result, errors.Wrap(ErrConfigMissing, "empty cassandra keyspace"))
		}
	case DatastoreMemory:
	default:
		result = multierror.Append(result, errors.Wrapf(ErrConfigMissing, "invalid datastore %q", c.Datastore))
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		result = multierror.Append(result, errors.Wrapf(ErrConfigMissing, "invalid log format %q", c.LogFormat))
	}

	return result.ErrorOrNil()
}

func validPort(p int) bool {
	return p > 0 && p <= 65535
}

func splitHosts(s string) []string {
	var hosts []string
	for _, h := range strings.Split(s, ",") {
		if h = strings.TrimSpace(h); h != "" {
			hosts = append(hosts, h)
		}
	}
	return hosts
}
