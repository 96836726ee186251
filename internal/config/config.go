package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// HTTP holds HTTP server configuration.
type HTTP struct {
	Host string
	Port int
}

// GRPC holds gRPC health server configuration.
type GRPC struct {
	Host string
	Port int
}

// Cache configures the pivot read cache.
type Cache struct {
	Enabled    bool
	Driver     string
	DefaultTTL time.Duration
	KeyPrefix  string
	Redis      Redis
}

// Redis contains redis-specific connection settings.
type Redis struct {
	Addr     string
	Password string
	DB       int
}

// Messaging configures the pivot change feed.
type Messaging struct {
	Driver        string
	Enabled       bool
	Kafka         Kafka
	ConsumerGroup string
	Workers       Worker
}

// Kafka holds Kafka connection details.
type Kafka struct {
	Brokers        []string
	ClientID       string
	Topic          string
	CommitInterval time.Duration
	MinBytes       int
	MaxBytes       int
	ConnectTimeout time.Duration
}

// Worker configures feed consumer concurrency.
type Worker struct {
	Enabled      bool
	PollInterval time.Duration
	Concurrency  int
}

// Database holds the target database connection settings. The pivot table and the
// source tables live behind these DSNs.
type Database struct {
	Driver          string
	WriterDSN       string
	ReaderDSN       string
	MaxOpenConns    int
	MaxIdleConns    int
	MaxConnLifetime time.Duration
}

// Binlog describes the replication source.
type Binlog struct {
	Host            string
	Port            int
	User            string
	Password        string
	Charset         string
	Flavor          string
	ServerID        uint32
	SourceSchema    string
	Tables          []string
	HeartbeatPeriod time.Duration
	ReadTimeout     time.Duration
}

// Checkpoint selects where the last applied binlog position is kept.
type Checkpoint struct {
	Driver   string
	File     string
	RedisKey string
	Redis    Redis
}

// Processor tunes the supervised binlog processing loop.
type Processor struct {
	Enabled          bool
	LockName         string
	LockPingInterval time.Duration
	LockCooldown     time.Duration
	MinBackoff       time.Duration
	MaxBackoff       time.Duration
	SkipFailed       bool
}

// Replica holds the credentials granted REPLICATION SLAVE by the bootstrap command.
type Replica struct {
	User     string
	Password string
	Host     string
}

// Observability contains logging, tracing, and metrics configuration.
type Observability struct {
	ServiceName     string
	Environment     string
	LogLevel        string
	LogEncoding     string
	EnableTracing   bool
	TraceExporter   string
	TraceEndpoint   string
	TraceInsecure   bool
	EnableMetrics   bool
	MetricsExporter string
	PrometheusPath  string
}

// Config wraps all application configuration knobs.
type Config struct {
	HTTP          HTTP
	GRPC          GRPC
	Cache         Cache
	Messaging     Messaging
	Database      Database
	Binlog        Binlog
	Checkpoint    Checkpoint
	Processor     Processor
	Replica       Replica
	Observability Observability
}

// Module wires the configuration loader into the Fx graph.
var Module = fx.Provide(New)

var loadEnvOnce sync.Once

// New builds a Config from environment variables or defaults.
func New() (Config, error) {
	loadEnvOnce.Do(func() {
		_ = godotenv.Load()
	})

	cfg := Config{
		HTTP: HTTP{
			Host: getEnv("HTTP_HOST", "0.0.0.0"),
			Port: getEnvAsInt("HTTP_PORT", 8080),
		},
		GRPC: GRPC{
			Host: getEnv("GRPC_HOST", "0.0.0.0"),
			Port: getEnvAsInt("GRPC_PORT", 9090),
		},
		Cache: Cache{
			Enabled:    getEnvAsBool("CACHE_ENABLED", false),
			Driver:     getEnv("CACHE_DRIVER", "redis"),
			DefaultTTL: getEnvAsDuration("CACHE_DEFAULT_TTL", time.Minute*5),
			KeyPrefix:  getEnv("CACHE_KEY_PREFIX", "stream"),
			Redis: Redis{
				Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
				Password: getEnv("REDIS_PASSWORD", ""),
				DB:       getEnvAsInt("REDIS_DB", 0),
			},
		},
		Messaging: Messaging{
			Driver:  getEnv("MESSAGING_DRIVER", "kafka"),
			Enabled: getEnvAsBool("MESSAGING_ENABLED", false),
			Kafka: Kafka{
				Brokers:        getEnvAsStringSlice("KAFKA_BROKERS", []string{"127.0.0.1:9092"}),
				ClientID:       getEnv("KAFKA_CLIENT_ID", "stream-processor"),
				Topic:          getEnv("KAFKA_TOPIC", "orders.pivot.changes"),
				CommitInterval: getEnvAsDuration("KAFKA_COMMIT_INTERVAL", time.Second),
				MinBytes:       getEnvAsInt("KAFKA_MIN_BYTES", 10e3),
				MaxBytes:       getEnvAsInt("KAFKA_MAX_BYTES", 10e6),
				ConnectTimeout: getEnvAsDuration("KAFKA_CONNECT_TIMEOUT", 5*time.Second),
			},
			ConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "stream-feed"),
			Workers: Worker{
				Enabled:      getEnvAsBool("WORKER_ENABLED", true),
				PollInterval: getEnvAsDuration("WORKER_POLL_INTERVAL", time.Second),
				Concurrency:  getEnvAsInt("WORKER_CONCURRENCY", 1),
			},
		},
		Database: Database{
			Driver:          getEnv("DB_DRIVER", "mysql"),
			WriterDSN:       getEnv("DB_WRITER_DSN", "root:debezium@tcp(127.0.0.1:3306)/inventory"),
			ReaderDSN:       getEnv("DB_READER_DSN", ""),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", time.Minute*5),
		},
		Binlog: Binlog{
			Host:            getEnv("BINLOG_HOST", "127.0.0.1"),
			Port:            getEnvAsInt("BINLOG_PORT", 3306),
			User:            getEnv("BINLOG_USER", "root"),
			Password:        getEnv("BINLOG_PASSWORD", "debezium"),
			Charset:         getEnv("BINLOG_CHARSET", "utf8mb4"),
			Flavor:          getEnv("BINLOG_FLAVOR", "mysql"),
			ServerID:        getEnvAsUint32("BINLOG_SERVER_ID", 223344),
			SourceSchema:    getEnv("BINLOG_SOURCE_SCHEMA", "inventory"),
			Tables:          getEnvAsStringSlice("BINLOG_TABLES", []string{"table1", "table2"}),
			HeartbeatPeriod: getEnvAsDuration("BINLOG_HEARTBEAT_PERIOD", 30*time.Second),
			ReadTimeout:     getEnvAsDuration("BINLOG_READ_TIMEOUT", 90*time.Second),
		},
		Checkpoint: Checkpoint{
			Driver:   getEnv("CHECKPOINT_DRIVER", "file"),
			File:     getEnv("CHECKPOINT_FILE", "last_position.json"),
			RedisKey: getEnv("CHECKPOINT_REDIS_KEY", "stream:position"),
			Redis: Redis{
				Addr:     getEnv("CHECKPOINT_REDIS_ADDR", getEnv("REDIS_ADDR", "127.0.0.1:6379")),
				Password: getEnv("CHECKPOINT_REDIS_PASSWORD", getEnv("REDIS_PASSWORD", "")),
				DB:       getEnvAsInt("CHECKPOINT_REDIS_DB", 0),
			},
		},
		Processor: Processor{
			Enabled:          getEnvAsBool("PROCESSOR_ENABLED", true),
			LockName:         getEnv("PROCESSOR_LOCK_NAME", "stream.processor"),
			LockPingInterval: getEnvAsDuration("PROCESSOR_LOCK_PING_INTERVAL", time.Second),
			LockCooldown:     getEnvAsDuration("PROCESSOR_LOCK_COOLDOWN", 5*time.Second),
			MinBackoff:       getEnvAsDuration("PROCESSOR_MIN_BACKOFF", time.Second),
			MaxBackoff:       getEnvAsDuration("PROCESSOR_MAX_BACKOFF", 30*time.Second),
			SkipFailed:       getEnvAsBool("PROCESSOR_SKIP_FAILED", false),
		},
		Replica: Replica{
			User:     getEnv("REPLICA_USER", "replica"),
			Password: getEnv("REPLICA_PASSWORD", "replica"),
			Host:     getEnv("REPLICA_HOST", "%"),
		},
		Observability: Observability{
			ServiceName:     getEnv("OBS_SERVICE_NAME", "stream"),
			Environment:     getEnv("OBS_ENVIRONMENT", "local"),
			LogLevel:        getEnv("OBS_LOG_LEVEL", "info"),
			LogEncoding:     getEnv("OBS_LOG_ENCODING", "json"),
			EnableTracing:   getEnvAsBool("OBS_ENABLE_TRACING", false),
			TraceExporter:   getEnv("OBS_TRACE_EXPORTER", "stdout"),
			TraceEndpoint:   getEnv("OBS_OTLP_ENDPOINT", "localhost:4317"),
			TraceInsecure:   getEnvAsBool("OBS_OTLP_INSECURE", true),
			EnableMetrics:   getEnvAsBool("OBS_ENABLE_METRICS", true),
			MetricsExporter: getEnv("OBS_METRICS_EXPORTER", "prometheus"),
			PrometheusPath:  getEnv("OBS_PROMETHEUS_PATH", "/metrics"),
		},
	}

	if err := cfg.normalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) normalize() error {
	if cfg.HTTP.Port <= 0 {
		return fmt.Errorf("invalid HTTP port: %d", cfg.HTTP.Port)
	}

	if cfg.GRPC.Port <= 0 {
		return fmt.Errorf("invalid gRPC port: %d", cfg.GRPC.Port)
	}

	if !cfg.Cache.Enabled {
		cfg.Cache.Driver = "noop"
	}

	switch cfg.Cache.Driver {
	case "redis", "noop":
		// supported
	default:
		return fmt.Errorf("unsupported cache driver: %s", cfg.Cache.Driver)
	}

	if cfg.Cache.Driver == "redis" && cfg.Cache.Redis.Addr == "" {
		return fmt.Errorf("missing REDIS_ADDR for redis cache")
	}

	if cfg.Cache.DefaultTTL < 0 {
		cfg.Cache.DefaultTTL = time.Minute * 5
	}

	cfg.Observability.LogLevel = strings.ToLower(strings.TrimSpace(cfg.Observability.LogLevel))
	if cfg.Observability.LogLevel == "" {
		cfg.Observability.LogLevel = "info"
	}
	cfg.Observability.LogEncoding = strings.ToLower(strings.TrimSpace(cfg.Observability.LogEncoding))
	if cfg.Observability.LogEncoding == "" {
		cfg.Observability.LogEncoding = "json"
	}
	cfg.Observability.TraceExporter = strings.ToLower(strings.TrimSpace(cfg.Observability.TraceExporter))
	if cfg.Observability.TraceExporter == "" {
		cfg.Observability.TraceExporter = "stdout"
	}
	cfg.Observability.MetricsExporter = strings.ToLower(strings.TrimSpace(cfg.Observability.MetricsExporter))
	if cfg.Observability.MetricsExporter == "" {
		cfg.Observability.MetricsExporter = "prometheus"
	}

	if cfg.Observability.PrometheusPath == "" {
		cfg.Observability.PrometheusPath = "/metrics"
	} else if !strings.HasPrefix(cfg.Observability.PrometheusPath, "/") {
		cfg.Observability.PrometheusPath = "/" + cfg.Observability.PrometheusPath
	}

	if !cfg.Messaging.Enabled {
		cfg.Messaging.Driver = "noop"
	}

	switch cfg.Messaging.Driver {
	case "kafka", "noop":
		// supported
	default:
		return fmt.Errorf("unsupported messaging driver: %s", cfg.Messaging.Driver)
	}

	if cfg.Messaging.Driver == "kafka" {
		if len(cfg.Messaging.Kafka.Brokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS must be provided")
		}
		if cfg.Messaging.Kafka.Topic == "" {
			return fmt.Errorf("KAFKA_TOPIC must be provided")
		}
		if cfg.Messaging.ConsumerGroup == "" {
			return fmt.Errorf("KAFKA_CONSUMER_GROUP must be provided")
		}
	}

	if cfg.Messaging.Workers.Concurrency <= 0 {
		cfg.Messaging.Workers.Concurrency = 1
	}
	if cfg.Messaging.Workers.PollInterval <= 0 {
		cfg.Messaging.Workers.PollInterval = time.Second
	}

	if cfg.Database.Driver != "mysql" {
		return fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}

	if cfg.Database.WriterDSN == "" {
		return fmt.Errorf("missing DB_WRITER_DSN")
	}

	if cfg.Database.ReaderDSN == "" {
		cfg.Database.ReaderDSN = cfg.Database.WriterDSN
	}

	if cfg.Binlog.Host == "" {
		return fmt.Errorf("missing BINLOG_HOST")
	}
	if cfg.Binlog.Port <= 0 || cfg.Binlog.Port > 65535 {
		return fmt.Errorf("invalid BINLOG_PORT: %d", cfg.Binlog.Port)
	}
	if cfg.Binlog.ServerID == 0 {
		return fmt.Errorf("BINLOG_SERVER_ID must be non-zero")
	}
	cfg.Binlog.Flavor = strings.ToLower(strings.TrimSpace(cfg.Binlog.Flavor))
	switch cfg.Binlog.Flavor {
	case "mysql", "mariadb":
		// supported
	default:
		return fmt.Errorf("unsupported binlog flavor: %s", cfg.Binlog.Flavor)
	}
	if cfg.Binlog.Charset == "" {
		cfg.Binlog.Charset = "utf8mb4"
	}

	cfg.Checkpoint.Driver = strings.ToLower(strings.TrimSpace(cfg.Checkpoint.Driver))
	switch cfg.Checkpoint.Driver {
	case "file":
		if cfg.Checkpoint.File == "" {
			return fmt.Errorf("CHECKPOINT_FILE must be provided for file checkpoints")
		}
	case "redis":
		if cfg.Checkpoint.Redis.Addr == "" {
			return fmt.Errorf("CHECKPOINT_REDIS_ADDR must be provided for redis checkpoints")
		}
		if cfg.Checkpoint.RedisKey == "" {
			return fmt.Errorf("CHECKPOINT_REDIS_KEY must be provided for redis checkpoints")
		}
	default:
		return fmt.Errorf("unsupported checkpoint driver: %s", cfg.Checkpoint.Driver)
	}

	if cfg.Processor.LockName == "" {
		cfg.Processor.LockName = "stream.processor"
	}
	if cfg.Processor.LockPingInterval <= 0 {
		cfg.Processor.LockPingInterval = time.Second
	}
	if cfg.Processor.LockCooldown < cfg.Processor.LockPingInterval {
		cfg.Processor.LockCooldown = cfg.Processor.LockPingInterval
	}
	if cfg.Processor.MinBackoff <= 0 {
		cfg.Processor.MinBackoff = time.Second
	}
	if cfg.Processor.MaxBackoff < cfg.Processor.MinBackoff {
		cfg.Processor.MaxBackoff = cfg.Processor.MinBackoff
	}

	if cfg.Replica.Host == "" {
		cfg.Replica.Host = "%"
	}

	return nil
}
