// Package config defines the configuration structures for the PaDEL
// featurizer.  No I/O lives here, only plain data types and validation.
package config

import (
	"fmt"
	"time"

	"github.com/turtacn/padel-featurizer/internal/infrastructure/monitoring/logging"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// PadelConfig describes how the external PaDEL-Descriptor program is launched
// and which descriptor families a calculator requests.
type PadelConfig struct {
	JavaPath   string        `mapstructure:"java_path"`
	JarPath    string        `mapstructure:"jar_path"`
	Threads    int           `mapstructure:"threads"` // -1 lets PaDEL use every core
	MaxRuntime time.Duration `mapstructure:"max_runtime"`
	WorkDir    string        `mapstructure:"work_dir"`
	KeepFiles  bool          `mapstructure:"keep_files"`
	JavaOpts   []string      `mapstructure:"java_opts"`

	// Calculator parameters.
	Descriptors      bool          `mapstructure:"descriptors"`
	Fingerprints     bool          `mapstructure:"fingerprints"`
	Timeout          time.Duration `mapstructure:"timeout"`
	ReplaceNaN       bool          `mapstructure:"replace_nan"`
	DoNotStandardize bool          `mapstructure:"do_not_standardize"`
}

// TransformerConfig holds batch execution tunables.
type TransformerConfig struct {
	NJobs        int           `mapstructure:"n_jobs"` // <= 0 means all CPUs
	Verbose      bool          `mapstructure:"verbose"`
	DType        string        `mapstructure:"dtype"`
	ItemTimeout  time.Duration `mapstructure:"item_timeout"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	ShardSize    int           `mapstructure:"shard_size"`
}

// HTTPConfig holds REST server tunables.
type HTTPConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	MaxBodySize  int64         `mapstructure:"max_body_size"`
}

// GRPCConfig holds gRPC server tunables.
type GRPCConfig struct {
	Host  string `mapstructure:"host"`
	Port  int    `mapstructure:"port"`
	Debug bool   `mapstructure:"debug"`
}

// ServerConfig groups the network surfaces.
type ServerConfig struct {
	HTTP            HTTPConfig    `mapstructure:"http"`
	GRPC            GRPCConfig    `mapstructure:"grpc"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// MetricsConfig controls the Prometheus registry.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
	Path      string `mapstructure:"path"`
}

// RedisStoreConfig configures the shared feature cache.
type RedisStoreConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	KeyPrefix   string        `mapstructure:"key_prefix"`
	PoolSize    int           `mapstructure:"pool_size"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// PostgresStoreConfig configures the durable feature store.
type PostgresStoreConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// SQLiteStoreConfig configures the local feature store.
type SQLiteStoreConfig struct {
	Path string `mapstructure:"path"`
}

// StoreConfig selects and configures the feature store.
type StoreConfig struct {
	Driver   string              `mapstructure:"driver"` // none | memory | redis | postgres | sqlite
	TTL      time.Duration       `mapstructure:"ttl"`
	LRUSize  int                 `mapstructure:"lru_size"`
	Redis    RedisStoreConfig    `mapstructure:"redis"`
	Postgres PostgresStoreConfig `mapstructure:"postgres"`
	SQLite   SQLiteStoreConfig   `mapstructure:"sqlite"`
}

// KafkaConfig configures the featurize job worker.
type KafkaConfig struct {
	Brokers      []string `mapstructure:"brokers"`
	GroupID      string   `mapstructure:"group_id"`
	RequestTopic string   `mapstructure:"request_topic"`
	ResultTopic  string   `mapstructure:"result_topic"`
	DLQTopic     string   `mapstructure:"dlq_topic"`
	MaxRetries   int      `mapstructure:"max_retries"`
}

// MinIOConfig configures artifact storage for worker results.
type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration object.
type Config struct {
	Padel       PadelConfig       `mapstructure:"padel"`
	Transformer TransformerConfig `mapstructure:"transformer"`
	Log         logging.LogConfig `mapstructure:"log"`
	Server      ServerConfig      `mapstructure:"server"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Store       StoreConfig       `mapstructure:"store"`
	Kafka       KafkaConfig       `mapstructure:"kafka"`
	MinIO       MinIOConfig       `mapstructure:"minio"`
}

var validDTypes = map[string]bool{
	"": true, "float64": true, "float32": true, "int64": true, "int": true, "bool": true,
}

// Validate checks the settings every entry point relies on.  Worker-only
// settings are checked by ValidateWorker.
func (c *Config) Validate() error {
	if c.Padel.JavaPath == "" {
		return fmt.Errorf("config: padel.java_path is required")
	}
	if c.Padel.JarPath == "" {
		return fmt.Errorf("config: padel.jar_path is required")
	}
	if c.Padel.Threads < -1 || c.Padel.Threads == 0 {
		return fmt.Errorf("config: padel.threads must be -1 or >= 1, got %d", c.Padel.Threads)
	}
	if c.Padel.Timeout <= 0 {
		return fmt.Errorf("config: padel.timeout must be positive, got %s", c.Padel.Timeout)
	}
	if !c.Padel.Descriptors && !c.Padel.Fingerprints {
		return fmt.Errorf("config: at least one of padel.descriptors or padel.fingerprints must be enabled")
	}

	if !validDTypes[c.Transformer.DType] {
		return fmt.Errorf("config: transformer.dtype %q is invalid; expected float64|float32|int64|int|bool", c.Transformer.DType)
	}
	if c.Transformer.ShardSize < 0 {
		return fmt.Errorf("config: transformer.shard_size must be >= 0, got %d", c.Transformer.ShardSize)
	}

	switch c.Log.Level {
	case logging.LevelDebug, logging.LevelInfo, logging.LevelWarn, logging.LevelError:
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	if c.Server.HTTP.Port < 1 || c.Server.HTTP.Port > 65535 {
		return fmt.Errorf("config: server.http.port %d is out of range [1, 65535]", c.Server.HTTP.Port)
	}
	if c.Server.GRPC.Port < 0 || c.Server.GRPC.Port > 65535 {
		return fmt.Errorf("config: server.grpc.port %d is out of range [0, 65535]", c.Server.GRPC.Port)
	}

	switch c.Store.Driver {
	case StoreNone, StoreMemory:
	case StoreRedis:
		if c.Store.Redis.Addr == "" {
			return fmt.Errorf("config: store.redis.addr is required when store.driver=redis")
		}
	case StorePostgres:
		if c.Store.Postgres.DSN == "" {
			return fmt.Errorf("config: store.postgres.dsn is required when store.driver=postgres")
		}
	case StoreSQLite:
		if c.Store.SQLite.Path == "" {
			return fmt.Errorf("config: store.sqlite.path is required when store.driver=sqlite")
		}
	default:
		return fmt.Errorf("config: store.driver %q is invalid; expected none|memory|redis|postgres|sqlite", c.Store.Driver)
	}
	if c.Store.Driver == StoreMemory && c.Store.LRUSize < 1 {
		return fmt.Errorf("config: store.lru_size must be >= 1, got %d", c.Store.LRUSize)
	}

	return nil
}

// ValidateWorker checks the Kafka and MinIO settings used by the job worker.
func (c *Config) ValidateWorker() error {
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("config: kafka.brokers must contain at least one broker address")
	}
	if c.Kafka.GroupID == "" {
		return fmt.Errorf("config: kafka.group_id is required")
	}
	if c.Kafka.RequestTopic == "" || c.Kafka.ResultTopic == "" {
		return fmt.Errorf("config: kafka.request_topic and kafka.result_topic are required")
	}
	if c.MinIO.Endpoint == "" {
		return fmt.Errorf("config: minio.endpoint is required")
	}
	if c.MinIO.Bucket == "" {
		return fmt.Errorf("config: minio.bucket is required")
	}
	return nil
}

//Personal.AI order the ending
