package config

import (
	"time"

	"github.com/spf13/viper"
)

// Store drivers.
const (
	StoreNone     = "none"
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultJavaPath     = "java"
	DefaultJarPath      = "PaDEL-Descriptor/PaDEL-Descriptor.jar"
	DefaultPadelThreads = -1
	DefaultPadelTimeout = 30 * time.Second

	DefaultNJobs        = 1
	DefaultDType        = "float64"
	DefaultItemTimeout  = 5 * time.Minute
	DefaultBatchTimeout = 30 * time.Minute

	DefaultHTTPHost        = "0.0.0.0"
	DefaultHTTPPort        = 8080
	DefaultGRPCPort        = 9090
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 10 * time.Minute
	DefaultMaxBodySize     = 8 << 20
	DefaultShutdownTimeout = 30 * time.Second

	DefaultMetricsNamespace = "padel"
	DefaultMetricsPath      = "/metrics"

	DefaultStoreDriver    = StoreNone
	DefaultStoreTTL       = 7 * 24 * time.Hour
	DefaultLRUSize        = 10000
	DefaultRedisAddr      = "localhost:6379"
	DefaultRedisKeyPrefix = "padel:feat:"
	DefaultSQLitePath     = "padel-features.db"

	DefaultKafkaBroker   = "localhost:9092"
	DefaultKafkaGroupID  = "padel-featurizer"
	DefaultRequestTopic  = "padel.featurize.requests"
	DefaultResultTopic   = "padel.featurize.results"
	DefaultDLQTopic      = "padel.featurize.dlq"
	DefaultKafkaRetries  = 3
	DefaultMinIOEndpoint = "localhost:9000"
	DefaultMinIOBucket   = "padel-features"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns a fully populated configuration, including the boolean
// settings that ApplyDefaults cannot infer from zero values.
func Default() *Config {
	cfg := &Config{}
	cfg.Padel.Descriptors = true
	cfg.Padel.Fingerprints = true
	cfg.Metrics.Enabled = true
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills every zero-value field in cfg with its default.  Values
// already set by the caller are left unchanged.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── PaDEL ─────────────────────────────────────────────────────────────────
	if cfg.Padel.JavaPath == "" {
		cfg.Padel.JavaPath = DefaultJavaPath
	}
	if cfg.Padel.JarPath == "" {
		cfg.Padel.JarPath = DefaultJarPath
	}
	if cfg.Padel.Threads == 0 {
		cfg.Padel.Threads = DefaultPadelThreads
	}
	if cfg.Padel.Timeout == 0 {
		cfg.Padel.Timeout = DefaultPadelTimeout
	}

	// ── Transformer ───────────────────────────────────────────────────────────
	if cfg.Transformer.NJobs == 0 {
		cfg.Transformer.NJobs = DefaultNJobs
	}
	if cfg.Transformer.DType == "" {
		cfg.Transformer.DType = DefaultDType
	}
	if cfg.Transformer.ItemTimeout == 0 {
		cfg.Transformer.ItemTimeout = DefaultItemTimeout
	}
	if cfg.Transformer.BatchTimeout == 0 {
		cfg.Transformer.BatchTimeout = DefaultBatchTimeout
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	// ── Server ────────────────────────────────────────────────────────────────
	if cfg.Server.HTTP.Host == "" {
		cfg.Server.HTTP.Host = DefaultHTTPHost
	}
	if cfg.Server.HTTP.Port == 0 {
		cfg.Server.HTTP.Port = DefaultHTTPPort
	}
	if cfg.Server.HTTP.ReadTimeout == 0 {
		cfg.Server.HTTP.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.HTTP.WriteTimeout == 0 {
		cfg.Server.HTTP.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.HTTP.MaxBodySize == 0 {
		cfg.Server.HTTP.MaxBodySize = DefaultMaxBodySize
	}
	if cfg.Server.GRPC.Port == 0 {
		cfg.Server.GRPC.Port = DefaultGRPCPort
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	// ── Metrics ───────────────────────────────────────────────────────────────
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}

	// ── Store ─────────────────────────────────────────────────────────────────
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = DefaultStoreDriver
	}
	if cfg.Store.TTL == 0 {
		cfg.Store.TTL = DefaultStoreTTL
	}
	if cfg.Store.LRUSize == 0 {
		cfg.Store.LRUSize = DefaultLRUSize
	}
	if cfg.Store.Redis.Addr == "" {
		cfg.Store.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Store.Redis.KeyPrefix == "" {
		cfg.Store.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}
	if cfg.Store.SQLite.Path == "" {
		cfg.Store.SQLite.Path = DefaultSQLitePath
	}

	// ── Kafka / MinIO ─────────────────────────────────────────────────────────
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = DefaultKafkaGroupID
	}
	if cfg.Kafka.RequestTopic == "" {
		cfg.Kafka.RequestTopic = DefaultRequestTopic
	}
	if cfg.Kafka.ResultTopic == "" {
		cfg.Kafka.ResultTopic = DefaultResultTopic
	}
	if cfg.Kafka.DLQTopic == "" {
		cfg.Kafka.DLQTopic = DefaultDLQTopic
	}
	if cfg.Kafka.MaxRetries == 0 {
		cfg.Kafka.MaxRetries = DefaultKafkaRetries
	}
	if cfg.MinIO.Endpoint == "" {
		cfg.MinIO.Endpoint = DefaultMinIOEndpoint
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = DefaultMinIOBucket
	}
}

// registerDefaults seeds v with defaults for every key so that AutomaticEnv
// can resolve PADEL_* variables even when no config file mentions the key.
func registerDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("padel.java_path", d.Padel.JavaPath)
	v.SetDefault("padel.jar_path", d.Padel.JarPath)
	v.SetDefault("padel.threads", d.Padel.Threads)
	v.SetDefault("padel.max_runtime", d.Padel.MaxRuntime)
	v.SetDefault("padel.work_dir", d.Padel.WorkDir)
	v.SetDefault("padel.keep_files", d.Padel.KeepFiles)
	v.SetDefault("padel.descriptors", d.Padel.Descriptors)
	v.SetDefault("padel.fingerprints", d.Padel.Fingerprints)
	v.SetDefault("padel.timeout", d.Padel.Timeout)
	v.SetDefault("padel.replace_nan", d.Padel.ReplaceNaN)
	v.SetDefault("padel.do_not_standardize", d.Padel.DoNotStandardize)

	v.SetDefault("transformer.n_jobs", d.Transformer.NJobs)
	v.SetDefault("transformer.verbose", d.Transformer.Verbose)
	v.SetDefault("transformer.dtype", d.Transformer.DType)
	v.SetDefault("transformer.item_timeout", d.Transformer.ItemTimeout)
	v.SetDefault("transformer.batch_timeout", d.Transformer.BatchTimeout)
	v.SetDefault("transformer.shard_size", d.Transformer.ShardSize)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetDefault("server.http.host", d.Server.HTTP.Host)
	v.SetDefault("server.http.port", d.Server.HTTP.Port)
	v.SetDefault("server.http.read_timeout", d.Server.HTTP.ReadTimeout)
	v.SetDefault("server.http.write_timeout", d.Server.HTTP.WriteTimeout)
	v.SetDefault("server.http.max_body_size", d.Server.HTTP.MaxBodySize)
	v.SetDefault("server.grpc.host", d.Server.GRPC.Host)
	v.SetDefault("server.grpc.port", d.Server.GRPC.Port)
	v.SetDefault("server.grpc.debug", d.Server.GRPC.Debug)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.namespace", d.Metrics.Namespace)
	v.SetDefault("metrics.path", d.Metrics.Path)

	v.SetDefault("store.driver", d.Store.Driver)
	v.SetDefault("store.ttl", d.Store.TTL)
	v.SetDefault("store.lru_size", d.Store.LRUSize)
	v.SetDefault("store.redis.addr", d.Store.Redis.Addr)
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("store.redis.key_prefix", d.Store.Redis.KeyPrefix)
	v.SetDefault("store.postgres.dsn", "")
	v.SetDefault("store.postgres.auto_migrate", false)
	v.SetDefault("store.sqlite.path", d.Store.SQLite.Path)

	v.SetDefault("kafka.brokers", d.Kafka.Brokers)
	v.SetDefault("kafka.group_id", d.Kafka.GroupID)
	v.SetDefault("kafka.request_topic", d.Kafka.RequestTopic)
	v.SetDefault("kafka.result_topic", d.Kafka.ResultTopic)
	v.SetDefault("kafka.dlq_topic", d.Kafka.DLQTopic)
	v.SetDefault("kafka.max_retries", d.Kafka.MaxRetries)

	v.SetDefault("minio.endpoint", d.MinIO.Endpoint)
	v.SetDefault("minio.access_key", "")
	v.SetDefault("minio.secret_key", "")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.bucket", d.MinIO.Bucket)
}

//Personal.AI order the ending
