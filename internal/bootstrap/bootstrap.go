// Package bootstrap assembles a featurization runtime from configuration:
// metrics, the PaDEL client, the feature store and the featurize service.
package bootstrap

import (
	"context"
	"io"
	"time"

	"github.com/samber/lo"

	"github.com/turtacn/padel-featurizer/internal/application/featurize"
	"github.com/turtacn/padel-featurizer/internal/config"
	"github.com/turtacn/padel-featurizer/internal/domain/molecule"
	"github.com/turtacn/padel-featurizer/internal/featurizer/calc"
	"github.com/turtacn/padel-featurizer/internal/featurizer/registry"
	"github.com/turtacn/padel-featurizer/internal/featurizer/trans"
	"github.com/turtacn/padel-featurizer/internal/infrastructure/database/postgres"
	"github.com/turtacn/padel-featurizer/internal/infrastructure/database/redis"
	"github.com/turtacn/padel-featurizer/internal/infrastructure/database/sqlite"
	"github.com/turtacn/padel-featurizer/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/padel-featurizer/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/padel-featurizer/internal/infrastructure/store"
	"github.com/turtacn/padel-featurizer/internal/padel"
	"github.com/turtacn/padel-featurizer/pkg/errors"
)

// Runtime holds the assembled components.  Close releases them in reverse
// order of creation.
type Runtime struct {
	Config    *config.Config
	Logger    logging.Logger
	Collector prometheus.MetricsCollector
	Metrics   *prometheus.FeaturizerMetrics
	Service   featurize.Service

	// Set only for the matching store driver.
	Redis    *redis.Client
	Postgres *postgres.Connection

	closers []io.Closer
}

// Option customizes New.
type Option func(*options)

type options struct {
	client   padel.Client
	toolkit  molecule.Toolkit
	registry *registry.Registry
}

// WithClient replaces the exec-based PaDEL client.
func WithClient(c padel.Client) Option {
	return func(o *options) { o.client = c }
}

// WithToolkit replaces the built-in molecule toolkit.
func WithToolkit(tk molecule.Toolkit) Option {
	return func(o *options) { o.toolkit = tk }
}

// WithRegistry replaces registry.Default().
func WithRegistry(r *registry.Registry) Option {
	return func(o *options) { o.registry = r }
}

// New builds the runtime.  The PaDEL schema is probed before it returns.
func New(ctx context.Context, cfg *config.Config, log logging.Logger, opts ...Option) (rt *Runtime, err error) {
	if log == nil {
		log = logging.NewNopLogger()
	}
	o := &options{registry: registry.Default()}
	for _, opt := range opts {
		opt(o)
	}

	rt = &Runtime{Config: cfg, Logger: log}
	defer func() {
		if err != nil {
			rt.Close()
			rt = nil
		}
	}()

	if cfg.Metrics.Enabled {
		rt.Collector, err = prometheus.NewMetricsCollector(prometheus.CollectorConfig{
			Namespace:            cfg.Metrics.Namespace,
			EnableProcessMetrics: true,
			EnableGoMetrics:      true,
		}, log)
		if err != nil {
			return nil, err
		}
		rt.Metrics = prometheus.NewFeaturizerMetrics(rt.Collector)
	}

	client := o.client
	if client == nil {
		client, err = padel.NewExecClient(ExecConfig(cfg.Padel), padel.WithLogger(log.Named("padel")))
		if err != nil {
			return nil, err
		}
	}
	client = padel.Instrument(client, rt.Metrics)

	st, err := rt.openStore(ctx)
	if err != nil {
		return nil, err
	}

	dtype, err := trans.ParseDType(cfg.Transformer.DType)
	if err != nil {
		return nil, err
	}
	tcfg := trans.TransformerConfig{
		NJobs:   cfg.Transformer.NJobs,
		Verbose: cfg.Transformer.Verbose,
		DType:   dtype,
		ParallelKwargs: map[string]any{
			trans.KwItemTimeout:  cfg.Transformer.ItemTimeout,
			trans.KwBatchTimeout: cfg.Transformer.BatchTimeout,
			trans.KwShardSize:    cfg.Transformer.ShardSize,
		},
		Logger:  log.Named("transformer"),
		Metrics: rt.Metrics,
	}
	params := Params(cfg.Padel)
	deps := registry.Deps{
		Client:      client,
		Toolkit:     o.toolkit,
		Logger:      log,
		Metrics:     rt.Metrics,
		Transformer: tcfg,
		Store:       st,
		StoreName:   cfg.Store.Driver,
	}

	start := time.Now()
	f, err := o.registry.New(ctx, calc.Name, deps, params.Map())
	if err != nil {
		return nil, err
	}
	log.Info("featurizer ready",
		logging.String("featurizer", f.Name()),
		logging.Int("columns", len(f.Columns())),
		logging.String("store", cfg.Store.Driver),
		logging.Duration("probe", time.Since(start)))

	rt.Service = featurize.NewService(f, params, log)
	return rt, nil
}

func (rt *Runtime) openStore(ctx context.Context) (store.FeatureStore, error) {
	cfg := rt.Config.Store
	log := rt.Logger.Named("store")
	switch cfg.Driver {
	case "", config.StoreNone:
		return nil, nil
	case config.StoreMemory:
		s, err := store.NewMemoryStore(cfg.LRUSize)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, s)
		return s, nil
	case config.StoreRedis:
		c, err := redis.NewClient(&redis.RedisConfig{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			PoolSize:    cfg.Redis.PoolSize,
			DialTimeout: cfg.Redis.DialTimeout,
		}, log)
		if err != nil {
			return nil, err
		}
		rt.Redis = c
		s := redis.NewFeatureStore(c, log, redis.WithPrefix(cfg.Redis.KeyPrefix), redis.WithTTL(cfg.TTL))
		rt.closers = append(rt.closers, s)
		return s, nil
	case config.StorePostgres:
		conn, err := postgres.NewConnection(postgres.PostgresConfig{
			DSN:             cfg.Postgres.DSN,
			MaxOpenConns:    cfg.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Postgres.MaxIdleConns,
			ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
		}, log)
		if err != nil {
			return nil, err
		}
		rt.Postgres = conn
		rt.closers = append(rt.closers, conn)
		if cfg.Postgres.AutoMigrate {
			if err := conn.RunMigrations(); err != nil {
				return nil, err
			}
		}
		return postgres.NewFeatureStore(conn), nil
	case config.StoreSQLite:
		s, err := sqlite.Open(ctx, cfg.SQLite.Path, log)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, s)
		return s, nil
	}
	return nil, errors.Newf(errors.ErrCodeValidation, "unknown store driver %q", cfg.Driver)
}

// Close releases every resource the runtime opened.
func (rt *Runtime) Close() error {
	var first error
	for _, c := range lo.Reverse(rt.closers) {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	rt.closers = nil
	return first
}

// ExecConfig maps the padel config section onto the exec client.
func ExecConfig(c config.PadelConfig) padel.ExecConfig {
	return padel.ExecConfig{
		JavaPath:   c.JavaPath,
		JarPath:    c.JarPath,
		JavaOpts:   c.JavaOpts,
		Threads:    c.Threads,
		MaxRuntime: c.MaxRuntime,
		WorkDir:    c.WorkDir,
		KeepFiles:  c.KeepFiles,
	}
}

// Params maps the padel config section onto calculator parameters.  The
// timeout is truncated to whole seconds.
func Params(c config.PadelConfig) calc.Params {
	return calc.Params{
		Descriptors:      c.Descriptors,
		Fingerprints:     c.Fingerprints,
		Timeout:          int(c.Timeout / time.Second),
		ReplaceNaN:       c.ReplaceNaN,
		DoNotStandardize: c.DoNotStandardize,
	}
}
