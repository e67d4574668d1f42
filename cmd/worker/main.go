// Command worker consumes featurize requests from Kafka, uploads each result
// matrix to MinIO and publishes a result event.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/turtacn/padel-featurizer/internal/bootstrap"
	"github.com/turtacn/padel-featurizer/internal/config"
	"github.com/turtacn/padel-featurizer/internal/infrastructure/database/postgres"
	"github.com/turtacn/padel-featurizer/internal/infrastructure/database/redis"
	"github.com/turtacn/padel-featurizer/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/padel-featurizer/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/padel-featurizer/internal/infrastructure/storage/minio"
	httpserver "github.com/turtacn/padel-featurizer/internal/interfaces/http"
	"github.com/turtacn/padel-featurizer/internal/interfaces/http/handlers"
	"github.com/turtacn/padel-featurizer/internal/interfaces/worker"
)

// version is injected at build time via -ldflags "-X main.version=...".
var version = "dev"

const (
	defaultHealthPort = 8081
	defaultJobTimeout = 10 * time.Minute
)

func main() {
	configPath := flag.String("config", "", "path to configuration file (default: search ./configs and .)")
	healthPort := flag.Int("health-port", defaultHealthPort, "port for /healthz, /readyz and /metrics")
	jobTimeout := flag.Duration("job-timeout", defaultJobTimeout, "upper bound for a single job")
	flag.Parse()

	if err := run(*configPath, *healthPort, *jobTimeout); err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, healthPort int, jobTimeout time.Duration) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.ValidateWorker(); err != nil {
		return err
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	topics, err := kafka.NewTopicManager(ctx, cfg.Kafka.Brokers, logger)
	if err != nil {
		return err
	}
	err = topics.EnsureTopics(kafka.DefaultTopics(cfg.Kafka))
	topics.Close()
	if err != nil {
		return err
	}

	producer, err := kafka.NewProducer(kafka.ProducerConfig{Brokers: cfg.Kafka.Brokers}, logger)
	if err != nil {
		return err
	}
	defer producer.Close()

	store, err := minio.NewClient(ctx, cfg.MinIO, logger.Named("minio"))
	if err != nil {
		return err
	}
	defer store.Close()

	opts := []worker.Option{
		worker.WithArtifacts(minio.NewArtifactRepository(store, logger)),
		worker.WithMetrics(rt.Metrics),
		worker.WithLogger(logger),
	}
	if rt.Postgres != nil {
		opts = append(opts, worker.WithJobs(postgres.NewJobRepository(rt.Postgres)))
	}
	if rt.Redis != nil {
		opts = append(opts, worker.WithLocker(redis.NewLockFactory(rt.Redis, logger.Named("lock"))))
	}
	w, err := worker.New(rt.Service, producer, worker.Config{
		ResultTopic: cfg.Kafka.ResultTopic,
		JobTimeout:  jobTimeout,
	}, opts...)
	if err != nil {
		return err
	}

	consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers: cfg.Kafka.Brokers,
		GroupID: cfg.Kafka.GroupID,
		Topics:  []string{cfg.Kafka.RequestTopic},
		RetryConfig: kafka.RetryConfig{
			MaxRetries:      cfg.Kafka.MaxRetries,
			DeadLetterTopic: cfg.Kafka.DLQTopic,
		},
	}, producer, logger)
	if err != nil {
		return err
	}
	consumer.Subscribe(cfg.Kafka.RequestTopic, w.Handle)

	health := httpserver.NewServer(httpserver.ServerConfig{Port: healthPort}, httpserver.NewRouter(httpserver.RouterConfig{
		HealthHandler: handlers.NewHealthHandler(version,
			handlers.CheckerFunc{ComponentName: "minio", Fn: store.HealthCheck},
		),
		Metrics:          rt.Metrics,
		MetricsCollector: rt.Collector,
		MetricsPath:      cfg.Metrics.Path,
	}), logger)
	go func() {
		if err := health.Start(); err != nil {
			logger.Error("health server failed", logging.Err(err))
			stop()
		}
	}()

	if err := consumer.Start(ctx); err != nil {
		return err
	}
	logger.Info("worker started",
		logging.String("request_topic", cfg.Kafka.RequestTopic),
		logging.String("result_topic", cfg.Kafka.ResultTopic),
		logging.String("group", cfg.Kafka.GroupID))

	<-ctx.Done()
	logger.Info("shutting down worker")

	// Close waits for the in-flight message; cancelled jobs stay uncommitted.
	if err := consumer.Close(); err != nil {
		logger.Error("consumer close failed", logging.Err(err))
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := health.Shutdown(shutdownCtx); err != nil {
		logger.Error("health server shutdown failed", logging.Err(err))
	}
	logger.Info("worker stopped", logging.Int64("processed", consumer.Stats().Processed))
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	cfg, _, err := config.Search("configs", ".")
	return cfg, err
}
