package bootstrap

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/padel-featurizer/internal/infrastructure/monitoring/logging"
	grpcserver "github.com/turtacn/padel-featurizer/internal/interfaces/grpc"
	"github.com/turtacn/padel-featurizer/internal/interfaces/grpc/services"
	httpserver "github.com/turtacn/padel-featurizer/internal/interfaces/http"
	"github.com/turtacn/padel-featurizer/internal/interfaces/http/handlers"
	"github.com/turtacn/padel-featurizer/pkg/errors"
)

var errNotReady = errors.New(errors.ErrCodeServiceUnavailable, "featurizer schema not discovered")

// HealthCheckers reports the featurizer and whichever store backend the
// runtime opened.
func (rt *Runtime) HealthCheckers() []handlers.HealthChecker {
	checkers := []handlers.HealthChecker{
		handlers.CheckerFunc{ComponentName: "featurizer", Fn: func(context.Context) error {
			if rt.Service == nil || len(rt.Service.Columns()) == 0 {
				return errNotReady
			}
			return nil
		}},
	}
	if rt.Postgres != nil {
		checkers = append(checkers, handlers.CheckerFunc{ComponentName: "postgres", Fn: rt.Postgres.HealthCheck})
	}
	if rt.Redis != nil {
		checkers = append(checkers, handlers.CheckerFunc{ComponentName: "redis", Fn: rt.Redis.Ping})
	}
	return checkers
}

// RouterConfig wires the REST handlers over the runtime.
func (rt *Runtime) RouterConfig(version string) httpserver.RouterConfig {
	return httpserver.RouterConfig{
		FeaturizeHandler: handlers.NewFeaturizeHandler(rt.Service, rt.Logger.Named("http"), rt.Config.Server.HTTP.MaxBodySize),
		HealthHandler:    handlers.NewHealthHandler(version, rt.HealthCheckers()...),
		Logger:           rt.Logger.Named("http"),
		Metrics:          rt.Metrics,
		MetricsCollector: rt.Collector,
		MetricsPath:      rt.Config.Metrics.Path,
	}
}

// Serve runs the HTTP API and, when a gRPC port is configured, the gRPC
// featurizer service until ctx ends.  Both are shut down gracefully within
// server.shutdown_timeout.
func (rt *Runtime) Serve(ctx context.Context, version string) error {
	cfg := rt.Config.Server
	httpSrv := httpserver.NewServer(httpserver.ServerConfig{
		Host:         cfg.HTTP.Host,
		Port:         cfg.HTTP.Port,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}, httpserver.NewRouter(rt.RouterConfig(version)), rt.Logger)

	var grpcSrv *grpcserver.Server
	if cfg.GRPC.Port > 0 {
		var err error
		grpcSrv, err = grpcserver.NewServer(&cfg.GRPC,
			grpcserver.WithLogger(rt.Logger.Named("grpc")),
			grpcserver.WithMetrics(rt.Metrics),
			grpcserver.WithGracefulTimeout(cfg.ShutdownTimeout))
		if err != nil {
			return err
		}
		grpcSrv.RegisterService(&services.FeaturizerServiceDesc, services.NewFeaturizerService(rt.Service, rt.Logger))
	}
	rt.Metrics.SetReady(rt.Service.Name(), true)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(httpSrv.Start)
	if grpcSrv != nil {
		g.Go(grpcSrv.Start)
	}
	g.Go(func() error {
		<-gctx.Done()
		rt.Logger.Info("shutting down servers")
		rt.Metrics.SetReady(rt.Service.Name(), false)

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
		defer cancel()
		var first error
		if grpcSrv != nil {
			if err := grpcSrv.Stop(shutdownCtx); err != nil {
				rt.Logger.Error("gRPC shutdown failed", logging.Err(err))
				first = err
			}
		}
		if err := httpSrv.Shutdown(shutdownCtx); err != nil && first == nil {
			first = err
		}
		return first
	})
	return g.Wait()
}
