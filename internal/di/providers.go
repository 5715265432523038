// Package di wires the daemon's components. Providers live here; wire.go
// declares the injector and wire_gen.go is its generated body.
package di

import (
	"context"

	"github.com/google/wire"
	"go.uber.org/zap"

	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/application/session"
	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/config"
	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/domain/record"
	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/infrastructure/fetch"
	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/infrastructure/observability"
)

// Container holds the daemon's long-lived components.
type Container struct {
	Config   *config.Config
	Logger   *zap.Logger
	Metrics  *observability.Collector
	Tracing  *observability.TracerProvider
	Fetches  *fetch.Registry
	Sessions *session.Manager
}

// SuperSet is every provider the injector needs.
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideMetrics,
	ProvideTracing,
	ProvideNamespace,
	ProvideBaseFetcher,
	ProvideFetchRegistry,
	ProvideSessionManager,
	wire.Struct(new(Container), "*"),
)

// ProvideLogger builds the process logger for the configured environment.
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	return observability.NewLogger(string(cfg.Environment), cfg.Logging.Level)
}

// ProvideMetrics creates the Prometheus collector. It exists even when the
// endpoint is disabled so components never see a nil recorder.
func ProvideMetrics(cfg *config.Config) *observability.Collector {
	return observability.NewCollector(cfg.Metrics.Namespace)
}

// ProvideTracing installs the tracer provider. The cleanup flushes spans.
func ProvideTracing(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*observability.TracerProvider, func(), error) {
	tp, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		Environment: string(cfg.Environment),
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRate:  cfg.Tracing.SampleRate,
		Insecure:    cfg.Tracing.Insecure,
	})
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Warn("Failed to flush traces", zap.Error(err))
		}
	}
	return tp, cleanup, nil
}

// ProvideNamespace builds the key namespace from the qualifier table.
func ProvideNamespace(cfg *config.Config) *record.Namespace {
	return record.NewNamespace(cfg.Qualifiers())
}

// ProvideBaseFetcher picks the Supabase fetcher when a project URL is
// configured and the simulated one otherwise.
func ProvideBaseFetcher(cfg *config.Config, logger *zap.Logger) (fetch.Fetcher, error) {
	if cfg.Supabase.URL == "" {
		logger.Info("No Supabase project configured, using simulated fetchers",
			zap.Duration("latency", cfg.Fetch.Simulated.Latency),
			zap.Float64("failure_rate", cfg.Fetch.Simulated.FailureRate),
		)
		return &fetch.SimulatedFetcher{
			Latency:     cfg.Fetch.Simulated.Latency,
			FailureRate: cfg.Fetch.Simulated.FailureRate,
		}, nil
	}

	f, err := fetch.NewSupabaseFetcher(cfg.Supabase.URL, cfg.Supabase.Key, nil)
	if err != nil {
		return nil, err
	}
	logger.Info("Using Supabase fetchers", zap.String("url", cfg.Supabase.URL))
	return f, nil
}

// ProvideFetchRegistry registers base for every category behind the
// decorator chain, outermost first: tracing, logging, circuit breaker,
// retry, per-attempt timeout.
func ProvideFetchRegistry(cfg *config.Config, base fetch.Fetcher, metrics *observability.Collector, tp *observability.TracerProvider, logger *zap.Logger) *fetch.Registry {
	fetchLogger := logger.Named("fetch")

	decorators := []fetch.Decorator{
		fetch.WithTracing(tp.Tracer()),
		fetch.WithLogging(fetchLogger),
	}
	if cfg.Fetch.CircuitBreaker.Enabled {
		breaker := cfg.Fetch.CircuitBreaker
		decorators = append(decorators, fetch.WithCircuitBreaker(fetch.CircuitBreakerConfig{
			MaxRequests:      breaker.MaxRequests,
			Interval:         breaker.Interval,
			Timeout:          breaker.Timeout,
			FailureThreshold: breaker.FailureThreshold,
			MinRequests:      breaker.MinRequests,
		}, metrics, fetchLogger))
	}
	retry := cfg.Fetch.Retry
	decorators = append(decorators,
		fetch.WithRetry(fetch.RetryConfig{
			MaxAttempts:   retry.MaxAttempts,
			BaseDelay:     retry.BaseDelay,
			MaxDelay:      retry.MaxDelay,
			BackoffFactor: retry.BackoffFactor,
			JitterFactor:  retry.JitterFactor,
		}, fetchLogger),
		fetch.WithTimeout(cfg.Fetch.Timeout),
	)

	registry := fetch.NewRegistry()
	registry.RegisterAll(base, decorators...)
	return registry
}

// ProvideSessionManager creates the manager hosting client sessions. The
// cleanup closes them all.
func ProvideSessionManager(cfg *config.Config, registry *fetch.Registry, namespace *record.Namespace, metrics *observability.Collector, logger *zap.Logger) (*session.Manager, func()) {
	manager := session.NewManager(session.ManagerConfig{
		Session: session.Config{
			QuietPeriod:   cfg.Session.QuietPeriod,
			SweepInterval: cfg.Session.SweepInterval,
			Workers:       cfg.Dispatch.Workers,
			QueueSize:     cfg.Dispatch.QueueSize,
		},
		Thresholds:  cfg.Network,
		IdleTimeout: cfg.Session.IdleTimeout,
	}, session.Deps{
		Fetches:   registry,
		Namespace: namespace,
		Recorder:  metrics,
		Logger:    logger,
	})
	return manager, manager.CloseAll
}
