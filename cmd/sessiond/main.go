// Command sessiond serves record sessions: it keeps a cache of the
// patient record categories per connected client, loads what each view
// needs and prefetches the view the clinician is likely to open next.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/config"
	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/di"
	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/domain/record"
	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/interfaces/http/rest"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, loader, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize dependency container
	container, cleanup, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
	defer cleanup()

	logger := container.Logger

	// Hot reload of the tunables that sessions read at runtime
	watcher, err := config.NewWatcher(loader, cfg, config.DefaultDebounce, logger.Named("config"))
	if err != nil {
		logger.Warn("Config watcher disabled", zap.Error(err))
	} else {
		defer watcher.Stop()
		watcher.OnChange(func(next *config.Config) {
			container.Sessions.SetThresholds(next.Network)
			container.Sessions.SetQuietPeriod(next.Session.QuietPeriod)
		})
	}

	if cfg.Session.IdleTimeout > 0 {
		container.Sessions.StartReaper(ctx, cfg.Session.IdleTimeout/2)
	}

	strategy, err := record.ParseLoadStrategy(cfg.Session.DefaultStrategy)
	if err != nil {
		strategy = record.ViewScoped
	}

	routerConfig := rest.RouterConfig{
		RequestTimeout: cfg.Server.WriteTimeout,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}
	if cfg.Metrics.Enabled {
		routerConfig.MetricsPath = cfg.Metrics.Path
	}
	handler := rest.NewHandler(container.Sessions, strategy, logger.Named("http"))
	router := rest.NewRouter(handler, container.Metrics, routerConfig, logger)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Starting server",
			zap.String("address", srv.Addr),
			zap.String("environment", string(cfg.Environment)),
			zap.Strings("config_sources", cfg.LoadedFrom),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	<-ctx.Done()
	stop()

	// Graceful shutdown
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}

	if err := logger.Sync(); err != nil {
		log.Printf("Failed to sync logger: %v", err)
	}
	log.Println("Server stopped")
}
