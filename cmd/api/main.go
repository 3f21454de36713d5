package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gentree/infrastructure/config"
	"gentree/infrastructure/di"
	"gentree/interfaces/http/rest"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	container, cleanup, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
	logger := container.Logger

	if err := run(ctx, container); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
		cleanup()
		os.Exit(1)
	}

	// Pending saves are written before storage closes.
	cleanup()
	log.Println("Server stopped")
}

func run(ctx context.Context, container *di.Container) error {
	cfg := container.Config
	logger := container.Logger

	router := rest.NewRouter(
		container.CommandBus,
		container.Tree,
		container.Views,
		container.Photos,
		container.Collector,
		container.Validator,
		cfg,
		logger,
	)

	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      router.Setup(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting server",
			zap.String("address", cfg.ServerAddress),
			zap.String("environment", cfg.Environment),
			zap.String("storage", cfg.StorageBackend),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		select {
		case <-container.Tree.Ready():
			st := container.Tree.Stats()
			logger.Info("Tree loaded", zap.Int("persons", st.Persons), zap.Int("positioned", st.Positioned))
		case <-gctx.Done():
		}
		return nil
	})

	if cfg.ConfigFile != "" {
		watcher, err := config.NewWatcher(cfg, container.LogLevel, logger)
		if err != nil {
			logger.Warn("Config watcher disabled", zap.Error(err))
		} else {
			watcher.OnChange(func(next *config.Config) {
				logger.Info("Configuration reloaded", zap.String("logLevel", next.LogLevel))
			})
			watcher.Start()
			g.Go(func() error {
				<-gctx.Done()
				watcher.Stop()
				return nil
			})
		}
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", zap.Error(err))
		}
		logger.Info("Flushing pending saves", zap.Int("pending", container.Saver.Pending()))
		if err := container.Tree.Flush(shutdownCtx); err != nil {
			logger.Error("Failed to flush pending saves", zap.Error(err))
		}
		return nil
	})

	return g.Wait()
}
