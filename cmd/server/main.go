package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/afroash/corrosion-monitor/internal/config"
	"github.com/afroash/corrosion-monitor/internal/logging"
	"github.com/afroash/corrosion-monitor/internal/metrics"
	"github.com/afroash/corrosion-monitor/internal/query"
	"github.com/afroash/corrosion-monitor/internal/server"
	"github.com/afroash/corrosion-monitor/internal/storage"
)

const version = "v0.3.0"

func main() {
	configPath := flag.String("config", "configs/server.yaml", "path to config file")
	envPath := flag.String("env", ".env", "path to optional .env file")
	flag.Parse()

	if err := config.LoadEnvFile(*envPath); err != nil {
		log.Fatalf("Failed to load env file: %v", err)
	}
	cfg, err := config.LoadAppConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, logCloser, err := logging.New(cfg.Logging, os.Stdout)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logCloser.Close()

	logger.Info().
		Str("version", version).
		Int("port", cfg.Server.Port).
		Str("driver", cfg.Database.Driver).
		Msg("Starting corrosion monitor server")
	logger.Debug().Str("config", cfg.String()).Msg("Configuration loaded")

	store, err := openStore(cfg.Database, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open store")
	}

	m := metrics.New()
	service := query.NewService(store, logger)
	service.SetObserver(m)

	api := server.NewAPIHandler(service, server.APIConfig{
		DefaultPageSize: cfg.Query.DefaultPageSize,
		RecentLimit:     cfg.Query.RecentLimit,
	}, logger)
	stream := server.NewStreamHandler(service, cfg.Refresh.Interval, m, logger, cfg.Server.AllowedOrigins...)
	api.SetSessionCounter(stream)

	router := server.NewRouter(server.RouterConfig{
		API:            api,
		Stream:         stream,
		Metrics:        m,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Version:        version,
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	srv.RegisterOnShutdown(stream.CloseAll)

	// Start server in goroutine
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown error")
	}

	if err := store.Close(); err != nil {
		logger.Error().Err(err).Msg("Store close error")
	} else {
		logger.Info().Msg("Store closed")
	}

	logger.Info().Msg("Server stopped")
}

// openStore connects to the configured database
func openStore(db config.DatabaseSettings, logger zerolog.Logger) (storage.Store, error) {
	if db.Driver == storage.DriverSQLite {
		if err := os.MkdirAll(filepath.Dir(db.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	store, err := storage.NewSQLStore(db.SQLConfig(), logger)
	if err != nil {
		return nil, err
	}
	return store, nil
}
