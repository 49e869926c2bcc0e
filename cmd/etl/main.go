package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/crime-incident-etl/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/crime-incident-etl/internal/adapter/kafka"
	"github.com/couchcryptid/crime-incident-etl/internal/adapter/mapbox"
	"github.com/couchcryptid/crime-incident-etl/internal/config"
	"github.com/couchcryptid/crime-incident-etl/internal/domain"
	"github.com/couchcryptid/crime-incident-etl/internal/observability"
	"github.com/couchcryptid/crime-incident-etl/internal/pipeline"
	"github.com/couchcryptid/crime-incident-etl/internal/session"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	// Centroid labels are feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN.
	var geocoder domain.Geocoder
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
		geocoder = mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	store := session.NewStore(cfg.SessionCapacity, nil)
	api := httpadapter.NewAPI(store, httpadapter.APIConfig{
		Tolerance:      cfg.IndicatorTolerance,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Geocoder:       geocoder,
	}, metrics, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		ready   sharedobs.ReadinessChecker = httpadapter.AlwaysReady{}
		reader  *kafkaadapter.Reader
		writer  *kafkaadapter.Writer
		running sync.WaitGroup
	)
	if cfg.PipelineEnabled {
		reader = kafkaadapter.NewReader(cfg, logger)
		writer = kafkaadapter.NewWriter(cfg, logger)
		p := pipeline.New(reader, pipeline.NewTransformer(logger), writer, store, logger, metrics, cfg.BatchSize)
		ready = p

		running.Add(1)
		go func() {
			defer running.Done()
			if err := p.Run(ctx); err != nil {
				logger.Error("pipeline error", "error", err)
			}
		}()
	} else {
		logger.Info("upload pipeline disabled")
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, api, ready, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	running.Wait()
	if reader != nil {
		if err := reader.Close(); err != nil {
			logger.Error("kafka reader close error", "error", err)
		}
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
