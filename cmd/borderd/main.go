package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/border-data-service/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/border-data-service/internal/adapter/kafka"
	"github.com/couchcryptid/border-data-service/internal/adapter/mapbox"
	"github.com/couchcryptid/border-data-service/internal/adapter/socrata"
	"github.com/couchcryptid/border-data-service/internal/config"
	"github.com/couchcryptid/border-data-service/internal/domain"
	"github.com/couchcryptid/border-data-service/internal/observability"
	"github.com/couchcryptid/border-data-service/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	// Geocoder fills in ports the dataset left without coordinates.
	var geocoder domain.Geocoder
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, logger, metrics)
		geocoder = mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	// Left as a nil interface when disabled so the aggregator skips publishing.
	var publisher pipeline.Publisher
	var kafkaPublisher *kafkaadapter.Publisher
	if cfg.KafkaEnabled {
		kafkaPublisher = kafkaadapter.NewPublisher(cfg, logger, metrics)
		publisher = kafkaPublisher
		logger.Info("kafka publishing enabled", "topic", cfg.KafkaSinkTopic, "brokers", cfg.KafkaBrokers)
	}

	fetcher := socrata.NewClient(cfg.DatasetURL, cfg.DatasetTimeout, logger, metrics)
	agg := pipeline.New(fetcher, geocoder, publisher, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, agg, agg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	if cfg.WarmOnStart {
		go func() {
			if _, err := agg.Load(ctx); err != nil {
				logger.Warn("cache warm-up failed", "error", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if kafkaPublisher != nil {
		if err := kafkaPublisher.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
