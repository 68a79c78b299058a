// Command etl runs one batch: it reads the sources declared in the sources
// manifest, validates them, replaces the target collection contents, and
// audits what was stored.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/weather-station-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/weather-station-etl/internal/adapter/jsonfile"
	kafkaadapter "github.com/couchcryptid/weather-station-etl/internal/adapter/kafka"
	"github.com/couchcryptid/weather-station-etl/internal/adapter/memstore"
	"github.com/couchcryptid/weather-station-etl/internal/adapter/mongo"
	"github.com/couchcryptid/weather-station-etl/internal/config"
	"github.com/couchcryptid/weather-station-etl/internal/domain"
	"github.com/couchcryptid/weather-station-etl/internal/observability"
	"github.com/couchcryptid/weather-station-etl/internal/pipeline"
	"github.com/couchcryptid/weather-station-etl/internal/store"
)

func main() {
	manifestPath := flag.String("manifest", "", "sources manifest (overrides SOURCES_MANIFEST)")
	dryRun := flag.Bool("dry-run", false, "load into an in-memory store instead of MongoDB")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *manifestPath != "" {
		cfg.SourcesManifest = *manifestPath
	}
	if *dryRun {
		cfg.StoreDriver = config.DriverMemory
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	manifest, err := config.LoadManifest(cfg.SourcesManifest)
	if err != nil {
		logger.Error("failed to load sources manifest", "error", err)
		os.Exit(1)
	}

	enc, err := csvfile.EncodingByName(manifest.Tabular.Encoding)
	if err != nil {
		logger.Error("invalid tabular encoding", "error", err)
		os.Exit(1)
	}
	tabular := csvfile.NewReader(manifest.Tabular.DelimiterRune(), enc, manifest.Tabular.Skip()...).Require(domain.ColTime)

	var sink pipeline.ReportSink
	if cfg.PublishReports() {
		publisher := kafkaadapter.NewPublisher(cfg, logger)
		defer func() {
			if err := publisher.Close(); err != nil {
				logger.Error("kafka publisher close error", "error", err)
			}
		}()
		sink = publisher
	}

	p := pipeline.New(manifest, tabular, pipeline.StructuredReaderFunc(jsonfile.ReadHourly), newOpener(cfg, logger), sink, logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res := p.Run(ctx)

	if cfg.PushgatewayURL != "" {
		host, _ := os.Hostname()
		if err := observability.Push(ctx, cfg.PushgatewayURL, host, metrics); err != nil {
			logger.Error("metrics push failed", "error", err)
		}
	}

	switch res.State {
	case pipeline.StateCompletedWithData:
		logger.Info("etl completed", "records", res.Records, "stored", res.Stored)
	case pipeline.StateCompletedEmpty:
		logger.Warn("etl completed without data")
	case pipeline.StateLoadFailed:
		logger.Error("etl load failed", "records", res.Records, "stored", res.Stored)
	}
}

func newOpener(cfg *config.Config, logger *slog.Logger) store.Opener {
	if cfg.StoreDriver == config.DriverMemory {
		logger.Info("using in-memory store")
		return memstore.New()
	}
	return mongo.NewOpener(cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection, cfg.MongoConnectTimeout, logger)
}
