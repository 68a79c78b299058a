// Command audit runs the quality range audit and the post-load integrity
// pass against any populated collection. With -serve it re-audits on
// AUDIT_INTERVAL and exposes /healthz, /readyz, /metrics, and /report.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	httpadapter "github.com/couchcryptid/weather-station-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/weather-station-etl/internal/adapter/kafka"
	"github.com/couchcryptid/weather-station-etl/internal/adapter/mongo"
	"github.com/couchcryptid/weather-station-etl/internal/audit"
	"github.com/couchcryptid/weather-station-etl/internal/config"
	"github.com/couchcryptid/weather-station-etl/internal/domain"
	"github.com/couchcryptid/weather-station-etl/internal/observability"
	"github.com/couchcryptid/weather-station-etl/internal/quality"
)

func main() {
	serve := flag.Bool("serve", false, "audit periodically and serve health, metrics, and the latest report")
	uri := flag.String("uri", "", "MongoDB URI (overrides MONGO_URI)")
	database := flag.String("database", "", "database (overrides MONGO_DATABASE)")
	collection := flag.String("collection", "", "collection (overrides MONGO_COLLECTION)")
	manifestPath := flag.String("manifest", "", "optional sources manifest supplying fields and ranges")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	override(&cfg.MongoURI, *uri)
	override(&cfg.MongoDatabase, *database)
	override(&cfg.MongoCollection, *collection)
	cfg.StoreDriver = config.DriverMongo
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	fields, ranges, err := auditTables(*manifestPath)
	if err != nil {
		logger.Error("failed to load sources manifest", "error", err)
		os.Exit(1)
	}

	var sink audit.ReportSink
	if cfg.PublishReports() {
		publisher := kafkaadapter.NewPublisher(cfg, logger)
		defer func() {
			if err := publisher.Close(); err != nil {
				logger.Error("kafka publisher close error", "error", err)
			}
		}()
		sink = publisher
	}

	opener := mongo.NewOpener(cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection, cfg.MongoConnectTimeout, logger)
	monitor := audit.NewMonitor(opener, quality.New(ranges), fields, sink, clockwork.NewRealClock(), logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !*serve {
		if _, err := monitor.AuditOnce(ctx); err != nil {
			logger.Error("audit failed", "error", err)
			os.Exit(1)
		}
		return
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, monitor, monitor, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start audit loop.
	go func() {
		if err := monitor.Run(ctx, cfg.AuditInterval); err != nil {
			logger.Error("audit monitor error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// auditTables returns the audited fields and range table, from the manifest
// when one is given.
func auditTables(path string) ([]string, []quality.Range, error) {
	if path == "" {
		return domain.NumericFields, quality.DefaultRanges(), nil
	}
	m, err := config.LoadManifest(path)
	if err != nil {
		return nil, nil, fmt.Errorf("audit tables: %w", err)
	}
	return m.Fields, m.Ranges, nil
}
