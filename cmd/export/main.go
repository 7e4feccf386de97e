package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/couchcryptid/rise-hydromet-export/internal/adapter/files"
	"github.com/couchcryptid/rise-hydromet-export/internal/adapter/httpadapter"
	"github.com/couchcryptid/rise-hydromet-export/internal/adapter/hydromet"
	kafkaadapter "github.com/couchcryptid/rise-hydromet-export/internal/adapter/kafka"
	"github.com/couchcryptid/rise-hydromet-export/internal/adapter/ledger"
	"github.com/couchcryptid/rise-hydromet-export/internal/config"
	"github.com/couchcryptid/rise-hydromet-export/internal/domain"
	"github.com/couchcryptid/rise-hydromet-export/internal/observability"
	"github.com/couchcryptid/rise-hydromet-export/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	// Two positional arguments override every entry's window.
	override, err := domain.ParseOverride(os.Args[1:], time.Local)
	if err != nil {
		logger.Error("invalid override window", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, override, logger, metrics); err != nil {
		logger.Error("export failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, override *domain.TimeWindow, logger *slog.Logger, metrics *observability.Metrics) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	accessors := newAccessors(cfg, logger, metrics)
	fetcher := pipeline.NewFetcher(accessors, cfg.HydrometTimeout)

	lines, err := files.ReadControlLines(cfg.ControlFile)
	if err != nil {
		return err
	}

	opts := pipeline.Options{
		SourceCode: cfg.SourceCode,
		Override:   override,
	}

	if cfg.KafkaEnabled {
		publisher := kafkaadapter.NewPublisher(cfg, logger)
		defer func() {
			if err := publisher.Close(); err != nil {
				logger.Error("kafka publisher close error", "error", err)
			}
		}()
		opts.Publisher = publisher
		logger.Info("kafka publishing enabled", "topic", cfg.KafkaTopic)
	}

	var ledgerRun *ledger.Run
	if cfg.LedgerPath != "" {
		l, err := ledger.Open(ctx, cfg.LedgerPath)
		if err != nil {
			logger.Warn("run ledger unavailable", "path", cfg.LedgerPath, "error", err)
		} else {
			defer l.Close()
			if ledgerRun, err = l.StartRun(ctx, override); err != nil {
				logger.Warn("start ledger run failed", "error", err)
			} else {
				opts.Recorder = ledgerRun
				logger.Info("run ledger enabled", "path", cfg.LedgerPath, "run_id", ledgerRun.ID())
			}
		}
	}

	p := pipeline.New(fetcher, logger, metrics, opts)

	if cfg.HTTPAddr != "" {
		srv := httpadapter.NewServer(cfg.HTTPAddr, p, prometheus.DefaultGatherer, logger)
		if err := srv.Listen(); err != nil {
			logger.Warn("http server unavailable, exporting without it", "error", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("http server shutdown error", "error", err)
			}
		}()
	}

	out, err := files.CreateOutput(cfg.OutputPath())
	if err != nil {
		return err
	}

	logger.Info("export starting",
		"control_file", cfg.ControlFile,
		"output", cfg.OutputPath(),
		"override", override != nil,
	)

	summary, runErr := p.Run(ctx, lines, out)
	if err := out.Close(); err != nil && runErr == nil {
		runErr = fmt.Errorf("%w: close output: %w", domain.ErrDestination, err)
	}

	if ledgerRun != nil {
		// The run context may already be cancelled; the totals are still worth keeping.
		if err := ledgerRun.Finish(context.WithoutCancel(ctx), summary); err != nil {
			metrics.LedgerErrors.Inc()
			logger.Warn("finish ledger run failed", "error", err)
		}
	}

	if runErr == nil {
		metrics.LastSuccess.SetToCurrentTime()
	}

	if cfg.PushgatewayURL != "" {
		if err := observability.Push(cfg.PushgatewayURL, prometheus.DefaultGatherer); err != nil {
			logger.Warn("metrics push failed", "error", err)
		}
	}

	return runErr
}

// newAccessors binds one Hydromet accessor per resolution, sharing a series
// cache when SERIES_CACHE_SIZE is positive.
func newAccessors(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) pipeline.Accessors {
	client := hydromet.NewClient(cfg.HydrometBaseURL, cfg.HydrometTimeout, cfg.HydrometGzip, metrics, logger)

	var cache *hydromet.SeriesCache
	if cfg.SeriesCacheSize > 0 {
		cache = hydromet.NewSeriesCache(cfg.SeriesCacheSize)
		logger.Info("series cache enabled", "size", cfg.SeriesCacheSize)
	}

	reader := func(res domain.Resolution) pipeline.SeriesReader {
		accessor := client.Accessor(res)
		if cache == nil {
			return accessor
		}
		return hydromet.NewCachedReader(accessor, res.String(), cache, metrics)
	}

	return pipeline.Accessors{
		Instant: reader(domain.Instant),
		Daily:   reader(domain.Daily),
		Monthly: reader(domain.Monthly),
	}
}
