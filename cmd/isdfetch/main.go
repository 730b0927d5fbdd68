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
	"time"

	"github.com/couchcryptid/isd-archive-fetch/internal/adapter/catalog"
	"github.com/couchcryptid/isd-archive-fetch/internal/adapter/events"
	httpadapter "github.com/couchcryptid/isd-archive-fetch/internal/adapter/http"
	"github.com/couchcryptid/isd-archive-fetch/internal/archive"
	"github.com/couchcryptid/isd-archive-fetch/internal/classify"
	"github.com/couchcryptid/isd-archive-fetch/internal/config"
	"github.com/couchcryptid/isd-archive-fetch/internal/directory"
	"github.com/couchcryptid/isd-archive-fetch/internal/fetch"
	"github.com/couchcryptid/isd-archive-fetch/internal/observability"
	"github.com/couchcryptid/isd-archive-fetch/internal/pipeline"
)

const usage = `usage: isdfetch [-list] <year|first-last|all> ...

Downloads yearly ISD archives, extracts them, and sorts the target
country's station files by state. Configuration comes from the
environment (ISD_BASE_URL, WORKING_ROOT, TARGET_COUNTRY, ...).
`

func main() {
	os.Exit(run())
}

func run() int {
	listOnly := flag.Bool("list", false, "list years available on the remote endpoint and exit")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	logger := observability.NewLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *listOnly {
		return listYears(ctx, cfg, logger)
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		return 2
	}

	years, err := resolveYears(ctx, cfg, logger, args)
	if err != nil {
		logger.Error("invalid year selection", "error", err)
		return 2
	}

	metrics := observability.NewMetrics()

	stations, err := directory.Load(ctx, cfg.StationHistory, logger.With("component", "directory"))
	if err != nil {
		logger.Error("failed to load station history", "source", cfg.StationHistory, "error", err)
		return 1
	}

	fetcher := fetch.New(
		&http.Client{Transport: &http.Transport{ResponseHeaderTimeout: cfg.HeaderTimeout}},
		fetch.RetryPolicy{
			MaxAttempts: cfg.MaxAttempts,
			BaseDelay:   cfg.BaseDelay,
			Multiplier:  cfg.BackoffMultiplier,
			MaxDelay:    cfg.MaxDelay,
		},
		newLogProgress(logger.With("component", "fetch")),
		logger.With("component", "fetch"),
		metrics,
	)
	extractor := archive.NewExtractor(logger.With("component", "archive"))
	classifier := classify.New(stations, cfg.TargetCountry, logger.With("component", "classify"), metrics)

	// Year-result publishing (feature-flagged via KAFKA_BROKERS).
	var publisher pipeline.ResultPublisher
	var eventsCloser interface{ Close() error }
	if cfg.EventsEnabled() {
		pub := events.NewPublisher(cfg, logger.With("component", "events"))
		publisher = pub
		eventsCloser = pub
		logger.Info("event publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaEventsTopic)
	} else {
		logger.Info("event publishing disabled")
	}

	p := pipeline.New(fetcher, extractor, classifier, publisher, cfg.BaseURL, cfg.WorkingRoot, logger.With("component", "pipeline"), metrics)

	// Progress/metrics server (feature-flagged via HTTP_ADDR).
	var srv *httpadapter.Server
	if cfg.HTTPAddr != "" {
		srv = httpadapter.NewServer(cfg.HTTPAddr, p, logger.With("component", "http"))
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
	}

	summary := p.Run(ctx, years)

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
		cancel()
	}
	if eventsCloser != nil {
		if err := eventsCloser.Close(); err != nil {
			logger.Error("event publisher close error", "error", err)
		}
	}

	printSummary(os.Stdout, summary)

	if failed := summary.Failed(); len(failed) > 0 {
		logger.Error("batch finished with failures", "failed_years", failed)
		return 1
	}
	logger.Info("batch finished", "years", len(summary.Results))
	return 0
}

// resolveYears turns CLI arguments into a sorted year list. The single
// argument "all" selects every year the remote endpoint offers.
func resolveYears(ctx context.Context, cfg *config.Config, logger *slog.Logger, args []string) ([]int, error) {
	if len(args) == 1 && args[0] == "all" {
		years, err := catalog.NewClient(cfg.BaseURL, logger.With("component", "catalog")).ListYears(ctx)
		if err != nil {
			return nil, fmt.Errorf("list remote years: %w", err)
		}
		if len(years) == 0 {
			return nil, errors.New("remote endpoint offers no yearly archives")
		}
		return years, nil
	}
	return parseYears(args)
}

func listYears(ctx context.Context, cfg *config.Config, logger *slog.Logger) int {
	years, err := catalog.NewClient(cfg.BaseURL, logger.With("component", "catalog")).ListYears(ctx)
	if err != nil {
		logger.Error("failed to list remote years", "error", err)
		return 1
	}
	for _, y := range years {
		fmt.Println(y)
	}
	return 0
}
