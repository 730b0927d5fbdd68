package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// download-extract-classify pipeline.
type Metrics struct {
	BytesDownloaded  prometheus.Counter
	DownloadAttempts prometheus.Counter
	Fetches          *prometheus.CounterVec // labels: outcome={complete,already_complete,not_found,exhausted,io_error}
	FetchInProgress  prometheus.Gauge

	FilesExtracted  prometheus.Counter
	FilesClassified *prometheus.CounterVec // labels: result={moved,skipped}

	YearsProcessed *prometheus.CounterVec // labels: status={ok,failed}
	YearDuration   prometheus.Histogram
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		BytesDownloaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "isd_fetch",
			Name:      "bytes_downloaded_total",
			Help:      "Total archive bytes streamed from the remote endpoint.",
		}),
		DownloadAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "isd_fetch",
			Name:      "download_attempts_total",
			Help:      "Total download attempts, including retries.",
		}),
		Fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "isd_fetch",
			Name:      "fetches_total",
			Help:      "Completed fetch operations by outcome.",
		}, []string{"outcome"}),
		FetchInProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "isd_fetch",
			Name:      "fetch_in_progress",
			Help:      "1 while a download is active, 0 otherwise.",
		}),
		FilesExtracted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "isd_fetch",
			Name:      "files_extracted_total",
			Help:      "Total station files written from archives.",
		}),
		FilesClassified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "isd_fetch",
			Name:      "files_classified_total",
			Help:      "Classified station files by result.",
		}, []string{"result"}),
		YearsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "isd_fetch",
			Name:      "years_processed_total",
			Help:      "Requested years by final status.",
		}, []string{"status"}),
		YearDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "isd_fetch",
			Name:      "year_duration_seconds",
			Help:      "Wall time per year across download, extract, and classify.",
			Buckets:   []float64{1, 10, 30, 60, 300, 900, 1800, 3600, 7200},
		}),
	}

	prometheus.MustRegister(
		m.BytesDownloaded,
		m.DownloadAttempts,
		m.Fetches,
		m.FetchInProgress,
		m.FilesExtracted,
		m.FilesClassified,
		m.YearsProcessed,
		m.YearDuration,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		BytesDownloaded:  prometheus.NewCounter(prometheus.CounterOpts{Namespace: "isd_fetch", Name: "bytes_downloaded_total"}),
		DownloadAttempts: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "isd_fetch", Name: "download_attempts_total"}),
		Fetches:          prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "isd_fetch", Name: "fetches_total"}, []string{"outcome"}),
		FetchInProgress:  prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "isd_fetch", Name: "fetch_in_progress"}),
		FilesExtracted:   prometheus.NewCounter(prometheus.CounterOpts{Namespace: "isd_fetch", Name: "files_extracted_total"}),
		FilesClassified:  prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "isd_fetch", Name: "files_classified_total"}, []string{"result"}),
		YearsProcessed:   prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "isd_fetch", Name: "years_processed_total"}, []string{"status"}),
		YearDuration:     prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "isd_fetch", Name: "year_duration_seconds"}),
	}
}
