// Package pipeline drives the per-year download, extract, and classify
// flow and aggregates the batch summary.
package pipeline

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/isd-archive-fetch/internal/domain"
	"github.com/couchcryptid/isd-archive-fetch/internal/observability"
)

// ArchiveFetcher ensures a complete archive copy at a local path.
type ArchiveFetcher interface {
	Fetch(ctx context.Context, url, localPath string) error
}

// ArchiveExtractor unpacks an archive into a flat directory.
type ArchiveExtractor interface {
	Extract(ctx context.Context, archivePath, destDir string) (int, error)
}

// FileClassifier routes extracted files into the output tree.
type FileClassifier interface {
	Classify(ctx context.Context, destDir, outputRoot string) (domain.ClassificationSummary, error)
}

// ResultPublisher emits one event per finished year. Optional.
type ResultPublisher interface {
	PublishYearResult(ctx context.Context, result domain.YearResult) error
}

// Pipeline processes requested years sequentially. Years share nothing
// mutable, so one year's failure is recorded and the next proceeds.
type Pipeline struct {
	fetcher    ArchiveFetcher
	extractor  ArchiveExtractor
	classifier FileClassifier
	publisher  ResultPublisher // nil when event publishing is disabled

	baseURL     string
	workingRoot string

	logger  *slog.Logger
	metrics *observability.Metrics
	ready   atomic.Bool

	mu      sync.Mutex
	results []domain.YearResult
}

// New creates a Pipeline. publisher may be nil.
func New(f ArchiveFetcher, e ArchiveExtractor, c FileClassifier, p ResultPublisher, baseURL, workingRoot string, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		fetcher:     f,
		extractor:   e,
		classifier:  c,
		publisher:   p,
		baseURL:     baseURL,
		workingRoot: workingRoot,
		logger:      logger,
		metrics:     metrics,
	}
}

// CheckReadiness returns nil once the batch has finished at least one year.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no year has been processed yet")
	}
	return nil
}

// Snapshot returns the results recorded so far, for the progress endpoint.
func (p *Pipeline) Snapshot() []domain.YearResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.YearResult, len(p.results))
	copy(out, p.results)
	return out
}

func (p *Pipeline) record(result domain.YearResult) {
	p.mu.Lock()
	p.results = append(p.results, result)
	p.mu.Unlock()
}

// Run processes every requested year and returns the batch summary.
// Cancellation stops between years; years not reached are recorded as
// unprocessed failures rather than dropped silently.
func (p *Pipeline) Run(ctx context.Context, years []int) domain.BatchSummary {
	var summary domain.BatchSummary
	for i, year := range years {
		if ctx.Err() != nil {
			for _, remaining := range years[i:] {
				skipped := domain.YearResult{
					Year:  remaining,
					Stage: domain.StagePending,
					Error: ctx.Err().Error(),
				}
				summary.Results = append(summary.Results, skipped)
				p.record(skipped)
			}
			break
		}

		result := p.processYear(ctx, year)
		summary.Results = append(summary.Results, result)
		p.record(result)
		p.ready.Store(true)

		status := "ok"
		if !result.Succeeded {
			status = "failed"
		}
		p.metrics.YearsProcessed.WithLabelValues(status).Inc()
		p.metrics.YearDuration.Observe(result.Duration.Seconds())

		p.publish(ctx, result)
	}
	return summary
}

// processYear walks one year through local-copy check, download, extract,
// and classify. The returned result carries the stage a failure hit.
func (p *Pipeline) processYear(ctx context.Context, year int) domain.YearResult {
	start := time.Now()
	task := domain.NewYearTask(year, p.baseURL, p.workingRoot)
	result := domain.YearResult{Year: year, Stage: domain.StageLocalCopyCheck}
	defer func() { result.Duration = time.Since(start) }()

	logger := p.logger.With("year", year)
	logger.Info("processing year")

	archivePath, skipped, err := p.locateOrFetch(ctx, task, logger, &result)
	if err != nil {
		result.Error = err.Error()
		logger.Error("year failed", "stage", result.Stage, "error", err)
		return result
	}
	result.ArchivePath = archivePath
	result.SkippedDownload = skipped

	result.Stage = domain.StageExtracting
	extracted, err := p.extractor.Extract(ctx, archivePath, task.ExtractDir)
	if err != nil {
		result.Error = err.Error()
		logger.Error("year failed", "stage", result.Stage, "error", err)
		return result
	}
	result.Extracted = extracted
	p.metrics.FilesExtracted.Add(float64(extracted))

	result.Stage = domain.StageClassifying
	classification, err := p.classifier.Classify(ctx, task.ExtractDir, task.OutputRoot)
	if err != nil {
		result.Error = err.Error()
		logger.Error("year failed", "stage", result.Stage, "error", err)
		return result
	}
	result.Classification = classification

	if err := retireExtractDir(task.ExtractDir, task.RestDir); err != nil {
		result.Error = err.Error()
		logger.Error("year failed", "stage", result.Stage, "error", err)
		return result
	}

	result.Stage = domain.StageDone
	result.Succeeded = true
	logger.Info("year done",
		"archive", archivePath,
		"skipped_download", skipped,
		"extracted", extracted,
		"moved", classification.Moved,
		"skipped", classification.Skipped,
	)
	return result
}

// locateOrFetch honors an archive already anywhere under the working
// root, the canonical path included. A found copy is trusted as complete
// and bypasses the network entirely, so a finished year reruns without
// any connectivity. Only when no copy exists does the year download to
// its canonical path.
func (p *Pipeline) locateOrFetch(ctx context.Context, task domain.YearTask, logger *slog.Logger, result *domain.YearResult) (string, bool, error) {
	if err := os.MkdirAll(p.workingRoot, 0o755); err != nil {
		return "", false, err
	}

	found, err := FindExistingArchive(os.DirFS(p.workingRoot), domain.ArchiveName(task.Year))
	if err != nil {
		return "", false, err
	}
	if found != "" {
		path := filepath.Join(p.workingRoot, found)
		logger.Info("found existing archive, skipping download", "path", path)
		return path, true, nil
	}

	result.Stage = domain.StageDownloading
	if err := os.MkdirAll(filepath.Dir(task.ArchivePath), 0o755); err != nil {
		return "", false, err
	}
	if err := p.fetcher.Fetch(ctx, task.RemoteURL, task.ArchivePath); err != nil {
		return "", false, err
	}
	return task.ArchivePath, false, nil
}

// FindExistingArchive scans fsys recursively for a file with the given
// name and returns its path relative to the fsys root, or "" when absent.
// Pure over its fs.FS argument, so tests can feed it a fstest.MapFS.
func FindExistingArchive(fsys fs.FS, name string) (string, error) {
	var found string
	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			// Unreadable subtrees never hide the rest of the scan.
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.IsDir() && d.Name() == name {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return found, nil
}

// retireExtractDir renames the extraction directory to the rest
// directory, replacing any rest leftovers from a previous run.
func retireExtractDir(extractDir, restDir string) error {
	if err := os.RemoveAll(restDir); err != nil {
		return err
	}
	return os.Rename(extractDir, restDir)
}

func (p *Pipeline) publish(ctx context.Context, result domain.YearResult) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.PublishYearResult(ctx, result); err != nil {
		p.logger.Warn("publish year result failed", "year", result.Year, "error", err)
	}
}
