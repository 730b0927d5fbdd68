// Package classify routes extracted station files into a per-state output
// tree, restricted to one target country.
//
// Skipped-file policy: files whose station is unknown, foreign, or
// stateless stay in the extraction directory. The orchestrator renames
// that directory to a "rest" sibling after a successful run, so skipped
// files are kept explicitly and the extraction directory never survives.
package classify

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/couchcryptid/isd-archive-fetch/internal/domain"
	"github.com/couchcryptid/isd-archive-fetch/internal/observability"
)

// StationLookup resolves a station identifier. Satisfied by
// *directory.Directory.
type StationLookup interface {
	Lookup(id string) (domain.StationRecord, bool)
}

// Classifier moves target-country station files into per-state folders.
type Classifier struct {
	stations      StationLookup
	targetCountry string
	logger        *slog.Logger
	metrics       *observability.Metrics
}

// New creates a Classifier for the given target country code.
func New(stations StationLookup, targetCountry string, logger *slog.Logger, metrics *observability.Metrics) *Classifier {
	return &Classifier{
		stations:      stations,
		targetCountry: targetCountry,
		logger:        logger,
		metrics:       metrics,
	}
}

// Classify routes every file in destDir. Target-country files move to
// outputRoot/<state>/<filename>; everything else stays put and counts as
// skipped. The verdict for a file depends only on its name and the
// station directory, never on iteration order, so repeated runs over the
// same inputs place the same files.
func (c *Classifier) Classify(ctx context.Context, destDir, outputRoot string) (domain.ClassificationSummary, error) {
	entries, err := os.ReadDir(destDir)
	if err != nil {
		return domain.ClassificationSummary{}, fmt.Errorf("read extraction dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names) // stable processing and summary order

	var summary domain.ClassificationSummary
	index := make([][2]string, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		state, ok := c.resolve(name)
		if !ok {
			summary.Skipped++
			c.metrics.FilesClassified.WithLabelValues("skipped").Inc()
			continue
		}

		stateDir := filepath.Join(outputRoot, state)
		if err := os.MkdirAll(stateDir, 0o755); err != nil {
			return summary, fmt.Errorf("create state dir %s: %w", stateDir, err)
		}
		if err := os.Rename(filepath.Join(destDir, name), filepath.Join(stateDir, name)); err != nil {
			return summary, fmt.Errorf("move %s: %w", name, err)
		}
		summary.Moved++
		c.metrics.FilesClassified.WithLabelValues("moved").Inc()
		index = append(index, [2]string{name, state})
	}

	if err := c.writeIndex(outputRoot, index); err != nil {
		return summary, err
	}

	c.logger.Info("classification complete",
		"dir", destDir,
		"moved", summary.Moved,
		"skipped", summary.Skipped,
	)
	return summary, nil
}

// resolve decides the destination state for one extracted filename.
func (c *Classifier) resolve(name string) (string, bool) {
	id := domain.ParseStationID(name)
	if id == "" {
		c.logger.Debug("skipping non-station file", "name", name)
		return "", false
	}
	rec, ok := c.stations.Lookup(id)
	if !ok {
		c.logger.Debug("station not in directory", "station", id)
		return "", false
	}
	if rec.CountryCode != c.targetCountry {
		return "", false
	}
	state := rec.State()
	if state == "" {
		c.logger.Debug("station has no resolvable state", "station", id)
		return "", false
	}
	return state, true
}

// writeIndex drops a summary next to the state folders: one CSV row per
// moved file, or a marker file when the year had no target stations.
func (c *Classifier) writeIndex(outputRoot string, index [][2]string) error {
	if err := os.MkdirAll(outputRoot, 0o755); err != nil {
		return fmt.Errorf("create output root: %w", err)
	}

	if len(index) == 0 {
		marker := filepath.Join(outputRoot, "NO_STATIONS.txt")
		msg := fmt.Sprintf("No %s-based stations were found in this archive.\n", c.targetCountry)
		if err := os.WriteFile(marker, []byte(msg), 0o644); err != nil {
			return fmt.Errorf("write marker: %w", err)
		}
		return nil
	}

	f, err := os.Create(filepath.Join(outputRoot, "stations.csv"))
	if err != nil {
		return fmt.Errorf("create station index: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"file", "state"}); err != nil {
		return fmt.Errorf("write station index: %w", err)
	}
	for _, row := range index {
		if err := w.Write(row[:]); err != nil {
			return fmt.Errorf("write station index: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}
