// Package archive unpacks yearly ISD tar.gz bundles into a flat scratch
// directory. Entries are written under their base names; the archives
// carry no directory structure worth preserving.
package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"

	"github.com/couchcryptid/isd-archive-fetch/internal/domain"
)

// Extractor streams archives to disk.
type Extractor struct {
	logger *slog.Logger
}

// NewExtractor creates an Extractor.
func NewExtractor(logger *slog.Logger) *Extractor {
	return &Extractor{logger: logger}
}

// Extract unpacks archivePath into destDir and returns the number of
// files written. A decode failure surfaces as ExtractCorrupt, a write
// failure as ExtractIOError; in both cases entries already extracted are
// left in place and the caller treats the year as failed.
func (e *Extractor) Extract(ctx context.Context, archivePath, destDir string) (int, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return 0, &domain.ExtractError{Kind: domain.ExtractIOError, Archive: archivePath, Err: err}
	}

	f, err := os.Open(archivePath)
	if err != nil {
		return 0, &domain.ExtractError{Kind: domain.ExtractIOError, Archive: archivePath, Err: err}
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return 0, &domain.ExtractError{Kind: domain.ExtractCorrupt, Archive: archivePath, Err: err}
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	count := 0
	for {
		if err := ctx.Err(); err != nil {
			return count, err
		}

		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return count, &domain.ExtractError{Kind: domain.ExtractCorrupt, Archive: archivePath, Err: err}
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		// Entry names are flat station files; anything else is reduced
		// to its base name so a crafted archive cannot escape destDir.
		name := filepath.Base(filepath.Clean(hdr.Name))
		if name == "." || name == string(filepath.Separator) {
			continue
		}

		if err := writeEntry(filepath.Join(destDir, name), tr); err != nil {
			// A failed read of entry content means the stream itself is
			// bad; only filesystem errors count as IO failures.
			kind := domain.ExtractCorrupt
			var pathErr *os.PathError
			if errors.As(err, &pathErr) {
				kind = domain.ExtractIOError
			}
			return count, &domain.ExtractError{Kind: kind, Archive: archivePath, Err: err}
		}
		count++
	}

	e.logger.Info("archive extracted", "archive", archivePath, "dest", destDir, "files", count)
	return count, nil
}

func writeEntry(path string, r io.Reader) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return out.Close()
}
