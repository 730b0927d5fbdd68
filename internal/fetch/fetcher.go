package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/couchcryptid/isd-archive-fetch/internal/domain"
	"github.com/couchcryptid/isd-archive-fetch/internal/observability"
)

// copyBufferSize matches the 1 MiB chunks the archive endpoint streams well at.
const copyBufferSize = 1 << 20

// partSuffix stages fresh downloads next to their final path. Renamed into
// place only on full success, so the final path never holds a torn file.
const partSuffix = ".part"

// RetryPolicy bounds the attempts of one Fetch call. Delays grow
// geometrically from BaseDelay, capped at MaxDelay.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	MaxDelay    time.Duration
}

// Delay returns the wait before the given 1-based attempt's retry.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d = time.Duration(float64(d) * p.Multiplier)
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Fetcher downloads yearly archives, resuming partial transfers and
// retrying transient failures.
type Fetcher struct {
	client  *http.Client
	policy  RetryPolicy
	sink    ProgressSink
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates a Fetcher. A nil client falls back to http.DefaultClient and
// a nil sink to NopSink.
func New(client *http.Client, policy RetryPolicy, sink ProgressSink, logger *slog.Logger, metrics *observability.Metrics) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if sink == nil {
		sink = NopSink{}
	}
	return &Fetcher{
		client:  client,
		policy:  policy,
		sink:    sink,
		logger:  logger,
		metrics: metrics,
	}
}

// Fetch ensures a complete copy of url at localPath.
//
// An existing file at localPath whose size matches the remote total is
// accepted without any transfer. A smaller file (or a leftover .part from
// an interrupted run) is resumed with a Range request; when the server
// ignores the Range, the partial is discarded and the transfer restarts
// from zero. Transient failures (network errors, 5xx) are retried per the
// policy with the partial bytes kept on disk between attempts; a 404
// returns immediately with no retries.
func (f *Fetcher) Fetch(ctx context.Context, url, localPath string) error {
	f.metrics.FetchInProgress.Set(1)
	defer f.metrics.FetchInProgress.Set(0)

	var lastErr error
	for attempt := 1; attempt <= f.policy.MaxAttempts; attempt++ {
		f.metrics.DownloadAttempts.Inc()

		err := f.attempt(ctx, url, localPath)
		if err == nil {
			return nil
		}
		var fe *domain.FetchError
		if errors.As(err, &fe) {
			// NotFound and local IO failures do not heal with retries.
			f.metrics.Fetches.WithLabelValues(string(fe.Kind)).Inc()
			return err
		}
		if ctx.Err() != nil {
			// Cancelled mid-transfer; the partial on disk stays resumable.
			return ctx.Err()
		}

		lastErr = err
		if attempt == f.policy.MaxAttempts {
			break
		}
		delay := f.policy.Delay(attempt)
		f.logger.Warn("download attempt failed, retrying",
			"url", url,
			"attempt", attempt,
			"max_attempts", f.policy.MaxAttempts,
			"delay", delay,
			"error", err,
		)
		if !sleepWithContext(ctx, delay) {
			return ctx.Err()
		}
	}

	f.metrics.Fetches.WithLabelValues(string(domain.FetchExhausted)).Inc()
	return &domain.FetchError{Kind: domain.FetchExhausted, URL: url, Err: lastErr}
}

// attempt performs one download pass. It returns nil on success, a
// *domain.FetchError for terminal failures, and any other error for
// transient ones the caller may retry.
func (f *Fetcher) attempt(ctx context.Context, url, localPath string) error {
	total, err := f.remoteSize(ctx, url)
	if err != nil {
		return err
	}

	writePath, offset, rename, err := planTransfer(url, localPath, total)
	if err != nil {
		return err
	}
	if writePath == "" {
		// Already complete on disk; no transfer.
		f.logger.Info("archive already complete, skipping transfer", "path", localPath, "size", total)
		f.metrics.Fetches.WithLabelValues("already_complete").Inc()
		return nil
	}
	if offset == total && total >= 0 {
		// A finished .part from an interrupted run; just publish it.
		if err := os.Rename(writePath, localPath); err != nil {
			return &domain.FetchError{Kind: domain.FetchIOError, URL: url, Err: err}
		}
		f.metrics.Fetches.WithLabelValues("complete").Inc()
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &domain.FetchError{Kind: domain.FetchIOError, URL: url, Err: err}
	}
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusPartialContent:
		// Server honored the Range; append from offset.
	case resp.StatusCode == http.StatusOK:
		if offset > 0 {
			f.logger.Warn("server ignored range request, restarting from zero", "url", url, "had_bytes", offset)
			if err := os.Remove(writePath); err != nil && !os.IsNotExist(err) {
				return &domain.FetchError{Kind: domain.FetchIOError, URL: url, Err: err}
			}
			offset = 0
		}
	case resp.StatusCode >= 500:
		return fmt.Errorf("get %s: status %s", url, resp.Status)
	default:
		return &domain.FetchError{
			Kind: domain.FetchNotFound,
			URL:  url,
			Err:  fmt.Errorf("status %s", resp.Status),
		}
	}

	written, err := f.stream(resp.Body, writePath, url, offset, total)
	if err != nil {
		return err
	}

	if total >= 0 && offset+written != total {
		return fmt.Errorf("get %s: connection closed at %d of %d bytes", url, offset+written, total)
	}
	if rename {
		if err := os.Rename(writePath, localPath); err != nil {
			return &domain.FetchError{Kind: domain.FetchIOError, URL: url, Err: err}
		}
	}

	f.logger.Info("download complete", "url", url, "path", localPath, "bytes", offset+written, "resumed_from", offset)
	f.metrics.Fetches.WithLabelValues("complete").Inc()
	return nil
}

// stream appends the response body to writePath starting at offset,
// reporting progress as it goes.
func (f *Fetcher) stream(body io.Reader, writePath, url string, offset, total int64) (int64, error) {
	file, err := os.OpenFile(writePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return 0, &domain.FetchError{Kind: domain.FetchIOError, URL: url, Err: err}
	}
	defer file.Close()

	f.sink.Start(url, offset, total)
	defer f.sink.Done()

	var written int64
	buf := make([]byte, copyBufferSize)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if _, writeErr := file.Write(buf[:n]); writeErr != nil {
				return written, &domain.FetchError{Kind: domain.FetchIOError, URL: url, Err: writeErr}
			}
			written += int64(n)
			f.sink.Advance(int64(n))
			f.metrics.BytesDownloaded.Add(float64(n))
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			// Keep what we have; the next attempt resumes from here.
			file.Sync() //nolint:errcheck // best-effort flush before retry
			return written, fmt.Errorf("read body of %s: %w", url, readErr)
		}
	}

	if err := file.Sync(); err != nil {
		return written, &domain.FetchError{Kind: domain.FetchIOError, URL: url, Err: err}
	}
	return written, nil
}

// remoteSize probes the archive's total size with a HEAD request.
// Returns -1 when the server answers but does not report a length.
func (f *Fetcher) remoteSize(ctx context.Context, url string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, &domain.FetchError{Kind: domain.FetchIOError, URL: url, Err: err}
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("head %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		if resp.ContentLength >= 0 {
			return resp.ContentLength, nil
		}
		return -1, nil
	case resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented:
		return -1, nil
	case resp.StatusCode >= 500:
		return 0, fmt.Errorf("head %s: status %s", url, resp.Status)
	default:
		return 0, &domain.FetchError{
			Kind: domain.FetchNotFound,
			URL:  url,
			Err:  fmt.Errorf("status %s", resp.Status),
		}
	}
}

// planTransfer inspects the local filesystem and decides where to write
// and from which offset. Returns writePath == "" when localPath is already
// a complete copy. rename is true when writePath must be moved to
// localPath on success.
func planTransfer(url, localPath string, total int64) (writePath string, offset int64, rename bool, err error) {
	if info, statErr := os.Stat(localPath); statErr == nil {
		switch {
		case total >= 0 && info.Size() == total:
			return "", 0, false, nil
		case total >= 0 && info.Size() < total:
			// Resume in place; the file keeps growing under its final
			// name, which readers must treat as in-progress.
			return localPath, info.Size(), false, nil
		default:
			// Larger than the remote, or remote size unknown: the copy
			// cannot be trusted, start over.
			if rmErr := os.Remove(localPath); rmErr != nil {
				return "", 0, false, &domain.FetchError{Kind: domain.FetchIOError, URL: url, Err: rmErr}
			}
		}
	}

	part := localPath + partSuffix
	if info, statErr := os.Stat(part); statErr == nil {
		if total < 0 || info.Size() > total {
			if rmErr := os.Remove(part); rmErr != nil {
				return "", 0, false, &domain.FetchError{Kind: domain.FetchIOError, URL: url, Err: rmErr}
			}
			return part, 0, true, nil
		}
		return part, info.Size(), true, nil
	}
	return part, 0, true, nil
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
