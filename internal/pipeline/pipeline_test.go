package pipeline_test

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"testing/fstest"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/isd-archive-fetch/internal/archive"
	"github.com/couchcryptid/isd-archive-fetch/internal/classify"
	"github.com/couchcryptid/isd-archive-fetch/internal/domain"
	"github.com/couchcryptid/isd-archive-fetch/internal/fetch"
	"github.com/couchcryptid/isd-archive-fetch/internal/observability"
	"github.com/couchcryptid/isd-archive-fetch/internal/pipeline"
)

// --- mocks ---

type mockFetcher struct {
	urls []string
	err  error
}

func (m *mockFetcher) Fetch(_ context.Context, url, localPath string) error {
	m.urls = append(m.urls, url)
	if m.err != nil {
		return m.err
	}
	return os.WriteFile(localPath, []byte("archive-bytes"), 0o644)
}

type mockExtractor struct {
	count int
	err   error
}

func (m *mockExtractor) Extract(_ context.Context, _, destDir string) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return 0, err
	}
	return m.count, nil
}

type mockClassifier struct {
	summary domain.ClassificationSummary
	err     error
}

func (m *mockClassifier) Classify(_ context.Context, _, _ string) (domain.ClassificationSummary, error) {
	return m.summary, m.err
}

type mockPublisher struct {
	published []domain.YearResult
	err       error
}

func (m *mockPublisher) PublishYearResult(_ context.Context, r domain.YearResult) error {
	m.published = append(m.published, r)
	return m.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newPipeline(t *testing.T, f *mockFetcher, e *mockExtractor, c *mockClassifier, p pipeline.ResultPublisher) (*pipeline.Pipeline, string) {
	t.Helper()
	root := t.TempDir()
	pl := pipeline.New(f, e, c, p, "https://example.org/csv/", root, testLogger(), observability.NewMetricsForTesting())
	return pl, root
}

// --- tests ---

func TestRun_HappyPath(t *testing.T) {
	fetcher := &mockFetcher{}
	extractor := &mockExtractor{count: 12}
	classifier := &mockClassifier{summary: domain.ClassificationSummary{Moved: 7, Skipped: 5}}
	pl, root := newPipeline(t, fetcher, extractor, classifier, nil)

	summary := pl.Run(context.Background(), []int{2024})

	require.Len(t, summary.Results, 1)
	r := summary.Results[0]
	assert.True(t, r.Succeeded)
	assert.Equal(t, domain.StageDone, r.Stage)
	assert.False(t, r.SkippedDownload)
	assert.Equal(t, 12, r.Extracted)
	assert.Equal(t, 7, r.Classification.Moved)
	assert.Empty(t, summary.Failed())

	assert.Equal(t, []string{"https://example.org/csv/2024.tar.gz"}, fetcher.urls)
	assert.DirExists(t, filepath.Join(root, "2024", "stations-rest"), "extract dir renamed to rest")
	assert.NoDirExists(t, filepath.Join(root, "2024", "stations-all"))
	assert.NoError(t, pl.CheckReadiness(context.Background()))
}

func TestRun_UsesPastedArchive(t *testing.T) {
	fetcher := &mockFetcher{}
	pl, root := newPipeline(t, fetcher, &mockExtractor{count: 1}, &mockClassifier{}, nil)

	// Paste the archive in an arbitrary subfolder of the working root.
	pasted := filepath.Join(root, "downloads", "old", "2020.tar.gz")
	require.NoError(t, os.MkdirAll(filepath.Dir(pasted), 0o755))
	require.NoError(t, os.WriteFile(pasted, []byte("pasted"), 0o644))

	summary := pl.Run(context.Background(), []int{2020})

	require.Len(t, summary.Results, 1)
	r := summary.Results[0]
	assert.True(t, r.Succeeded)
	assert.True(t, r.SkippedDownload)
	assert.Equal(t, pasted, r.ArchivePath)
	assert.Empty(t, fetcher.urls, "network must be bypassed entirely")
}

func TestRun_CanonicalArchiveSkipsDownload(t *testing.T) {
	fetcher := &mockFetcher{}
	pl, root := newPipeline(t, fetcher, &mockExtractor{count: 1}, &mockClassifier{}, nil)

	canonical := filepath.Join(root, "2021", "2021.tar.gz")
	require.NoError(t, os.MkdirAll(filepath.Dir(canonical), 0o755))
	require.NoError(t, os.WriteFile(canonical, []byte("archive-bytes"), 0o644))

	summary := pl.Run(context.Background(), []int{2021})

	require.Len(t, summary.Results, 1)
	r := summary.Results[0]
	assert.True(t, r.Succeeded)
	assert.True(t, r.SkippedDownload)
	assert.Equal(t, canonical, r.ArchivePath)
	assert.Empty(t, fetcher.urls, "a local copy is trusted, wherever it sits")
}

func TestRun_OneYearFailureDoesNotAbortBatch(t *testing.T) {
	fetcher := &mockFetcher{err: &domain.FetchError{Kind: domain.FetchExhausted, URL: "u"}}
	pl, _ := newPipeline(t, fetcher, &mockExtractor{count: 1}, &mockClassifier{}, nil)

	summary := pl.Run(context.Background(), []int{2000, 2001})

	require.Len(t, summary.Results, 2)
	assert.False(t, summary.Results[0].Succeeded)
	assert.Equal(t, domain.StageDownloading, summary.Results[0].Stage)
	assert.False(t, summary.Results[1].Succeeded, "same failing fetcher for both years")
	assert.Equal(t, []int{2000, 2001}, summary.Failed())
	assert.Len(t, fetcher.urls, 2, "second year still attempted")
}

func TestRun_ExtractFailureRecordsStage(t *testing.T) {
	extractor := &mockExtractor{err: &domain.ExtractError{Kind: domain.ExtractCorrupt, Archive: "a"}}
	pl, _ := newPipeline(t, &mockFetcher{}, extractor, &mockClassifier{}, nil)

	summary := pl.Run(context.Background(), []int{2022})

	require.Len(t, summary.Results, 1)
	assert.False(t, summary.Results[0].Succeeded)
	assert.Equal(t, domain.StageExtracting, summary.Results[0].Stage)
}

func TestRun_CancelledContextRecordsRemainingYears(t *testing.T) {
	pl, _ := newPipeline(t, &mockFetcher{}, &mockExtractor{}, &mockClassifier{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary := pl.Run(ctx, []int{2000, 2001, 2002})

	require.Len(t, summary.Results, 3)
	for _, r := range summary.Results {
		assert.False(t, r.Succeeded)
		assert.Equal(t, domain.StagePending, r.Stage)
	}
	assert.Error(t, pl.CheckReadiness(context.Background()))
}

func TestRun_PublishesYearResults(t *testing.T) {
	publisher := &mockPublisher{}
	pl, _ := newPipeline(t, &mockFetcher{}, &mockExtractor{count: 3}, &mockClassifier{}, publisher)

	pl.Run(context.Background(), []int{2023})

	require.Len(t, publisher.published, 1)
	assert.Equal(t, 2023, publisher.published[0].Year)
	assert.True(t, publisher.published[0].Succeeded)
}

func TestRun_PublisherErrorDoesNotFailYear(t *testing.T) {
	publisher := &mockPublisher{err: errors.New("broker down")}
	pl, _ := newPipeline(t, &mockFetcher{}, &mockExtractor{count: 3}, &mockClassifier{}, publisher)

	summary := pl.Run(context.Background(), []int{2023})
	assert.True(t, summary.Results[0].Succeeded)
}

// stationLookup is a fixed station table for full-stack runs.
type stationLookup map[string]domain.StationRecord

func (m stationLookup) Lookup(id string) (domain.StationRecord, bool) {
	rec, ok := m[id]
	return rec, ok
}

// buildArchive packs name→content entries into a tar.gz blob.
func buildArchive(t *testing.T, entries map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, content := range entries {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     name,
			Typeflag: tar.TypeReg,
			Mode:     0o644,
			Size:     int64(len(content)),
		}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func TestRun_SecondRunNeedsNoNetwork(t *testing.T) {
	payload := buildArchive(t, map[string]string{
		"725300-94846.csv": "a,b\n",
		"712650-99999.csv": "c,d\n",
	})

	var requests atomic.Int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		if r.Method == http.MethodHead {
			return
		}
		w.Write(payload)
	}))
	defer ts.Close()

	stations := stationLookup{
		"725300-94846": {ID: "725300-94846", Name: "CHICAGO OHARE, IL US", CountryCode: "US", Subdivision: "IL"},
		"712650-99999": {ID: "712650-99999", Name: "TORONTO ISLAND", CountryCode: "CA", Subdivision: "ON"},
	}

	root := t.TempDir()
	metrics := observability.NewMetricsForTesting()
	newPipe := func() *pipeline.Pipeline {
		fetcher := fetch.New(nil, fetch.RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond, Multiplier: 2}, nil, testLogger(), metrics)
		extractor := archive.NewExtractor(testLogger())
		classifier := classify.New(stations, "US", testLogger(), metrics)
		return pipeline.New(fetcher, extractor, classifier, nil, ts.URL+"/", root, testLogger(), metrics)
	}

	first := newPipe().Run(context.Background(), []int{2015}).Results[0]
	require.True(t, first.Succeeded, "first run failed: %s", first.Error)
	assert.False(t, first.SkippedDownload)
	require.Positive(t, requests.Load())

	// No network from here on.
	ts.Close()
	requests.Store(0)

	second := newPipe().Run(context.Background(), []int{2015}).Results[0]
	require.True(t, second.Succeeded, "rerun must work offline: %s", second.Error)
	assert.True(t, second.SkippedDownload)
	assert.Equal(t, first.Extracted, second.Extracted)
	assert.Equal(t, first.Classification, second.Classification)
	assert.EqualValues(t, 0, requests.Load())
	assert.FileExists(t, filepath.Join(root, "2015", "stations-us", "IL", "725300-94846.csv"))
}

func TestFindExistingArchive(t *testing.T) {
	fsys := fstest.MapFS{
		"2024/2024.tar.gz":         {Data: []byte("x")},
		"stash/deep/2020.tar.gz":   {Data: []byte("x")},
		"stash/2021.tar.gz.part":   {Data: []byte("x")},
		"notes/2021.tar.gz.backup": {Data: []byte("x")},
		"notes/readme.txt":         {Data: []byte("x")},
	}

	found, err := pipeline.FindExistingArchive(fsys, "2020.tar.gz")
	require.NoError(t, err)
	assert.Equal(t, "stash/deep/2020.tar.gz", found)

	found, err = pipeline.FindExistingArchive(fsys, "2021.tar.gz")
	require.NoError(t, err)
	assert.Empty(t, found, "partials and backups must not match")

	found, err = pipeline.FindExistingArchive(fsys, "2024.tar.gz")
	require.NoError(t, err)
	assert.Equal(t, "2024/2024.tar.gz", found)
}
